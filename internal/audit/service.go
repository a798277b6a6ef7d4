package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/gymdesk/gymdesk/internal/tenant"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxExportRows   = 10000
)

// Repository provides timeline reads.
type Repository interface {
	Timeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds the audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page. Non-admins only see entries of their gym.
func (s *Service) Timeline(ctx context.Context, p tenant.Principal, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	filters = scope(p, filters)
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Timeline(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row up to a hard cap.
func (s *Service) Export(ctx context.Context, p tenant.Principal, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Timeline(ctx, scope(p, filters), 0, maxExportRows)
}

func scope(p tenant.Principal, filters TimelineFilters) TimelineFilters {
	filters.Entity = strings.TrimSpace(filters.Entity)
	filters.EntityID = strings.TrimSpace(filters.EntityID)
	filters.Action = strings.TrimSpace(filters.Action)
	var requested *tenant.Gym
	if filters.Gym != nil {
		g := tenant.Gym(*filters.Gym)
		requested = &g
	}
	if narrowed := tenant.NarrowGym(p, requested); narrowed != nil {
		g := string(*narrowed)
		filters.Gym = &g
	} else {
		filters.Gym = nil
	}
	return filters
}
