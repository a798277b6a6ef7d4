package reporting

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// RepositoryPort abstracts the aggregate queries.
type RepositoryPort interface {
	PaymentTotals(ctx context.Context, filter Filter) ([]Group, error)
	SaleTotals(ctx context.Context, filter Filter) ([]Group, error)
}

// Service computes scoped summaries with a Redis cache in front.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
}

// NewService wires a repository with a cache; cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// PaymentSummary groups payments by type or method.
func (s *Service) PaymentSummary(ctx context.Context, p tenant.Principal, filter Filter) (Summary, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	if filter.GroupBy == "" {
		filter.GroupBy = GroupByType
	}
	return s.cached(ctx, "payments:"+string(filter.GroupBy), filter, s.repo.PaymentTotals)
}

// SaleSummary groups sales by payment method.
func (s *Service) SaleSummary(ctx context.Context, p tenant.Principal, filter Filter) (Summary, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	filter.GroupBy = GroupByMethod
	return s.cached(ctx, "sales", filter, s.repo.SaleTotals)
}

// Dashboard computes every summary for one scope concurrently.
func (s *Service) Dashboard(ctx context.Context, p tenant.Principal, filter Filter) (Dashboard, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	out := Dashboard{Gym: filter.Gym, From: filter.From, To: filter.To}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f := filter
		f.GroupBy = GroupByType
		var err error
		out.PaymentsByType, err = s.PaymentSummary(gctx, p, f)
		return err
	})
	g.Go(func() error {
		f := filter
		f.GroupBy = GroupByMethod
		var err error
		out.PaymentsByMethod, err = s.PaymentSummary(gctx, p, f)
		return err
	})
	g.Go(func() error {
		var err error
		out.Sales, err = s.SaleSummary(gctx, p, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	out.Revenue = shared.FromCents(shared.Cents(out.PaymentsByType.Total) + shared.Cents(out.Sales.Total))
	return out, nil
}

// Bump invalidates every cached summary.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) cached(ctx context.Context, name string, filter Filter, load func(context.Context, Filter) ([]Group, error)) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "reports", name, gymToken(filter.Gym), timeToken(filter.From), timeToken(filter.To))
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return direct(ctx, filter, load)
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return direct(ctx, filter, load)
	})
	return out, err
}

func direct(ctx context.Context, filter Filter, load func(context.Context, Filter) ([]Group, error)) (Summary, error) {
	groups, err := load(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return summarize(groups), nil
}

func gymToken(gym *tenant.Gym) string {
	if gym == nil {
		return "all"
	}
	return strings.ReplaceAll(strings.ToLower(string(*gym)), " ", "_")
}

func timeToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
