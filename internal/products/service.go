package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// MetricsRecorder receives stock rejection counters.
type MetricsRecorder interface {
	StockRejected(reason string)
}

// Service implements the product catalog and stock adjustments.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditRecorder
	metrics MetricsRecorder
	clock   shared.Clock
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, clock: clock, logger: logger}
}

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// List returns the catalog sorted by name. Every role sees every product.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, shared.Pagination, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a catalog item. Admin only.
func (s *Service) Create(ctx context.Context, p tenant.Principal, req CreateProductRequest) (Product, error) {
	if err := tenant.RequireAdmin(p); err != nil {
		return Product{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	ptype, err := ParseType(req.Type)
	if err != nil {
		return Product{}, err
	}
	if err := validPrice(req.Price); err != nil {
		return Product{}, err
	}
	var stock Stock
	for raw, qty := range req.InitialStock {
		gym, err := tenant.ParseGym(raw)
		if err != nil {
			return Product{}, err
		}
		if qty < 0 {
			return Product{}, fmt.Errorf("%w: initial stock cannot be negative", shared.ErrValidation)
		}
		stock.Set(gym, qty)
	}
	now := s.clock.Now()
	product := Product{
		ID:                uuid.New(),
		Name:              name,
		Type:              ptype,
		Price:             req.Price,
		Description:       strings.TrimSpace(req.Description),
		AllowInstallments: req.AllowInstallments,
		Stock:             stock,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return Product{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "product.create",
		Entity:   "product",
		EntityID: product.ID.String(),
		Meta:     map[string]any{"name": product.Name, "price": product.Price, "stock": product.Stock},
		At:       now,
	})
	return product, nil
}

// Update edits catalog fields. Admin only.
func (s *Service) Update(ctx context.Context, p tenant.Principal, id uuid.UUID, req UpdateProductRequest) (Product, error) {
	if err := tenant.RequireAdmin(p); err != nil {
		return Product{}, err
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
		if product.Name == "" {
			return Product{}, fmt.Errorf("%w: name cannot be empty", shared.ErrValidation)
		}
	}
	if req.Type != nil {
		if product.Type, err = ParseType(*req.Type); err != nil {
			return Product{}, err
		}
	}
	if req.Price != nil {
		if err := validPrice(*req.Price); err != nil {
			return Product{}, err
		}
		product.Price = *req.Price
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.AllowInstallments != nil {
		product.AllowInstallments = *req.AllowInstallments
	}
	product.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "product.update",
		Entity:   "product",
		EntityID: product.ID.String(),
		Meta:     map[string]any{"price": product.Price},
		At:       product.UpdatedAt,
	})
	return product, nil
}

// Delete removes a catalog item. Admin only.
func (s *Service) Delete(ctx context.Context, p tenant.Principal, id uuid.UUID) error {
	if err := tenant.RequireAdmin(p); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "product.delete",
		Entity:   "product",
		EntityID: id.String(),
		At:       s.clock.Now(),
	})
	return nil
}

// AdjustStock applies a manual correction to one gym counter. Non-admins may
// only touch their own gym.
func (s *Service) AdjustStock(ctx context.Context, p tenant.Principal, productID uuid.UUID, req AdjustStockRequest) (Movement, error) {
	if req.Delta == 0 {
		return Movement{}, fmt.Errorf("%w: delta must be non-zero", shared.ErrValidation)
	}
	var requested tenant.Gym
	if req.Gym != "" {
		var err error
		if requested, err = tenant.ParseGym(req.Gym); err != nil {
			return Movement{}, err
		}
	}
	gym, err := tenant.ResolveWriteGym(p, requested)
	if err != nil {
		return Movement{}, err
	}

	movement := Movement{
		ID:        uuid.New(),
		ProductID: productID,
		Gym:       gym,
		Delta:     req.Delta,
		Reason:    ReasonAdjust,
		Note:      strings.TrimSpace(req.Note),
		ActorID:   p.UserID,
		CreatedAt: s.clock.Now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, after, err := tx.ApplyStockDelta(ctx, productID, gym, req.Delta, ReasonAdjust)
		if err != nil {
			return err
		}
		movement.QtyBefore, movement.QtyAfter = before, after
		return tx.InsertMovement(ctx, movement)
	})
	if err != nil {
		if s.metrics != nil && shared.IsStockRejection(err) {
			s.metrics.StockRejected("adjust")
		}
		return Movement{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "stock.adjust",
		Entity:   "product",
		EntityID: productID.String(),
		Gym:      string(gym),
		Meta:     map[string]any{"delta": req.Delta, "qty_after": movement.QtyAfter, "note": movement.Note},
		At:       movement.CreatedAt,
	})
	return movement, nil
}

// Movements lists stock history; non-admins only see their own gym.
func (s *Service) Movements(ctx context.Context, p tenant.Principal, filter MovementFilter) ([]Movement, error) {
	if _, err := s.repo.Get(ctx, filter.ProductID); err != nil {
		return nil, err
	}
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	return s.repo.Movements(ctx, filter)
}

func validPrice(price float64) error {
	return shared.ValidateAmount("price", price)
}
