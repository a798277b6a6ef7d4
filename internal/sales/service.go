package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/products"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts sale persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// MetricsRecorder receives business counters.
type MetricsRecorder interface {
	SaleRecorded(gym, method string, total float64)
	StockRejected(reason string)
}

// Service implements the sale ledger.
type Service struct {
	repo        RepositoryPort
	idempotency shared.IdempotencyGuard
	audit       shared.AuditRecorder
	reports     shared.CacheInvalidator
	metrics     MetricsRecorder
	clock       shared.Clock
	logger      *slog.Logger
}

// ServiceDeps groups optional collaborators.
type ServiceDeps struct {
	Idempotency shared.IdempotencyGuard
	Audit       shared.AuditRecorder
	Reports     shared.CacheInvalidator
	Metrics     MetricsRecorder
	Clock       shared.Clock
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	if deps.Clock == nil {
		deps.Clock = shared.SystemClock(time.UTC)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		idempotency: deps.Idempotency,
		audit:       deps.Audit,
		reports:     deps.Reports,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
}

type plannedLine struct {
	productID uuid.UUID
	quantity  int
}

// Record stores a sale and decrements stock at the sale's gym. Any line that
// cannot be covered rolls the whole sale back.
func (s *Service) Record(ctx context.Context, p tenant.Principal, req RecordSaleRequest, idempotencyKey string) (Sale, error) {
	method, err := ParseMethod(req.PaymentMethod)
	if err != nil {
		return Sale{}, err
	}
	var requested tenant.Gym
	if req.Gym != "" {
		if requested, err = tenant.ParseGym(req.Gym); err != nil {
			return Sale{}, err
		}
	}
	gym, err := tenant.ResolveWriteGym(p, requested)
	if err != nil {
		return Sale{}, err
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return Sale{}, err
	}
	if method == MethodInstallments && len(req.Installments) == 0 {
		return Sale{}, fmt.Errorf("%w: installment sales need at least one installment", shared.ErrValidation)
	}
	if method != MethodInstallments && len(req.Installments) > 0 {
		return Sale{}, fmt.Errorf("%w: installments are only valid with the installments method", shared.ErrValidation)
	}
	var customerID *uuid.UUID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Sale{}, fmt.Errorf("%w: invalid customer id", shared.ErrValidation)
		}
		customerID = &id
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Sale{}, err
		}
	}

	now := s.clock.Now()
	sale := Sale{
		ID:            uuid.New(),
		Gym:           gym,
		PaymentMethod: method,
		CustomerID:    customerID,
		ProcessedBy:   p.UserID,
		CreatedAt:     now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if customerID != nil {
			customer, err := tx.GetCustomer(ctx, *customerID)
			if err != nil {
				return err
			}
			if err := tenant.Authorize(p, customer.Gym); err != nil {
				return err
			}
			sale.CustomerName = customer.Name
		}

		var totalCents int64
		items := make([]Item, 0, len(lines))
		catalog := make([]products.Product, 0, len(lines))
		for _, line := range lines {
			product, err := tx.GetProduct(ctx, line.productID)
			if err != nil {
				return err
			}
			if method == MethodInstallments && !product.AllowInstallments {
				return fmt.Errorf("%w: %s cannot be sold in installments", shared.ErrValidation, product.Name)
			}
			subtotal := shared.Cents(product.Price) * int64(line.quantity)
			totalCents += subtotal
			items = append(items, Item{
				ProductID:   product.ID,
				ProductName: product.Name,
				Gym:         gym,
				Quantity:    line.quantity,
				UnitPrice:   product.Price,
				Subtotal:    shared.FromCents(subtotal),
			})
			catalog = append(catalog, product)
		}
		sale.Items = items
		sale.Total = shared.FromCents(totalCents)

		if method == MethodInstallments {
			installments, err := buildInstallments(req.Installments, totalCents)
			if err != nil {
				return err
			}
			sale.Installments = installments
		}

		for i, item := range items {
			before, after, err := tx.DecrementStock(ctx, item.ProductID, gym, item.Quantity)
			if err != nil {
				if errors.Is(err, shared.ErrInsufficientStock) {
					return fmt.Errorf("sales: %w: %s at %s", shared.ErrInsufficientStock, catalog[i].Name, gym)
				}
				return err
			}
			if err := tx.InsertMovement(ctx, products.Movement{
				ID:        uuid.New(),
				ProductID: item.ProductID,
				Gym:       gym,
				Delta:     -item.Quantity,
				QtyBefore: before,
				QtyAfter:  after,
				Reason:    products.ReasonSale,
				RefID:     sale.ID.String(),
				ActorID:   p.UserID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return tx.InsertSale(ctx, sale)
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		if s.metrics != nil && errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.StockRejected("sale")
		}
		return Sale{}, err
	}

	shared.BumpCache(ctx, s.reports, s.logger)
	if s.metrics != nil {
		s.metrics.SaleRecorded(string(gym), string(method), sale.Total)
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "sale.record",
		Entity:   "sale",
		EntityID: sale.ID.String(),
		Gym:      string(gym),
		Meta:     map[string]any{"total": sale.Total, "method": method, "lines": len(sale.Items)},
		At:       now,
	})
	return sale, nil
}

// Get loads one sale, enforcing gym ownership.
func (s *Service) Get(ctx context.Context, p tenant.Principal, id uuid.UUID) (Sale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if err := tenant.Authorize(p, sale.Gym); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// List returns sales visible to p, newest first.
func (s *Service) List(ctx context.Context, p tenant.Principal, filter ListFilter) ([]Sale, shared.Pagination, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// MarkInstallmentPaid settles one installment of a sale.
func (s *Service) MarkInstallmentPaid(ctx context.Context, p tenant.Principal, saleID, installmentID uuid.UUID) (Sale, error) {
	now := s.clock.Now()
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if sale, err = tx.GetSaleForUpdate(ctx, saleID); err != nil {
			return err
		}
		if err := tenant.Authorize(p, sale.Gym); err != nil {
			return err
		}
		idx := -1
		for i, inst := range sale.Installments {
			if inst.ID == installmentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("sales: installment %w: %s", shared.ErrNotFound, installmentID)
		}
		if sale.Installments[idx].Paid {
			return fmt.Errorf("%w: installment already paid", shared.ErrValidation)
		}
		if err := tx.MarkInstallmentPaid(ctx, installmentID, now); err != nil {
			return err
		}
		paidAt := now
		sale.Installments[idx].Paid = true
		sale.Installments[idx].PaidDate = &paidAt
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "sale.installment_paid",
		Entity:   "sale",
		EntityID: saleID.String(),
		Gym:      string(sale.Gym),
		Meta:     map[string]any{"installment_id": installmentID.String()},
		At:       now,
	})
	return sale, nil
}

// mergeLines validates the requested lines and folds repeated products into
// one line, keeping first-seen order.
func mergeLines(inputs []LineInput) ([]plannedLine, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", shared.ErrValidation)
	}
	index := make(map[uuid.UUID]int, len(inputs))
	var lines []plannedLine
	for _, in := range inputs {
		id, err := uuid.Parse(strings.TrimSpace(in.ProductID))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product id %q", shared.ErrValidation, in.ProductID)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
		if i, ok := index[id]; ok {
			lines[i].quantity += in.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, plannedLine{productID: id, quantity: in.Quantity})
	}
	return lines, nil
}

func buildInstallments(inputs []InstallmentInput, totalCents int64) ([]Installment, error) {
	var sum int64
	out := make([]Installment, 0, len(inputs))
	for i, in := range inputs {
		if err := shared.ValidateAmount(fmt.Sprintf("installment %d amount", i+1), in.Amount); err != nil {
			return nil, err
		}
		if in.DueDate.IsZero() {
			return nil, fmt.Errorf("%w: installment due date is required", shared.ErrValidation)
		}
		cents := shared.Cents(in.Amount)
		sum += cents
		out = append(out, Installment{
			ID:      uuid.New(),
			Number:  i + 1,
			Amount:  shared.FromCents(cents),
			DueDate: in.DueDate,
		})
	}
	if sum != totalCents {
		return nil, fmt.Errorf("sales: %w: installments add up to %.2f, total is %.2f",
			shared.ErrInstallmentMismatch, shared.FromCents(sum), shared.FromCents(totalCents))
	}
	return out, nil
}
