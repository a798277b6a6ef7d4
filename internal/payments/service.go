package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// RepositoryPort abstracts persistence for the payment ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Payment, int, error)
	StudentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// MetricsRecorder receives business counters.
type MetricsRecorder interface {
	PaymentRecorded(gym, method string, amount float64)
}

// Service implements the payment ledger.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditRecorder
	reports shared.CacheInvalidator
	metrics MetricsRecorder
	clock   shared.Clock
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, reports shared.CacheInvalidator, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, reports: reports, clock: clock, logger: logger}
}

// WithMetrics attaches a business metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// Record stores a payment and moves the student's cycle forward in the same
// transaction. The student becomes active.
//
// The cycle always follows the latest-dated payment on file, so a backdated
// payment is stored but leaves LastPaymentDate and NextPaymentDate at the
// newer payment's values. Delete and the reconcile job derive the cycle the
// same way.
func (s *Service) Record(ctx context.Context, p tenant.Principal, req RecordPaymentRequest) (Result, error) {
	studentID, err := uuid.Parse(strings.TrimSpace(req.StudentID))
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid student id", shared.ErrValidation)
	}
	if err := shared.ValidateAmount("amount", req.Amount); err != nil {
		return Result{}, err
	}
	ptype, err := ParseType(req.PaymentType)
	if err != nil {
		return Result{}, err
	}
	method, err := ParseMethod(req.PaymentMethod)
	if err != nil {
		return Result{}, err
	}
	now := s.clock.Now()
	paidAt := now
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paidAt = *req.PaymentDate
	}

	var result Result
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		student, err := tx.GetStudentForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if err := tenant.Authorize(p, student.Gym); err != nil {
			return err
		}
		payment := Payment{
			ID:            uuid.New(),
			StudentID:     student.ID,
			StudentName:   student.Name,
			Amount:        req.Amount,
			PaymentType:   ptype,
			PaymentMethod: method,
			Gym:           student.Gym,
			ProcessedBy:   p.UserID,
			PaymentDate:   paidAt,
			Comments:      strings.TrimSpace(req.Comments),
			CreatedAt:     now,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("payments: insert: %w", err)
		}
		latest, err := tx.LatestPayment(ctx, student.ID)
		if err != nil {
			return err
		}
		cycle := CycleFrom(latest)
		active := students.StatusActive
		if err := tx.SetStudentCycle(ctx, student.ID, cycle, &active, now); err != nil {
			return fmt.Errorf("payments: update student: %w", err)
		}
		student.LastPaymentDate = cycle.LastPaymentDate
		student.NextPaymentDate = cycle.NextPaymentDate
		student.Status = active
		student.UpdatedAt = now
		result = Result{Payment: payment, Student: student}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	shared.BumpCache(ctx, s.reports, s.logger)
	if s.metrics != nil {
		s.metrics.PaymentRecorded(string(result.Payment.Gym), string(method), req.Amount)
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "payment.record",
		Entity:   "payment",
		EntityID: result.Payment.ID.String(),
		Gym:      string(result.Payment.Gym),
		Meta: map[string]any{
			"student_id": studentID.String(),
			"amount":     req.Amount,
			"type":       ptype,
			"method":     method,
		},
		At: now,
	})
	return result, nil
}

// Delete removes a payment and recomputes the student's cycle from the
// latest-dated payment left, or clears it when none remain.
func (s *Service) Delete(ctx context.Context, p tenant.Principal, id uuid.UUID) (students.Cycle, error) {
	now := s.clock.Now()
	var (
		removed Payment
		cycle   students.Cycle
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tenant.Authorize(p, payment.Gym); err != nil {
			return err
		}
		if _, err := tx.GetStudentForUpdate(ctx, payment.StudentID); err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		latest, err := tx.LatestPayment(ctx, payment.StudentID)
		if err != nil {
			return err
		}
		cycle = CycleFrom(latest)
		if err := tx.SetStudentCycle(ctx, payment.StudentID, cycle, nil, now); err != nil {
			return fmt.Errorf("payments: update student: %w", err)
		}
		removed = payment
		return nil
	})
	if err != nil {
		return students.Cycle{}, err
	}

	shared.BumpCache(ctx, s.reports, s.logger)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "payment.delete",
		Entity:   "payment",
		EntityID: id.String(),
		Gym:      string(removed.Gym),
		Meta:     map[string]any{"student_id": removed.StudentID.String(), "amount": removed.Amount},
		At:       now,
	})
	return cycle, nil
}

// Get loads one payment, enforcing gym ownership.
func (s *Service) Get(ctx context.Context, p tenant.Principal, id uuid.UUID) (Payment, error) {
	payment, err := s.repo.Get(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if err := tenant.Authorize(p, payment.Gym); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// List returns payments visible to p, newest first.
func (s *Service) List(ctx context.Context, p tenant.Principal, filter ListFilter) ([]Payment, shared.Pagination, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Reconcile recomputes stored cycles from the payment history and repairs any
// drift. A nil studentID sweeps every student.
func (s *Service) Reconcile(ctx context.Context, studentID *uuid.UUID) (ReconcileReport, error) {
	var ids []uuid.UUID
	if studentID != nil {
		ids = []uuid.UUID{*studentID}
	} else {
		var err error
		if ids, err = s.repo.StudentIDs(ctx); err != nil {
			return ReconcileReport{}, err
		}
	}

	var report ReconcileReport
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fixed := false
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			student, err := tx.GetStudentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			latest, err := tx.LatestPayment(ctx, id)
			if err != nil {
				return err
			}
			want := CycleFrom(latest)
			have := students.Cycle{LastPaymentDate: student.LastPaymentDate, NextPaymentDate: student.NextPaymentDate}
			if sameCycle(want, have) {
				return nil
			}
			fixed = true
			return tx.SetStudentCycle(ctx, id, want, nil, s.clock.Now())
		})
		if err != nil {
			return report, fmt.Errorf("payments: reconcile %s: %w", id, err)
		}
		report.Checked++
		if fixed {
			report.Fixed++
			report.Drifted = append(report.Drifted, id)
		}
	}
	if report.Fixed > 0 {
		s.logger.Warn("payment cycle drift repaired", slog.Int("fixed", report.Fixed), slog.Int("checked", report.Checked))
		shared.BumpCache(ctx, s.reports, s.logger)
	}
	return report, nil
}
