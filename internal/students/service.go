package students

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Student, int, error)
	Get(ctx context.Context, id uuid.UUID) (Student, error)
	Create(ctx context.Context, student Student) error
	Update(ctx context.Context, student Student) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// Service implements the student registry.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditRecorder
	reports shared.CacheInvalidator
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

// List returns students visible to p, sorted by name.
func (s *Service) List(ctx context.Context, p tenant.Principal, filter ListFilter) ([]Student, shared.Pagination, error) {
	filter.Gym = tenant.NarrowGym(p, filter.Gym)
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Get loads one student, enforcing gym ownership.
func (s *Service) Get(ctx context.Context, p tenant.Principal, id uuid.UUID) (Student, error) {
	student, err := s.repo.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err := tenant.Authorize(p, student.Gym); err != nil {
		return Student{}, err
	}
	return student, nil
}

// Create enrolls a new active student.
func (s *Service) Create(ctx context.Context, p tenant.Principal, req CreateStudentRequest) (Student, error) {
	name := NormalizeName(req.Name)
	phone := normalizePhone(req.Phone)
	if name == "" || phone == "" {
		return Student{}, fmt.Errorf("%w: name and phone are required", shared.ErrValidation)
	}
	membership, err := parseMembership(req.MembershipType)
	if err != nil {
		return Student{}, err
	}
	var requested tenant.Gym
	if req.Gym != "" {
		if requested, err = tenant.ParseGym(req.Gym); err != nil {
			return Student{}, err
		}
	}
	gym, err := tenant.ResolveWriteGym(p, requested)
	if err != nil {
		return Student{}, err
	}
	now := s.clock.Now()
	student := Student{
		ID:             uuid.New(),
		Name:           name,
		Phone:          phone,
		Gym:            gym,
		MembershipType: membership,
		Status:         StatusActive,
		PhotoURL:       req.PhotoURL,
		EnrollmentDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return Student{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "student.create",
		Entity:   "student",
		EntityID: student.ID.String(),
		Gym:      string(gym),
		Meta:     map[string]any{"name": student.Name, "membership_type": student.MembershipType},
		At:       now,
	})
	return student, nil
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, p tenant.Principal, id uuid.UUID, req UpdateStudentRequest) (Student, error) {
	student, err := s.Get(ctx, p, id)
	if err != nil {
		return Student{}, err
	}
	if req.Name != nil {
		student.Name = NormalizeName(*req.Name)
		if student.Name == "" {
			return Student{}, fmt.Errorf("%w: name cannot be empty", shared.ErrValidation)
		}
	}
	if req.Phone != nil {
		student.Phone = normalizePhone(*req.Phone)
		if student.Phone == "" {
			return Student{}, fmt.Errorf("%w: phone cannot be empty", shared.ErrValidation)
		}
	}
	if req.MembershipType != nil {
		if student.MembershipType, err = parseMembership(*req.MembershipType); err != nil {
			return Student{}, err
		}
	}
	if req.Status != nil {
		if student.Status, err = ParseStatus(*req.Status); err != nil {
			return Student{}, err
		}
	}
	if req.PhotoURL != nil {
		student.PhotoURL = *req.PhotoURL
	}
	if req.Gym != nil {
		gym, err := tenant.ParseGym(*req.Gym)
		if err != nil {
			return Student{}, err
		}
		if gym != student.Gym {
			if err := tenant.RequireAdmin(p); err != nil {
				return Student{}, err
			}
			student.Gym = gym
		}
	}
	student.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, student); err != nil {
		return Student{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "student.update",
		Entity:   "student",
		EntityID: student.ID.String(),
		Gym:      string(student.Gym),
		At:       student.UpdatedAt,
	})
	return student, nil
}

// Delete removes the student together with its payment history.
func (s *Service) Delete(ctx context.Context, p tenant.Principal, id uuid.UUID) error {
	student, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.BumpCache(ctx, s.reports, s.logger)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "student.delete",
		Entity:   "student",
		EntityID: id.String(),
		Gym:      string(student.Gym),
		Meta:     map[string]any{"name": student.Name},
		At:       s.clock.Now(),
	})
	return nil
}

// MarkOverdue flags active students whose next payment date has passed.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.repo.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("students marked overdue", slog.Int64("count", n), slog.Time("as_of", now))
	}
	return n, nil
}
