package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service manages staff accounts. Every operation is admin only.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	clock  shared.Clock
	logger *slog.Logger
	cost   int
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, clock: clock, logger: logger, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// List returns every account.
func (s *Service) List(ctx context.Context, p tenant.Principal) ([]User, error) {
	if err := tenant.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Create provisions an account. Non-admin roles must be tied to a gym.
func (s *Service) Create(ctx context.Context, p tenant.Principal, req CreateUserRequest) (User, error) {
	if err := tenant.RequireAdmin(p); err != nil {
		return User{}, err
	}
	role := tenant.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, req.Role)
	}
	var gym tenant.Gym
	if strings.TrimSpace(req.AssignedGym) != "" {
		var err error
		if gym, err = tenant.ParseGym(req.AssignedGym); err != nil {
			return User{}, err
		}
	}
	if role != tenant.RoleAdmin && gym == "" {
		return User{}, fmt.Errorf("%w: %s accounts need an assigned gym", shared.ErrValidation, role)
	}
	if len(req.Password) < 8 {
		return User{}, fmt.Errorf("%w: password too short", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	now := s.clock.Now()
	user := User{
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		AssignedGym:  gym,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Username == "" || user.Name == "" {
		return User{}, fmt.Errorf("%w: username and name are required", shared.ErrValidation)
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return User{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "user.create",
		Entity:   "user",
		EntityID: fmt.Sprint(user.ID),
		Gym:      string(gym),
		Meta:     map[string]any{"username": user.Username, "role": role},
		At:       now,
	})
	return user, nil
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, p tenant.Principal, id int64, active bool) (User, error) {
	if err := tenant.RequireAdmin(p); err != nil {
		return User{}, err
	}
	if id == p.UserID && !active {
		return User{}, fmt.Errorf("%w: cannot deactivate your own account", shared.ErrValidation)
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return User{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  p.UserID,
		Action:   "user.set_active",
		Entity:   "user",
		EntityID: fmt.Sprint(id),
		Meta:     map[string]any{"active": active},
		At:       s.clock.Now(),
	})
	return s.repo.Get(ctx, id)
}
