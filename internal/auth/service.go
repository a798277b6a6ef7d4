package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/gymdesk/gymdesk/internal/users"
)

// UserLookup finds accounts by username.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
}

// Session value keys.
const (
	valueUsername = "username"
	valueName     = "name"
	valueRole     = "role"
	valueGym      = "gym"
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      tenant.Principal `json:"user"`
}

// Service wraps authentication business rules.
type Service struct {
	users    UserLookup
	sessions *shared.SessionManager
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(users UserLookup, sessions *shared.SessionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, logger: logger}
}

// Login validates username/password credentials and issues a bearer token.
// Unknown users, inactive accounts and bad passwords all fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !user.IsActive {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	principal := user.Principal()
	token, sess, err := s.sessions.Issue(ctx, user.ID, map[string]string{
		valueUsername: principal.Username,
		valueName:     principal.Name,
		valueRole:     string(principal.Role),
		valueGym:      string(principal.AssignedGym),
	})
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("login", slog.Int64("user_id", user.ID), slog.String("role", string(principal.Role)))
	return LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: principal}, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Resolve loads the session behind token and rebuilds the principal.
func (s *Service) Resolve(ctx context.Context, token string) (tenant.Principal, *shared.Session, error) {
	if strings.TrimSpace(token) == "" {
		return tenant.Principal{}, nil, shared.ErrUnauthorized
	}
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		return tenant.Principal{}, nil, err
	}
	p, err := principalFromSession(sess)
	if err != nil {
		return tenant.Principal{}, nil, err
	}
	return p, sess, nil
}

func principalFromSession(sess *shared.Session) (tenant.Principal, error) {
	p := tenant.Principal{
		UserID:      sess.UserID,
		Username:    sess.Get(valueUsername),
		Name:        sess.Get(valueName),
		Role:        tenant.Role(sess.Get(valueRole)),
		AssignedGym: tenant.Gym(sess.Get(valueGym)),
	}
	if p.UserID <= 0 || !p.Role.Valid() {
		return tenant.Principal{}, shared.ErrUnauthorized
	}
	if !p.IsAdmin() && !p.AssignedGym.Valid() {
		return tenant.Principal{}, shared.ErrUnauthorized
	}
	return p, nil
}

// subject renders the user id for logs.
func subject(p tenant.Principal) string {
	return strconv.FormatInt(p.UserID, 10)
}
