package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
	"github.com/gymdesk/gymdesk/internal/users"
)

type stubUsers map[string]users.User

func (s stubUsers) FindByUsername(ctx context.Context, username string) (users.User, error) {
	u, ok := s[strings.ToLower(username)]
	if !ok {
		return users.User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	return u, nil
}

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "secret", time.Hour, nil)
	accounts := stubUsers{
		"front": {ID: 2, Username: "front", Name: "Front Desk", PasswordHash: hash(t, "password1"), Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN, IsActive: true},
		"gone":  {ID: 3, Username: "gone", Name: "Gone", PasswordHash: hash(t, "password1"), Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN},
	}
	return NewService(accounts, sessions, nil), mr
}

func TestLoginIssuesTokenThatResolves(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "FRONT", "password1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	p, sess, err := svc.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.UserID)
	assert.Equal(t, tenant.GymUAN, p.AssignedGym)
	assert.Equal(t, tenant.RoleStaff, p.Role)
	assert.Equal(t, res.ExpiresAt.Unix(), sess.ExpiresAt.Unix())

	require.NoError(t, svc.Logout(ctx, res.Token))
	_, _, err = svc.Resolve(ctx, res.Token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tc := range []struct{ user, pass string }{
		{"front", "wrong-password"},
		{"nobody", "password1"},
		{"gone", "password1"},
	} {
		_, err := svc.Login(ctx, tc.user, tc.pass)
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, tc.user)
	}
}

func TestMiddlewareAndRoutes(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		h.MountPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(svc.Middleware)
			h.MountRoutes(r)
		})
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"front","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"front","password":"password1"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res LoginResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"assigned_gym":"UAN"`)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPrincipalFromSessionRejectsGymlessStaff(t *testing.T) {
	_, err := principalFromSession(&shared.Session{UserID: 5, Values: map[string]string{valueRole: "staff"}})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	p, err := principalFromSession(&shared.Session{UserID: 1, Values: map[string]string{valueRole: "admin"}})
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}
