package shared

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewSessionManager(client, "secret", time.Hour, FixedClock(now)), mr
}

func TestSessionIssueAndLoad(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	token, issued, err := sm.Issue(ctx, 7, map[string]string{"role": "staff", "gym": "UAN"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	loaded, err := sm.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, loaded.ID)
	assert.Equal(t, int64(7), loaded.UserID)
	assert.Equal(t, "UAN", loaded.Get("gym"))
	assert.True(t, issued.IssuedAt.Add(time.Hour).Equal(loaded.ExpiresAt))
}

func TestSessionRejectsTamperedToken(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	token, _, err := sm.Issue(ctx, 7, nil)
	require.NoError(t, err)

	_, err = sm.Load(ctx, token+"x")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = sm.Load(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	token, _, err := sm.Issue(ctx, 7, nil)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = sm.Load(ctx, token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionDestroy(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	token, _, err := sm.Issue(ctx, 7, nil)
	require.NoError(t, err)
	require.NoError(t, sm.Destroy(ctx, token))

	_, err = sm.Load(ctx, token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}

func TestPageRequestNormalize(t *testing.T) {
	p := PageRequest{Page: 0, PerPage: 1000}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, maxPerPage, p.PerPage)
	assert.Equal(t, 50, PageRequest{Page: 2, PerPage: 50}.Offset())

	meta := NewPagination(2, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)
}
