package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) Timeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filters, offset, limit
	out := s.rows
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	admin = tenant.Principal{UserID: 1, Username: "admin", Role: tenant.RoleAdmin}
	staff = tenant.Principal{UserID: 2, Username: "front", Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN}
)

func sampleRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{
			ID: int64(i + 1), At: time.Date(2024, 3, 10-i, 10, 0, 0, 0, time.UTC),
			ActorID: 1, Actor: "admin", Action: "payment.record", Entity: "payment", EntityID: "p", Gym: "UAN",
			Meta: map[string]any{"amount": 500},
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(3)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), admin, TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)

	_, err = svc.Timeline(context.Background(), admin, TimelineFilters{Page: 3, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.Equal(t, 2*maxPageSize, repo.lastOffset)
}

func TestTimelineNarrowsNonAdmins(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	platinum := "Platinum"

	_, err := svc.Timeline(context.Background(), staff, TimelineFilters{Gym: &platinum})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Gym)
	assert.Equal(t, "UAN", *repo.lastFilter.Gym)

	_, err = svc.Timeline(context.Background(), admin, TimelineFilters{})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.Gym)
}

func TestHandlerTimelineAndExport(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(2)}
	h := NewHandler(nil, NewService(repo), rbac.Middleware{Service: rbac.NewService()}, time.UTC)

	serve := func(p tenant.Principal, target string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(tenant.ContextWithPrincipal(req.Context(), p)))
			})
		})
		r.Route("/audit", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	rr := serve(admin, "/audit?entity=payment&from=2024-03-01&to=2024-03-31")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"action":"payment.record"`)
	assert.Equal(t, "payment", repo.lastFilter.Entity)
	require.NotNil(t, repo.lastFilter.To)

	rr = serve(admin, "/audit/export.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "at,actor_id"))
	assert.Contains(t, lines[1], `"{""amount"":500}"`)

	assert.Equal(t, http.StatusForbidden, serve(staff, "/audit").Code)
	assert.Equal(t, http.StatusBadRequest, serve(admin, "/audit?actor_id=x").Code)
}
