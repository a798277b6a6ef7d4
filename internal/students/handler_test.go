package students

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

func newTestRouter(t *testing.T, p *tenant.Principal) (http.Handler, *memoryRepo) {
	t.Helper()
	svc, repo, _, _ := newTestService()
	h := NewHandler(slog.Default(), svc, rbac.Middleware{Service: rbac.NewService()})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if p != nil {
				req = req.WithContext(tenant.ContextWithPrincipal(req.Context(), *p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/students", h.MountRoutes)
	return r, repo
}

func TestHandlerCreateAndGet(t *testing.T) {
	router, _ := newTestRouter(t, &uan)

	rr := httptest.NewRecorder()
	body := `{"name":"juan perez","phone":"123","membership_type":"weekly"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Student
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Juan Perez", created.Name)
	assert.Equal(t, tenant.GymUAN, created.Gym)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students/"+created.ID.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerValidationAndAuth(t *testing.T) {
	router, _ := newTestRouter(t, &uan)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"name":"x","phone":"1","membership_type":"yearly"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students?status=frozen", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	anon, _ := newTestRouter(t, nil)
	rr = httptest.NewRecorder()
	anon.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerForeignGymIsForbidden(t *testing.T) {
	router, repo := newTestRouter(t, &uan)
	svc := NewService(repo, nil, nil, nil, nil)
	s, err := svc.Create(t.Context(), admin, CreateStudentRequest{Name: "Ana", Phone: "9", Gym: "Platinum", MembershipType: "class"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/students/"+s.ID.String(), nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students?gym=Platinum", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Data []Student `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Data)
}
