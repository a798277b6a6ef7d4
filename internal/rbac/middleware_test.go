package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

func serveWith(t *testing.T, mw func(http.Handler) http.Handler, p *tenant.Principal) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(tenant.ContextWithPrincipal(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	m := Middleware{Service: NewService()}
	assert.Equal(t, http.StatusUnauthorized, serveWith(t, m.RequireAny(shared.PermStudentsView), nil))
}

func TestStaffCannotEditProducts(t *testing.T) {
	m := Middleware{Service: NewService()}
	staff := tenant.Principal{UserID: 2, Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN}
	admin := tenant.Principal{UserID: 1, Role: tenant.RoleAdmin}

	assert.Equal(t, http.StatusForbidden, serveWith(t, m.RequireAll(shared.PermProductsEdit), &staff))
	assert.Equal(t, http.StatusNoContent, serveWith(t, m.RequireAll(shared.PermProductsEdit), &admin))
	assert.Equal(t, http.StatusNoContent, serveWith(t, m.RequireAny(shared.PermProductsEdit, shared.PermStockAdjust), &staff))
}

func TestUnknownRoleIsForbidden(t *testing.T) {
	m := Middleware{Service: NewService()}
	ghost := tenant.Principal{UserID: 9, Role: tenant.Role("ghost")}
	assert.Equal(t, http.StatusForbidden, serveWith(t, m.RequireAny(shared.PermSalesView), &ghost))
}

func TestGrantsAreSorted(t *testing.T) {
	grants := NewService().Grants()
	require.Len(t, grants, 3)
	assert.Equal(t, tenant.RoleAdmin, grants[0].Role)
	assert.Contains(t, grants[0].Permissions, shared.PermProductsEdit)
	assert.NotContains(t, grants[2].Permissions, shared.PermProductsEdit)
	assert.NotContains(t, grants[2].Permissions, shared.PermAuditView)
}
