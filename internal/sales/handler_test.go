package sales

import (
	"encoding/json"
	"fmt"
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

func newTestRouter(f *fixture, p tenant.Principal) http.Handler {
	h := NewHandler(slog.Default(), f.svc, rbac.Middleware{Service: rbac.NewService()})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/sales", h.MountRoutes)
	return r
}

func TestHandlerRecordSaleStatusCodes(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, uan)

	post := func(body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	ok := fmt.Sprintf(`{"payment_method":"cash","items":[{"product_id":%q,"quantity":2}]}`, f.bar.ID)
	rr := post(ok, "k1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var sale Sale
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))
	assert.Equal(t, 0.2, sale.Total)

	rr = post(ok, "k1")
	assert.Equal(t, http.StatusConflict, rr.Code)

	short := fmt.Sprintf(`{"payment_method":"cash","items":[{"product_id":%q,"quantity":1}]}`, f.glove.ID)
	rr = post(short, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "insufficient_stock")

	rr = post(`{"payment_method":"cash","items":[]}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(`{"payment_method":"barter","items":[{"product_id":"x","quantity":1}]}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerInstallmentMismatchIsUnprocessable(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, admin)

	body := fmt.Sprintf(`{"gym":"Platinum","payment_method":"installments",
		"items":[{"product_id":%q,"quantity":1}],
		"installments":[{"amount":5,"due_date":"2024-06-01T00:00:00Z"}]}`, f.glove.ID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "installment_mismatch")
}
