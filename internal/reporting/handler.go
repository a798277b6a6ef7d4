package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

const requestTimeout = 5 * time.Second

// Handler serves the summary and dashboard endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	location *time.Location
}

// NewHandler constructs the reporting handler. Plain dates in query strings
// are read in loc.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, service: service, rbac: rbac, location: loc}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.PermReportsView))
	r.Get("/dashboard", h.dashboard)
	r.Method(http.MethodGet, "/payments", h.PaymentSummaryHandler())
	r.Method(http.MethodGet, "/sales", h.SaleSummaryHandler())
}

// PaymentSummaryHandler serves grouped payment totals.
func (h *Handler) PaymentSummaryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, filter, ok := h.parse(w, r)
		if !ok {
			return
		}
		summary, err := h.service.PaymentSummary(r.Context(), principal, filter)
		h.respond(w, "payment summary", summary, err)
	})
}

// SaleSummaryHandler serves grouped sale totals.
func (h *Handler) SaleSummaryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, filter, ok := h.parse(w, r)
		if !ok {
			return
		}
		summary, err := h.service.SaleSummary(r.Context(), principal, filter)
		h.respond(w, "sale summary", summary, err)
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	principal, filter, ok := h.parse(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	dash, err := h.service.Dashboard(ctx, principal, filter)
	h.respond(w, "dashboard", dash, err)
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (tenant.Principal, Filter, bool) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return tenant.Principal{}, Filter{}, false
	}
	q := r.URL.Query()
	var filter Filter
	if filter.Gym, err = httpx.QueryGym(q, "gym"); err != nil {
		httpx.RespondError(w, err)
		return tenant.Principal{}, Filter{}, false
	}
	window, err := httpx.QueryDateRange(q, h.location)
	if err != nil {
		httpx.RespondError(w, err)
		return tenant.Principal{}, Filter{}, false
	}
	filter.From, filter.To = window.From, window.To
	if filter.GroupBy, err = ParseGroupBy(q.Get("group_by")); err != nil {
		httpx.RespondError(w, err)
		return tenant.Principal{}, Filter{}, false
	}
	return principal, filter, true
}

func (h *Handler) respond(w http.ResponseWriter, what string, body any, err error) {
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error(what, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}
