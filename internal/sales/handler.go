package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// IdempotencyHeader carries the client-chosen key guarding double submission.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	summary   http.Handler
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// WithSummary mounts the grouped sale totals under /summary.
func (h *Handler) WithSummary(summary http.Handler) *Handler {
	h.summary = summary
	return h
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/", h.list)
		if h.summary != nil {
			r.With(h.rbac.RequireAny(shared.PermReportsView)).Method(http.MethodGet, "/summary", h.summary)
		}
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesEdit))
		r.Post("/", h.record)
		r.Put("/{id}/installments/{installmentId}", h.payInstallment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageRequestFromQuery(q)}
	if filter.Gym, err = httpx.QueryGym(q, "gym"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.CustomerID, err = httpx.QueryUUID(q, "customer_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := q.Get("method"); raw != "" {
		m, err := ParseMethod(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Method = &m
	}
	window, err := httpx.QueryDateRange(q, h.service.clock.Now().Location())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.From, filter.To = window.From, window.To

	items, page, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordSaleRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Record(r.Context(), principal, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.logger.Warn("record sale", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("sale recorded",
		slog.String("sale_id", sale.ID.String()),
		slog.String("gym", string(sale.Gym)),
		slog.Float64("total", sale.Total))
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) payInstallment(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	saleID, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	installmentID, err := httpx.URLParamUUID(r, "installmentId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.MarkInstallmentPaid(r.Context(), principal, saleID, installmentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}
