package payments

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// ReconcileEnqueuer schedules a background cycle reconciliation.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, studentID *uuid.UUID) error
}

// Handler wires HTTP endpoints for the payment ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	summary   http.Handler
	enqueuer  ReconcileEnqueuer
}

// NewHandler constructs the payments handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// WithSummary mounts the grouped payment totals under /summary.
func (h *Handler) WithSummary(summary http.Handler) *Handler {
	h.summary = summary
	return h
}

// WithEnqueuer makes POST /reconcile asynchronous.
func (h *Handler) WithEnqueuer(enqueuer ReconcileEnqueuer) *Handler {
	h.enqueuer = enqueuer
	return h
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPaymentsView))
		r.Get("/", h.list)
		if h.summary != nil {
			r.With(h.rbac.RequireAny(shared.PermReportsView)).Method(http.MethodGet, "/summary", h.summary)
		}
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPaymentsEdit))
		r.Post("/", h.record)
		r.Post("/reconcile", h.reconcile)
		r.Delete("/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageRequestFromQuery(q)}
	var err error
	if filter.Gym, err = httpx.QueryGym(q, "gym"); err != nil {
		return filter, err
	}
	if filter.StudentID, err = httpx.QueryUUID(q, "student_id"); err != nil {
		return filter, err
	}
	if raw := q.Get("type"); raw != "" {
		t, err := ParseType(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = &t
	}
	if raw := q.Get("method"); raw != "" {
		m, err := ParseMethod(raw)
		if err != nil {
			return filter, err
		}
		filter.Method = &m
	}
	window, err := httpx.QueryDateRange(q, h.service.clock.Now().Location())
	if err != nil {
		return filter, err
	}
	filter.From, filter.To = window.From, window.To
	return filter, nil
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
	payment, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Record(r.Context(), principal, req)
	if err != nil {
		h.logger.Warn("record payment", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("payment recorded",
		slog.String("payment_id", result.Payment.ID.String()),
		slog.String("student_id", result.Student.ID.String()),
		slog.Float64("amount", result.Payment.Amount))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
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
	cycle, err := h.service.Delete(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":                id.String(),
		"last_payment_date": cycle.LastPaymentDate,
		"next_payment_date": cycle.NextPaymentDate,
	})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := tenant.RequireAdmin(principal); err != nil {
		httpx.RespondError(w, err)
		return
	}
	studentID, err := httpx.QueryUUID(r.URL.Query(), "student_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueReconcile(r.Context(), studentID); err != nil {
			h.logger.Error("enqueue reconcile", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	report, err := h.service.Reconcile(r.Context(), studentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
