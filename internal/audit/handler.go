package audit

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	loc     *time.Location
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, loc: loc}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermAuditView))
		r.Get("/", h.timeline)
		r.Get("/export.csv", h.export)
	})
}

func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	dr, err := httpx.QueryDateRange(q, h.loc)
	if err != nil {
		return TimelineFilters{}, err
	}
	filters := TimelineFilters{
		From:     dr.From,
		To:       dr.To,
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
	}
	if raw := strings.TrimSpace(q.Get("actor_id")); raw != "" {
		if filters.ActorID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return TimelineFilters{}, shared.ErrValidation
		}
	}
	gym, err := httpx.QueryGym(q, "gym")
	if err != nil {
		return TimelineFilters{}, err
	}
	if gym != nil {
		g := string(*gym)
		filters.Gym = &g
	}
	page := shared.PageRequestFromQuery(q)
	filters.Page, filters.PageSize = page.Page, page.PerPage
	return filters, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Timeline(r.Context(), principal, filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), principal, filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	if err := writeCSV(w, rows); err != nil {
		h.logger.Warn("audit export write", slog.Any("error", err))
	}
}

func writeCSV(w http.ResponseWriter, rows []TimelineRow) error {
	buf := bufio.NewWriterSize(w, 32*1024)
	out := csv.NewWriter(buf)
	if err := out.Write([]string{"at", "actor_id", "actor", "action", "entity", "entity_id", "gym", "meta"}); err != nil {
		return err
	}
	for _, row := range rows {
		var meta string
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return err
			}
			meta = string(raw)
		}
		if err := out.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.ActorID, 10),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Gym,
			meta,
		}); err != nil {
			return err
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
