package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountPublic registers the unauthenticated login route.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/login", h.login)
}

// MountRoutes registers routes that require an authenticated caller.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Logout(r.Context(), shared.BearerToken(r)); err != nil {
		h.logger.Error("logout", slog.String("user_id", subject(principal)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, err := tenant.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := map[string]any{"user": principal}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		resp["expires_at"] = sess.ExpiresAt
	}
	httpx.JSON(w, http.StatusOK, resp)
}
