package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/payments"
	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/products"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/reporting"
	"github.com/gymdesk/gymdesk/internal/sales"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/users"
	"github.com/gymdesk/gymdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Authenticator func(http.Handler) http.Handler

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	StudentsHandler    *students.Handler
	PaymentsHandler    *payments.Handler
	ProductsHandler    *products.Handler
	SalesHandler       *sales.Handler
	ReportingHandler   *reporting.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router. Everything under /api except
// /api/auth/login requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	authenticate := params.Authenticator
	if authenticate == nil {
		authenticate = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				params.AuthHandler.MountPublic(r)
				r.Group(func(r chi.Router) {
					r.Use(authenticate)
					params.AuthHandler.MountRoutes(r)
				})
			})
		}
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.StudentsHandler != nil {
				r.Route("/students", params.StudentsHandler.MountRoutes)
			}
			if params.PaymentsHandler != nil {
				r.Route("/payments", params.PaymentsHandler.MountRoutes)
			}
			if params.ProductsHandler != nil {
				r.Route("/products", params.ProductsHandler.MountRoutes)
			}
			if params.SalesHandler != nil {
				r.Route("/sales", params.SalesHandler.MountRoutes)
			}
			if params.ReportingHandler != nil {
				r.Route("/reports", params.ReportingHandler.MountRoutes)
			}
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})
	return r
}
