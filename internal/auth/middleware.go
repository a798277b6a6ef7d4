package auth

import (
	"log/slog"
	"net/http"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Middleware attaches the caller's principal and session to the request
// context. Requests without a valid bearer token get 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, sess, err := s.Resolve(r.Context(), shared.BearerToken(r))
		if err != nil {
			s.logger.Debug("reject request", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		ctx := tenant.ContextWithPrincipal(r.Context(), principal)
		ctx = shared.ContextWithSession(ctx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
