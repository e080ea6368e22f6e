package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vendora/vendora/internal/platform/httpx"
)

type contextKey struct{}

// ContextWithTenant stores the authenticated tenant id on the context.
func ContextWithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// TenantFromContext returns the authenticated tenant id, if any.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}

// Middleware authenticates requests by tenant API key. Requests carry
// X-Tenant-ID and X-API-Key headers; the verified tenant id is placed on the
// request context for handlers to scope their queries.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAPIKey rejects requests without a valid tenant API key.
func (m Middleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or malformed X-Tenant-ID header")
			return
		}
		if err := m.Service.VerifyAPIKey(r.Context(), tenantID, r.Header.Get("X-API-Key")); err != nil {
			if m.Logger != nil {
				m.Logger.Warn("api key rejected", slog.String("tenant_id", tenantID.String()))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), tenantID)))
	})
}
