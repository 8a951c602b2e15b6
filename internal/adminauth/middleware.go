package adminauth

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const operatorIDKey contextKey = "admin_operator_id"

// Middleware wraps the admin mux: any request from an IP absent from the
// allowlist (or made while the allowlist itself failed to load) gets a 403
// instead of reaching metrics/config-docs/health internals.
type Middleware struct {
	resolver *Resolver
}

// NewMiddleware builds a Middleware bound to resolver.
func NewMiddleware(resolver *Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// Handler enforces the allowlist ahead of next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.resolver.IsLoaded() {
			renderForbidden(w, ClientIP(r))
			return
		}
		operatorID, ok := m.resolver.OperatorID(r)
		if !ok {
			renderForbidden(w, ClientIP(r))
			return
		}
		ctx := context.WithValue(r.Context(), operatorIDKey, operatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorIDFromContext retrieves the resolved operator id, if any.
func OperatorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorIDKey).(string)
	return id, ok
}

func renderForbidden(w http.ResponseWriter, clientIP string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":    "admin access denied",
		"clientIp": clientIP,
	})
}
