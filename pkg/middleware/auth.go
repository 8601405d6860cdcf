// Package middleware provides HTTP middleware for authentication and
// tenant resolution. Route authorization lives in pkg/routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/canopysoft/atrium/pkg/contextkeys"
	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/principal"
	"github.com/canopysoft/atrium/pkg/session"
)

// AuthMiddleware resolves the session token on each request and places the
// principal in the request context. With optional set, unauthenticated
// requests pass through without a principal; the route guard then limits
// them to public routes.
type AuthMiddleware struct {
	sessions *session.Store
	logger   *observability.Logger
	optional bool
}

// NewAuthMiddleware creates an authentication middleware
func NewAuthMiddleware(sessions *session.Store, logger *observability.Logger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with session authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing session token")
			return
		}

		sess, err := m.sessions.Get(r.Context(), token)
		if err != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), sess.Principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromRequest returns the authenticated principal, if any
func PrincipalFromRequest(r *http.Request) (*principal.Principal, bool) {
	p, ok := r.Context().Value(contextkeys.PrincipalKey).(*principal.Principal)
	return p, ok
}

// extractToken reads the session token from the Authorization header or
// the session cookie. Browser navigations carry the cookie; API clients
// send a bearer header.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie("atrium_session"); err == nil {
		return cookie.Value
	}
	return ""
}
