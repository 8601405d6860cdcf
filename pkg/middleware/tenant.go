package middleware

import (
	"net/http"

	"github.com/canopysoft/atrium/pkg/contextkeys"
	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/tenants"
)

// TenantContextMiddleware resolves the authenticated principal's tenant and
// places it in the request context. Platform users carry no tenant and pass
// through. A principal referencing a suspended tenant is cut off here,
// before any handler runs.
type TenantContextMiddleware struct {
	store *tenants.Store
}

// NewTenantContextMiddleware creates the tenant resolution middleware
func NewTenantContextMiddleware(store *tenants.Store) *TenantContextMiddleware {
	return &TenantContextMiddleware{store: store}
}

// Handler wraps an HTTP handler with tenant resolution
func (m *TenantContextMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromRequest(r)
		if !ok || p.TenantID == nil {
			next.ServeHTTP(w, r)
			return
		}

		tenant, err := m.store.GetByRef(r.Context(), *p.TenantID)
		if err != nil {
			httputil.WriteForbidden(w, "unknown tenant")
			return
		}
		if tenant.Status != tenants.StatusActive {
			httputil.WriteForbidden(w, "tenant is suspended")
			return
		}

		ctx := contextkeys.WithTenant(r.Context(), tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromRequest returns the resolved tenant, if any
func TenantFromRequest(r *http.Request) (*tenants.Tenant, bool) {
	tenant, ok := r.Context().Value(contextkeys.TenantKey).(*tenants.Tenant)
	return tenant, ok
}
