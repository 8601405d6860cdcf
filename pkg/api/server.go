package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/audit"
	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/middleware"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/roles"
	"github.com/canopysoft/atrium/pkg/routes"
	"github.com/canopysoft/atrium/pkg/session"
	"github.com/canopysoft/atrium/pkg/tenants"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Dependencies collects everything the API server is assembled from
type Dependencies struct {
	Roles      *roles.Manager
	RoleFinder RoleFinder
	Catalog    *permissions.Catalog
	Resolver   *permissions.Resolver
	Engine     *routes.Engine
	Tenants    *tenants.Store
	Sessions   *session.Store
	SSO        IdentityExchanger
	Users      UserDirectory
	Cache      CacheInvalidator
	Auditor    audit.Logger
	Logger     *observability.Logger

	// EditSessionTTL bounds how long an abandoned role edit stays open
	EditSessionTTL time.Duration
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: deps.Logger,
	}

	editSessions := NewEditSessionRegistry(256, deps.EditSessionTTL)

	roleHandlers := NewRoleHandlers(deps.Roles, deps.Catalog, deps.Resolver, editSessions, deps.Cache, deps.Logger)
	authzHandlers := NewAuthzHandlers(deps.Engine)
	tenantHandlers := NewTenantHandlers(deps.Tenants)
	authHandlers := NewAuthHandlers(deps.SSO, deps.Sessions, deps.Users, deps.RoleFinder, deps.Auditor, deps.Logger)

	roleHandlers.RegisterRoutes(s.router)
	authzHandlers.RegisterRoutes(s.router)
	tenantHandlers.RegisterRoutes(s.router)
	authHandlers.RegisterRoutes(s.router)

	// Auth is optional at the router level: public endpoints and the login
	// flow must pass, and every protected handler checks the principal
	// itself.
	auth := middleware.NewAuthMiddleware(deps.Sessions, deps.Logger, true)
	tenant := middleware.NewTenantContextMiddleware(deps.Tenants)

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.MaxBytesMiddleware(maxRequestBody),
		auditMiddleware(deps.Auditor),
		auth.Handler,
		tenant.Handler,
	)(s.router)

	return s
}

// auditMiddleware makes the audit sink reachable from request contexts, so
// the route guard and engine can record denials without holding a reference.
func auditMiddleware(auditor audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auditor != nil {
				r = r.WithContext(audit.WithLogger(r.Context(), auditor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Router exposes the underlying router so callers can mount extra handlers,
// such as the portal page server behind the route guard.
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
