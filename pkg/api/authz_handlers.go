package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/middleware"
	"github.com/canopysoft/atrium/pkg/routes"
)

// AuthzHandlers exposes the route authorization engine over HTTP: the menu
// endpoint the frontend builds navigation from, and an explicit decision
// check.
type AuthzHandlers struct {
	engine *routes.Engine
}

// NewAuthzHandlers creates a new AuthzHandlers
func NewAuthzHandlers(engine *routes.Engine) *AuthzHandlers {
	return &AuthzHandlers{engine: engine}
}

// RegisterRoutes registers authorization routes
func (h *AuthzHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/menu", h.GetMenu).Methods("GET")
	router.HandleFunc("/api/v1/authz/check", h.CheckPath).Methods("POST")
}

// GetMenu returns the routes the current principal may visit, in portal
// order. Anonymous callers get the public routes only.
func (h *AuthzHandlers) GetMenu(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromRequest(r)

	accessible, err := h.engine.AccessibleRoutes(r.Context(), p)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	entries := make([]MenuEntry, 0, len(accessible))
	for _, d := range accessible {
		entries = append(entries, MenuEntry{
			Key:       d.Key,
			Path:      d.Path,
			Component: d.Component,
			Portal:    string(d.Portal),
			Meta:      d.Meta,
		})
	}
	httputil.WriteSuccess(w, entries)
}

// CheckPath evaluates the authorization decision for a single path
func (h *AuthzHandlers) CheckPath(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Path, "path") {
		return
	}

	p, _ := middleware.PrincipalFromRequest(r)

	decision, err := h.engine.Authorize(r.Context(), p, req.Path)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	resp := CheckResponse{
		Outcome:  string(decision.Outcome),
		Redirect: decision.Redirect,
	}
	if decision.Route != nil {
		resp.RouteKey = decision.Route.Key
	}
	httputil.WriteSuccess(w, resp)
}
