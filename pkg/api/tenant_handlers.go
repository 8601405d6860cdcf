package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/middleware"
	"github.com/canopysoft/atrium/pkg/tenants"
)

// TenantHandlers handles tenant directory HTTP requests. Every endpoint is
// platform-only: tenant-scoped principals cannot see or manage the
// directory.
type TenantHandlers struct {
	store *tenants.Store
}

// NewTenantHandlers creates a new TenantHandlers
func NewTenantHandlers(store *tenants.Store) *TenantHandlers {
	return &TenantHandlers{store: store}
}

// RegisterRoutes registers tenant directory routes
func (h *TenantHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/tenants", h.ListTenants).Methods("GET")
	router.HandleFunc("/api/v1/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/api/v1/tenants/{ref}", h.GetTenant).Methods("GET")
	router.HandleFunc("/api/v1/tenants/{ref}/status", h.UpdateTenantStatus).Methods("PUT")
}

// ListTenants lists all tenants
func (h *TenantHandlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	if !requirePlatform(w, r) {
		return
	}

	all, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	out := make([]TenantResponse, 0, len(all))
	for _, t := range all {
		out = append(out, toTenantResponse(t))
	}
	httputil.WriteSuccess(w, out)
}

// CreateTenant registers a new tenant
func (h *TenantHandlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	if !requirePlatform(w, r) {
		return
	}

	var req CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Ref, "ref") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	tenant, err := h.store.Create(r.Context(), req.Ref, req.Name)
	if err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}
	httputil.WriteCreated(w, toTenantResponse(tenant))
}

// GetTenant retrieves one tenant by ref
func (h *TenantHandlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	if !requirePlatform(w, r) {
		return
	}

	tenant, err := h.store.GetByRef(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, toTenantResponse(tenant))
}

// UpdateTenantStatus suspends or reactivates a tenant
func (h *TenantHandlers) UpdateTenantStatus(w http.ResponseWriter, r *http.Request) {
	if !requirePlatform(w, r) {
		return
	}

	var req UpdateTenantStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	status := tenants.Status(req.Status)
	if status != tenants.StatusActive && status != tenants.StatusSuspended {
		httputil.WriteBadRequest(w, "status must be active or suspended")
		return
	}

	if err := h.store.SetStatus(r.Context(), mux.Vars(r)["ref"], status); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// requirePlatform admits only platform principals, those with no tenant
func requirePlatform(w http.ResponseWriter, r *http.Request) bool {
	p, ok := middleware.PrincipalFromRequest(r)
	if !ok || p == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}
	if p.TenantID != nil {
		httputil.WriteForbidden(w, "platform access required")
		return false
	}
	return true
}
