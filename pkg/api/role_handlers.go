package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/canopysoft/atrium/pkg/httputil"
	"github.com/canopysoft/atrium/pkg/middleware"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/roles"
)

// CacheInvalidator drops cached permission snapshots after role mutations
type CacheInvalidator interface {
	Invalidate()
}

// RoleHandlers handles role management HTTP requests
type RoleHandlers struct {
	manager  *roles.Manager
	catalog  *permissions.Catalog
	resolver *permissions.Resolver
	sessions *EditSessionRegistry
	cache    CacheInvalidator
	logger   *observability.Logger
}

// NewRoleHandlers creates a new RoleHandlers
func NewRoleHandlers(manager *roles.Manager, catalog *permissions.Catalog, resolver *permissions.Resolver, sessions *EditSessionRegistry, cache CacheInvalidator, logger *observability.Logger) *RoleHandlers {
	return &RoleHandlers{
		manager:  manager,
		catalog:  catalog,
		resolver: resolver,
		sessions: sessions,
		cache:    cache,
		logger:   logger,
	}
}

// RegisterRoutes registers role management routes
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/api/v1/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/api/v1/roles/{id}/edit", h.OpenEditSession).Methods("POST")
	router.HandleFunc("/api/v1/roles/edit/{sid}", h.GetEditSession).Methods("GET")
	router.HandleFunc("/api/v1/roles/edit/{sid}", h.UpdateRoleMeta).Methods("PATCH")
	router.HandleFunc("/api/v1/roles/edit/{sid}/toggle", h.TogglePermission).Methods("POST")
	router.HandleFunc("/api/v1/roles/edit/{sid}/save", h.SaveRole).Methods("POST")
	router.HandleFunc("/api/v1/roles/edit/{sid}", h.DiscardEditSession).Methods("DELETE")
	router.HandleFunc("/api/v1/permissions/catalog", h.GetCatalog).Methods("GET")
}

// ListRoles returns the roles visible to the current principal
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	visible, err := h.manager.ListVisible(r.Context(), viewer)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	out := make([]RoleResponse, 0, len(visible))
	for _, role := range visible {
		out = append(out, toRoleResponse(role))
	}
	httputil.WriteSuccess(w, out)
}

// CreateRole creates a role scoped to the caller's tenant, or a system role
// for platform callers
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	set := permissions.NewSet()
	for _, p := range req.Permissions {
		set.Add(permissions.Permission(p))
	}

	role, err := h.manager.Create(r.Context(), viewer, req.Name, req.Description, set)
	if err != nil {
		h.writeRoleError(w, err)
		return
	}

	h.cache.Invalidate()
	httputil.WriteCreated(w, toRoleResponse(role))
}

// OpenEditSession loads a role for editing and hands back a session id
func (h *RoleHandlers) OpenEditSession(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}

	roleID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid role id")
		return
	}

	session, err := h.manager.LoadForEditing(r.Context(), viewer, roleID)
	if err != nil {
		h.writeRoleError(w, err)
		return
	}

	sid := h.sessions.Put(session, viewer.UserID)
	httputil.WriteSuccess(w, EditSessionResponse{
		SessionID: sid,
		Role:      toRoleResponse(session.Role()),
	})
}

// GetEditSession returns the working copy of an open edit session
func (h *RoleHandlers) GetEditSession(w http.ResponseWriter, r *http.Request) {
	session, sid, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, EditSessionResponse{
		SessionID: sid,
		Role:      toRoleResponse(session.Role()),
	})
}

// TogglePermission flips one permission in the working copy, applying the
// aggregate cascade
func (h *RoleHandlers) TogglePermission(w http.ResponseWriter, r *http.Request) {
	session, sid, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req TogglePermissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Permission, "permission") {
		return
	}

	if err := session.Toggle(permissions.Permission(req.Permission), req.Enabled); err != nil {
		var unknown *permissions.UnknownPermissionError
		if errors.As(err, &unknown) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, EditSessionResponse{
		SessionID: sid,
		Role:      toRoleResponse(session.Role()),
	})
}

// UpdateRoleMeta renames or re-describes the role under edit
func (h *RoleHandlers) UpdateRoleMeta(w http.ResponseWriter, r *http.Request) {
	session, sid, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req UpdateRoleMetaRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name != nil {
		if !httputil.RequireNonEmpty(w, *req.Name, "name") {
			return
		}
		session.SetName(*req.Name)
	}
	if req.Description != nil {
		session.SetDescription(*req.Description)
	}

	httputil.WriteSuccess(w, EditSessionResponse{
		SessionID: sid,
		Role:      toRoleResponse(session.Role()),
	})
}

// SaveRole persists the working copy and closes the session on success
func (h *RoleHandlers) SaveRole(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return
	}
	session, sid, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	saved, err := h.manager.Save(r.Context(), viewer, session)
	if err != nil {
		h.writeRoleError(w, err)
		return
	}

	h.sessions.Remove(sid)
	h.cache.Invalidate()
	httputil.WriteSuccess(w, toRoleResponse(saved))
}

// DiscardEditSession drops an open edit session without saving
func (h *RoleHandlers) DiscardEditSession(w http.ResponseWriter, r *http.Request) {
	_, sid, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.sessions.Remove(sid)
	httputil.WriteNoContent(w)
}

// GetCatalog returns the permission catalog grouped for rendering
func (h *RoleHandlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewerFromRequest(w, r); !ok {
		return
	}
	httputil.WriteSuccess(w, h.catalog.Grouped(h.resolver.Rules()))
}

func (h *RoleHandlers) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*roles.EditSession, string, bool) {
	viewer, ok := viewerFromRequest(w, r)
	if !ok {
		return nil, "", false
	}
	sid := mux.Vars(r)["sid"]
	session, ok := h.sessions.Get(sid, viewer.UserID)
	if !ok {
		httputil.WriteNotFound(w, "edit session not found")
		return nil, "", false
	}
	return session, sid, true
}

func (h *RoleHandlers) writeRoleError(w http.ResponseWriter, err error) {
	var (
		denied       *roles.AccessDeniedError
		notFound     *roles.NotFoundError
		badTenant    *roles.InvalidTenantError
		inconsistent *roles.InconsistentSetError
		unknown      *permissions.UnknownPermissionError
	)
	switch {
	case errors.As(err, &notFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.As(err, &denied):
		httputil.WriteForbidden(w, err.Error())
	case errors.As(err, &badTenant):
		httputil.WriteUnprocessable(w, err.Error())
	case errors.As(err, &inconsistent):
		httputil.WriteConflict(w, err.Error())
	case errors.As(err, &unknown):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, roles.ErrSaveInFlight):
		httputil.WriteConflict(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// viewerFromRequest derives the role-scoping viewer from the authenticated
// principal, writing a 401 when no principal is present.
func viewerFromRequest(w http.ResponseWriter, r *http.Request) (roles.Viewer, bool) {
	p, ok := middleware.PrincipalFromRequest(r)
	if !ok || p == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return roles.Viewer{}, false
	}
	return roles.Viewer{UserID: p.UserID, TenantID: p.TenantID}, true
}
