package api

import (
	"time"

	"github.com/canopysoft/atrium/pkg/roles"
	"github.com/canopysoft/atrium/pkg/tenants"
)

// RoleResponse is the wire representation of a role
type RoleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind"`
	TenantID    *string   `json:"tenant_id,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRoleResponse(role *roles.Role) RoleResponse {
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Kind:        string(role.Kind),
		TenantID:    role.TenantID,
		Permissions: role.Permissions.Strings(),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

// CreateRoleRequest is the payload for creating a role
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// EditSessionResponse describes an open edit session and its working copy
type EditSessionResponse struct {
	SessionID string       `json:"session_id"`
	Role      RoleResponse `json:"role"`
}

// TogglePermissionRequest flips one permission in an edit session
type TogglePermissionRequest struct {
	Permission string `json:"permission"`
	Enabled    bool   `json:"enabled"`
}

// UpdateRoleMetaRequest renames or re-describes the role under edit
type UpdateRoleMetaRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MenuEntry is one navigable route for the current principal
type MenuEntry struct {
	Key       string            `json:"key"`
	Path      string            `json:"path"`
	Component string            `json:"component,omitempty"`
	Portal    string            `json:"portal"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// CheckRequest asks whether the current principal may visit a path
type CheckRequest struct {
	Path string `json:"path"`
}

// CheckResponse is the authorization decision for a path
type CheckResponse struct {
	Outcome  string `json:"outcome"`
	RouteKey string `json:"route_key,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// CreateTenantRequest is the payload for registering a tenant
type CreateTenantRequest struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

// UpdateTenantStatusRequest suspends or reactivates a tenant
type UpdateTenantStatusRequest struct {
	Status string `json:"status"`
}

// TenantResponse is the wire representation of a tenant
type TenantResponse struct {
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenantResponse(t *tenants.Tenant) TenantResponse {
	return TenantResponse{
		Ref:       t.Ref,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
