package roles

import (
	"context"
	"fmt"
	"regexp"

	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
)

// RoleStore is the persistence surface the manager needs
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Get(ctx context.Context, roleID int64) (*Role, error)
	ListVisible(ctx context.Context, tenantID *string) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
}

// tenant references are short opaque slugs
var tenantRefPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// ValidateTenantRef checks that a tenant reference is syntactically valid
func ValidateTenantRef(ref string) error {
	if !tenantRefPattern.MatchString(ref) {
		return fmt.Errorf("must match %s", tenantRefPattern)
	}
	return nil
}

// Manager owns role lifecycle. It decides which principals may see or
// change which roles, and routes every permission edit through the closure
// resolver so that no inconsistent set ever reaches the store.
//
// Visibility is strict: a system role (nil tenant) is visible to everyone,
// a tenant role only to principals of exactly that tenant. Platform users
// (nil tenant) manage system roles only; tenant roles are opaque to them
// here. There is no hierarchy.
type Manager struct {
	store             RoleStore
	resolver          *permissions.Resolver
	validateTenantRef func(string) error
	logger            *observability.Logger
	metrics           *observability.Metrics
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithTenantValidator replaces the syntactic tenant reference check,
// typically with one backed by the tenant directory
func WithTenantValidator(fn func(string) error) ManagerOption {
	return func(m *Manager) { m.validateTenantRef = fn }
}

// WithMetrics wires save counters into the manager
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a role manager
func NewManager(store RoleStore, resolver *permissions.Resolver, logger *observability.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:             store,
		resolver:          resolver,
		validateTenantRef: ValidateTenantRef,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CanView reports whether the viewer may see and mutate the role
func (m *Manager) CanView(viewer Viewer, role *Role) bool {
	if role.TenantID == nil {
		return true
	}
	if viewer.TenantID == nil {
		return false
	}
	return *role.TenantID == *viewer.TenantID
}

// ListVisible returns the roles the viewer may see: all system roles plus,
// for tenant users, their own tenant's roles
func (m *Manager) ListVisible(ctx context.Context, viewer Viewer) ([]*Role, error) {
	return m.store.ListVisible(ctx, viewer.TenantID)
}

// LoadForEditing fetches a role and opens an edit session over a private
// copy. The session remembers the tenant the role was loaded with so a save
// cannot smuggle in a reassignment.
func (m *Manager) LoadForEditing(ctx context.Context, viewer Viewer, roleID int64) (*EditSession, error) {
	role, err := m.store.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !m.CanView(viewer, role) {
		m.logger.WithFields(map[string]interface{}{
			"role_id": roleID,
			"user_id": viewer.UserID,
		}).Warn("denied role load")
		return nil, &AccessDeniedError{RoleID: roleID, Reason: "role belongs to another tenant"}
	}
	return newEditSession(role, m.resolver), nil
}

// Create persists a new role for the viewer. Platform users create system
// roles; tenant users create roles fixed to their own tenant. The permission
// set must be closed and drawn from the catalog.
func (m *Manager) Create(ctx context.Context, viewer Viewer, name, description string, set permissions.Set) (*Role, error) {
	normalized, err := m.resolver.Normalize(set)
	if err != nil {
		return nil, err
	}
	if !m.resolver.Closed(normalized) {
		return nil, &InconsistentSetError{}
	}

	role := &Role{
		Name:        name,
		Description: description,
		Kind:        KindSystem,
		Permissions: normalized,
		CreatedBy:   &viewer.UserID,
	}
	if viewer.TenantID != nil {
		if err := m.validateTenantRef(*viewer.TenantID); err != nil {
			return nil, &InvalidTenantError{TenantID: *viewer.TenantID, Reason: err.Error()}
		}
		t := *viewer.TenantID
		role.Kind = KindTenant
		role.TenantID = &t
	}

	if err := m.store.Create(ctx, role); err != nil {
		m.observeSave("error")
		return nil, err
	}

	m.observeSave("created")
	m.logger.WithFields(map[string]interface{}{
		"role_id": role.ID,
		"name":    role.Name,
		"kind":    string(role.Kind),
	}).Info("role created")
	return role, nil
}

// Save persists an edit session's working state. Visibility is re-checked
// here, not only at load time: the role travelled through client-editable
// state in between. A failed check is terminal for the session.
func (m *Manager) Save(ctx context.Context, viewer Viewer, session *EditSession) (*Role, error) {
	if !session.beginSave() {
		return nil, fmt.Errorf("role %d: %w", session.roleID, ErrSaveInFlight)
	}
	defer session.endSave()

	role := session.workingCopy()

	if !m.CanView(viewer, role) {
		m.observeSave("denied")
		m.logger.WithFields(map[string]interface{}{
			"role_id": role.ID,
			"user_id": viewer.UserID,
		}).Warn("denied role save")
		return nil, &AccessDeniedError{RoleID: role.ID, Reason: "role belongs to another tenant"}
	}

	if role.TenantID != nil {
		if err := m.validateTenantRef(*role.TenantID); err != nil {
			m.observeSave("invalid_tenant")
			return nil, &InvalidTenantError{TenantID: *role.TenantID, Reason: err.Error()}
		}
	}

	if session.tenantChanged() {
		m.observeSave("denied")
		return nil, &AccessDeniedError{RoleID: role.ID, Reason: "tenant reassignment is not supported"}
	}

	if !m.resolver.Closed(role.Permissions) {
		m.observeSave("inconsistent")
		return nil, &InconsistentSetError{RoleID: role.ID}
	}

	if err := ctx.Err(); err != nil {
		// navigation away abandoned the save; do not write a stale set
		return nil, err
	}

	if err := m.store.Update(ctx, role); err != nil {
		m.observeSave("error")
		return nil, err
	}

	m.observeSave("saved")
	m.logger.WithFields(map[string]interface{}{
		"role_id":     role.ID,
		"permissions": len(role.Permissions),
	}).Info("role saved")
	return role, nil
}

func (m *Manager) observeSave(result string) {
	if m.metrics != nil {
		m.metrics.RoleSavesTotal.WithLabelValues(result).Inc()
	}
}
