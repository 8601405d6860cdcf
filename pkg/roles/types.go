package roles

import (
	"errors"
	"fmt"
	"time"

	"github.com/canopysoft/atrium/pkg/permissions"
)

// ErrSaveInFlight is returned when a second save is attempted while an edit
// session already has one in flight.
var ErrSaveInFlight = errors.New("save already in flight")

// Kind distinguishes platform-seeded roles from tenant-created ones
type Kind string

const (
	// KindSystem roles have no tenant and are visible to every principal
	KindSystem Kind = "SYSTEM"
	// KindTenant roles belong to exactly one tenant
	KindTenant Kind = "TENANT"
)

// Role is a named, tenant-scoped permission set. Permission sets are stored
// closed: every aggregate permission is present exactly when both of its
// children are. The manager enforces this before any write.
type Role struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        Kind            `json:"kind"`
	TenantID    *string         `json:"tenant_id,omitempty"`
	Permissions permissions.Set `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CreatedBy   *int64          `json:"created_by,omitempty"`
}

// Clone returns a deep copy safe to mutate independently
func (r *Role) Clone() *Role {
	out := *r
	out.Permissions = r.Permissions.Clone()
	if r.TenantID != nil {
		t := *r.TenantID
		out.TenantID = &t
	}
	if r.CreatedBy != nil {
		u := *r.CreatedBy
		out.CreatedBy = &u
	}
	return &out
}

// Viewer identifies the acting principal for scoping decisions. A nil
// TenantID denotes a platform-level user.
type Viewer struct {
	UserID   int64
	TenantID *string
}

// AccessDeniedError reports a role that is not visible or mutable by the
// acting principal. It is terminal for the operation and must reach the
// acting user: at save time it can indicate stale client state or tampering.
type AccessDeniedError struct {
	RoleID int64
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied to role %d: %s", e.RoleID, e.Reason)
}

// InvalidTenantError reports a role whose tenant reference failed
// validation at save time
type InvalidTenantError struct {
	TenantID string
	Reason   string
}

func (e *InvalidTenantError) Error() string {
	return fmt.Sprintf("invalid tenant reference %q: %s", e.TenantID, e.Reason)
}

// NotFoundError reports a role id with no stored row
type NotFoundError struct {
	RoleID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("role not found: %d", e.RoleID)
}

// InconsistentSetError reports an attempt to persist a permission set that
// violates the closure rule. Edits go through the resolver, so hitting this
// means the set was modified outside the editing flow.
type InconsistentSetError struct {
	RoleID int64
}

func (e *InconsistentSetError) Error() string {
	return fmt.Sprintf("role %d permission set is not closed", e.RoleID)
}
