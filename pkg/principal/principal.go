package principal

import (
	"github.com/canopysoft/atrium/pkg/permissions"
)

// Principal is the authenticated user as seen by the authorization layer.
// A nil TenantID denotes a platform-level user.
type Principal struct {
	UserID   int64    `json:"user_id"`
	Email    string   `json:"email,omitempty"`
	TenantID *string  `json:"tenant_id,omitempty"`
	RoleIDs  []int64  `json:"role_ids"`
	// Grants are direct permission grants outside any role
	Grants []permissions.Permission `json:"grants,omitempty"`
}

// Snapshot is a principal's resolved authority: the union of the permission
// sets of every assigned role plus direct grants, and the names of the
// assigned roles. Roles are stored closed, so the union is closed by
// construction and no resolver work happens here.
type Snapshot struct {
	Permissions permissions.Set
	RoleNames   map[string]struct{}
}

// HasPermission reports whether the snapshot grants the permission
func (s *Snapshot) HasPermission(p permissions.Permission) bool {
	return s.Permissions.Has(p)
}

// HasRole reports whether the principal holds the named role
func (s *Snapshot) HasRole(name string) bool {
	_, ok := s.RoleNames[name]
	return ok
}

// RoleNameList returns the role names in unspecified order
func (s *Snapshot) RoleNameList() []string {
	out := make([]string, 0, len(s.RoleNames))
	for name := range s.RoleNames {
		out = append(out, name)
	}
	return out
}
