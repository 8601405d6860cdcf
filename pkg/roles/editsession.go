package roles

import (
	"sync"
	"sync/atomic"

	"github.com/canopysoft/atrium/pkg/permissions"
)

// EditSession is one administrator's in-progress edit of one role. It works
// on a private copy of the role, applies permission toggles through the
// closure resolver, and serializes saves: a second save issued while one is
// in flight is rejected rather than interleaved, so a set resolved against
// stale state can never be written over a newer one.
//
// Concurrent sessions editing the same role are not coordinated; the last
// save wins at the store.
type EditSession struct {
	roleID         int64
	originalTenant *string
	resolver       *permissions.Resolver

	mu     sync.Mutex
	role   *Role
	saving atomic.Bool
}

func newEditSession(role *Role, resolver *permissions.Resolver) *EditSession {
	return &EditSession{
		roleID:         role.ID,
		originalTenant: role.TenantID,
		resolver:       resolver,
		role:           role.Clone(),
	}
}

// RoleID returns the id of the role under edit
func (s *EditSession) RoleID() int64 {
	return s.roleID
}

// Role returns a snapshot of the working state
func (s *EditSession) Role() *Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role.Clone()
}

// Toggle flips one permission in the working set, cascading through the
// closure resolver. An unknown permission fails the whole edit.
func (s *EditSession) Toggle(p permissions.Permission, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.resolver.Toggle(s.role.Permissions, p, on)
	if err != nil {
		return err
	}
	s.role.Permissions = next
	return nil
}

// SetName updates the role name in the working state
func (s *EditSession) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role.Name = name
}

// SetDescription updates the role description in the working state
func (s *EditSession) SetDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role.Description = description
}

func (s *EditSession) workingCopy() *Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role.Clone()
}

func (s *EditSession) tenantChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.role.TenantID
	switch {
	case current == nil && s.originalTenant == nil:
		return false
	case current == nil || s.originalTenant == nil:
		return true
	default:
		return *current != *s.originalTenant
	}
}

func (s *EditSession) beginSave() bool {
	return s.saving.CompareAndSwap(false, true)
}

func (s *EditSession) endSave() {
	s.saving.Store(false)
}
