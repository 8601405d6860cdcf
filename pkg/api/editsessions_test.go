package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/roles"
)

func openTestSession(t *testing.T) *roles.EditSession {
	t.Helper()
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil)
	rec := f.do(t, platformPrincipal(1), "POST", "/api/v1/roles/1/edit", nil)
	require.Equal(t, 200, rec.Code)
	session := decodeSession(t, rec)
	s, ok := f.registry.Get(session.SessionID, 1)
	require.True(t, ok)
	require.Equal(t, roleID, s.RoleID())
	return s
}

func TestRegistryOwnership(t *testing.T) {
	registry := NewEditSessionRegistry(4, time.Minute)
	session := openTestSession(t)

	id := registry.Put(session, 7)
	_, ok := registry.Get(id, 7)
	assert.True(t, ok)

	_, ok = registry.Get(id, 8)
	assert.False(t, ok)

	registry.Remove(id)
	_, ok = registry.Get(id, 7)
	assert.False(t, ok)
}

func TestRegistryExpiry(t *testing.T) {
	registry := NewEditSessionRegistry(4, 20*time.Millisecond)
	session := openTestSession(t)

	id := registry.Put(session, 7)
	time.Sleep(60 * time.Millisecond)

	_, ok := registry.Get(id, 7)
	assert.False(t, ok)
}

func TestRegistryDistinctIDs(t *testing.T) {
	registry := NewEditSessionRegistry(4, time.Minute)
	session := openTestSession(t)

	a := registry.Put(session, 7)
	b := registry.Put(session, 7)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, registry.Len())

	// ids are opaque; a toggle through one handle is visible through the
	// other because both reference the same session
	sA, _ := registry.Get(a, 7)
	require.NoError(t, sA.Toggle(permissions.Permission("reports.read"), true))
	sB, _ := registry.Get(b, 7)
	assert.True(t, sB.Role().Permissions.Has("reports.read"))
}
