package principal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/roles"
)

type stubLoader struct {
	roles map[int64]*roles.Role
	calls int
}

func (s *stubLoader) GetMany(ctx context.Context, roleIDs []int64) ([]*roles.Role, error) {
	s.calls++
	var out []*roles.Role
	for _, id := range roleIDs {
		if role, ok := s.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func testLoader() *stubLoader {
	return &stubLoader{roles: map[int64]*roles.Role{
		1: {ID: 1, Name: "Tenant-Admin", Permissions: permissions.NewSet("shops.all", "shops.read", "shops.write")},
		2: {ID: 2, Name: "Reporter", Permissions: permissions.NewSet("reports.read", "shops.read")},
	}}
}

func TestResolveUnionsAssignedRoles(t *testing.T) {
	agg := NewAggregator(testLoader(), 16, time.Minute)

	snap, err := agg.Resolve(context.Background(), &Principal{UserID: 1, RoleIDs: []int64{1, 2}})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"shops.all", "shops.read", "shops.write", "reports.read"},
		snap.Permissions.Strings())
	assert.True(t, snap.HasRole("Tenant-Admin"))
	assert.True(t, snap.HasRole("Reporter"))
	assert.False(t, snap.HasRole("Platform-Admin"))
}

func TestResolveIncludesDirectGrants(t *testing.T) {
	agg := NewAggregator(testLoader(), 16, time.Minute)

	snap, err := agg.Resolve(context.Background(), &Principal{
		UserID:  2,
		RoleIDs: []int64{2},
		Grants:  []permissions.Permission{"system.logs"},
	})
	require.NoError(t, err)
	assert.True(t, snap.HasPermission("system.logs"))
	assert.True(t, snap.HasPermission("reports.read"))
}

func TestResolveSkipsMissingAssignments(t *testing.T) {
	agg := NewAggregator(testLoader(), 16, time.Minute)

	snap, err := agg.Resolve(context.Background(), &Principal{UserID: 3, RoleIDs: []int64{2, 99}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reports.read", "shops.read"}, snap.Permissions.Strings())
	assert.Equal(t, []string{"Reporter"}, snap.RoleNameList())
}

func TestResolveCaches(t *testing.T) {
	loader := testLoader()
	agg := NewAggregator(loader, 16, time.Minute)
	p := &Principal{UserID: 1, RoleIDs: []int64{1}}

	_, err := agg.Resolve(context.Background(), p)
	require.NoError(t, err)
	_, err = agg.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)

	agg.Invalidate()
	_, err = agg.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestCacheKeyGrantOrderAndAliasing(t *testing.T) {
	// grant order must not fragment the cache
	assert.Equal(t,
		cacheKey(&Principal{UserID: 1, Grants: []permissions.Permission{"reports.read", "system.logs"}}),
		cacheKey(&Principal{UserID: 1, Grants: []permissions.Permission{"system.logs", "reports.read"}}))

	// distinct grant lists must never share a key
	assert.NotEqual(t,
		cacheKey(&Principal{UserID: 1, Grants: []permissions.Permission{"reports.read"}}),
		cacheKey(&Principal{UserID: 1, Grants: []permissions.Permission{"reports.rea", "d"}}))

	assert.NotEqual(t,
		cacheKey(&Principal{UserID: 1, Grants: []permissions.Permission{"reports.read"}}),
		cacheKey(&Principal{UserID: 1}))
}

func TestResolveEmptyPrincipal(t *testing.T) {
	agg := NewAggregator(testLoader(), 16, time.Minute)

	snap, err := agg.Resolve(context.Background(), &Principal{UserID: 9})
	require.NoError(t, err)
	assert.Empty(t, snap.Permissions.Strings())
	assert.Empty(t, snap.RoleNameList())
}
