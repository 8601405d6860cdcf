package routes

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/principal"
)

// stubResolver derives a snapshot from the principal's grants and a fixed
// role-name table, without touching any store
type stubResolver struct {
	roleNames map[int64]string
}

func (s *stubResolver) Resolve(ctx context.Context, p *principal.Principal) (*principal.Snapshot, error) {
	snap := &principal.Snapshot{
		Permissions: permissions.NewSet(p.Grants...),
		RoleNames:   make(map[string]struct{}),
	}
	for _, id := range p.RoleIDs {
		if name, ok := s.roleNames[id]; ok {
			snap.RoleNames[name] = struct{}{}
		}
	}
	return snap, nil
}

func testEngine(t *testing.T, table *Table) *Engine {
	t.Helper()
	resolver := &stubResolver{roleNames: map[int64]string{
		1: "Tenant-Admin",
		2: "End-User",
		3: "CS-Admin",
	}}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewEngine(table, resolver, logger)
}

func buildTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTableBuilder().
		Group(PortalPublic,
			Descriptor{Key: "public.login", Path: "/login", Component: "LoginPage"},
		).
		Group(PortalTenantAdmin,
			Descriptor{Key: "tenantadmin.shops.create", Path: "/admin/shops/create", Component: "ShopCreate",
				Authority: []string{"CS-Admin"}},
			Descriptor{Key: "tenantadmin.shops.detail", Path: "/admin/shops/:id", Component: "ShopDetail",
				Authority: []string{"CS-Admin"}},
		).
		Group(PortalApp,
			Descriptor{Key: "app.home", Path: "/app", Component: "AppHome"},
			Descriptor{Key: "app.reports", Path: "/app/reports", Component: "ReportList",
				Authority: []string{"Tenant-Admin", "reports.read"}},
			Descriptor{Key: "app.settings", Path: "/app/settings", Component: "AppSettings",
				Authority: []string{"Tenant-Admin"}},
		).
		Group(PortalOthers,
			Descriptor{Key: "others.access-denied", Path: "/access-denied", Component: "AccessDenied"},
		).
		Build()
	require.NoError(t, err)
	return table
}

func TestMatchPrecedence(t *testing.T) {
	engine := testEngine(t, buildTable(t))

	// the literal declared first beats the wildcard that also matches
	route, ok := engine.Match("/admin/shops/create")
	require.True(t, ok)
	assert.Equal(t, "tenantadmin.shops.create", route.Key)

	route, ok = engine.Match("/admin/shops/42")
	require.True(t, ok)
	assert.Equal(t, "tenantadmin.shops.detail", route.Key)

	_, ok = engine.Match("/admin/shops/42/extra")
	assert.False(t, ok)
	_, ok = engine.Match("/admin/shops")
	assert.False(t, ok)
}

func TestAuthorityORSemantics(t *testing.T) {
	engine := testEngine(t, buildTable(t))
	ctx := context.Background()

	// role name alone
	byRole, err := engine.Authorize(ctx, &principal.Principal{UserID: 1, RoleIDs: []int64{1}}, "/app/reports")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, byRole.Outcome)

	// permission alone
	byPermission, err := engine.Authorize(ctx, &principal.Principal{
		UserID: 2, Grants: []permissions.Permission{"reports.read"},
	}, "/app/reports")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, byPermission.Outcome)

	// neither
	denied, err := engine.Authorize(ctx, &principal.Principal{UserID: 3, RoleIDs: []int64{2}}, "/app/reports")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, denied.Outcome)
}

func TestAuthorizeEndUserDeniedAdminSettings(t *testing.T) {
	engine := testEngine(t, buildTable(t))

	decision, err := engine.Authorize(context.Background(),
		&principal.Principal{UserID: 5, RoleIDs: []int64{2}}, "/app/settings")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, decision.Outcome)
	assert.Equal(t, "/access-denied", decision.Redirect)
	require.NotNil(t, decision.Route)
	assert.Equal(t, "app.settings", decision.Route.Key)
}

func TestAuthorizeEmptyAuthorityAdmitsAuthenticated(t *testing.T) {
	engine := testEngine(t, buildTable(t))

	decision, err := engine.Authorize(context.Background(),
		&principal.Principal{UserID: 9}, "/app")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, decision.Outcome)
}

func TestAuthorizeAnonymous(t *testing.T) {
	engine := testEngine(t, buildTable(t))
	ctx := context.Background()

	public, err := engine.Authorize(ctx, nil, "/login")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, public.Outcome)

	private, err := engine.Authorize(ctx, nil, "/app")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, private.Outcome)
}

func TestAuthorizeUnknownPathDistinctFromDenied(t *testing.T) {
	engine := testEngine(t, buildTable(t))

	decision, err := engine.Authorize(context.Background(),
		&principal.Principal{UserID: 1}, "/nope/nothing")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, decision.Outcome)
	assert.Nil(t, decision.Route)
	// same redirect as a denial, different outcome internally
	assert.Equal(t, "/access-denied", decision.Redirect)
	assert.False(t, decision.Allowed())
}

func TestAccessibleRoutesFiltersByAuthority(t *testing.T) {
	engine := testEngine(t, buildTable(t))

	routes, err := engine.AccessibleRoutes(context.Background(),
		&principal.Principal{UserID: 5, RoleIDs: []int64{2}})
	require.NoError(t, err)

	keys := make([]string, len(routes))
	for i, r := range routes {
		keys[i] = r.Key
	}
	// public, empty-authority and access-denied routes plus nothing
	// requiring CS-Admin or Tenant-Admin
	assert.ElementsMatch(t, []string{"public.login", "app.home", "others.access-denied"}, keys)
}

// strictResolver refuses a nil principal the way the real aggregator
// would, by dereferencing it
type strictResolver struct {
	stubResolver
	calls int
}

func (s *strictResolver) Resolve(ctx context.Context, p *principal.Principal) (*principal.Snapshot, error) {
	s.calls++
	_ = p.UserID
	return s.stubResolver.Resolve(ctx, p)
}

func TestAccessibleRoutesAnonymous(t *testing.T) {
	resolver := &strictResolver{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	engine := NewEngine(buildTable(t), resolver, logger)

	routes, err := engine.AccessibleRoutes(context.Background(), nil)
	require.NoError(t, err)

	keys := make([]string, len(routes))
	for i, r := range routes {
		keys[i] = r.Key
	}
	assert.ElementsMatch(t, []string{"public.login"}, keys)
	assert.Zero(t, resolver.calls, "snapshot resolution must be skipped for visitors")
}

// Every route returned for the menu must also pass enforcement, for
// randomly generated principals and tables.
func TestAccessibleRoutesConsistentWithAuthorize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocabulary := []string{"Tenant-Admin", "End-User", "CS-Admin", "reports.read",
		"shops.read", "shops.write", "programs.read"}

	for trial := 0; trial < 100; trial++ {
		builder := NewTableBuilder()
		n := 3 + rng.Intn(10)
		for i := 0; i < n; i++ {
			var authority []string
			for _, entry := range vocabulary {
				if rng.Intn(4) == 0 {
					authority = append(authority, entry)
				}
			}
			builder.Group(PortalApp, Descriptor{
				Key:       fmt.Sprintf("app.route%d", i),
				Path:      fmt.Sprintf("/app/r%d", i),
				Component: "Page",
				Authority: authority,
			})
		}
		table, err := builder.Build()
		require.NoError(t, err)
		engine := testEngine(t, table)

		p := &principal.Principal{UserID: int64(trial)}
		for id := int64(1); id <= 3; id++ {
			if rng.Intn(2) == 0 {
				p.RoleIDs = append(p.RoleIDs, id)
			}
		}
		for _, perm := range []permissions.Permission{"reports.read", "shops.read", "shops.write", "programs.read"} {
			if rng.Intn(3) == 0 {
				p.Grants = append(p.Grants, perm)
			}
		}

		accessible, err := engine.AccessibleRoutes(context.Background(), p)
		require.NoError(t, err)
		for _, route := range accessible {
			decision, err := engine.Authorize(context.Background(), p, route.Path)
			require.NoError(t, err)
			assert.Equal(t, OutcomeAllowed, decision.Outcome,
				"menu offered %s but authorize denied it", route.Key)
		}
	}
}
