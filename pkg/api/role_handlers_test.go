package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/contextkeys"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/principal"
	"github.com/canopysoft/atrium/pkg/roles"
)

// memRoleStore is an in-memory RoleStore for handler tests
type memRoleStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*roles.Role
}

func newMemRoleStore() *memRoleStore {
	return &memRoleStore{nextID: 1, byID: make(map[int64]*roles.Role)}
}

func (s *memRoleStore) Create(_ context.Context, role *roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role.ID = s.nextID
	s.nextID++
	s.byID[role.ID] = role.Clone()
	return nil
}

func (s *memRoleStore) Get(_ context.Context, roleID int64) (*roles.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[roleID]
	if !ok {
		return nil, &roles.NotFoundError{RoleID: roleID}
	}
	return role.Clone(), nil
}

func (s *memRoleStore) ListVisible(_ context.Context, tenantID *string) ([]*roles.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*roles.Role
	for _, role := range s.byID {
		if role.TenantID == nil || (tenantID != nil && *role.TenantID == *tenantID) {
			out = append(out, role.Clone())
		}
	}
	return out, nil
}

func (s *memRoleStore) Update(_ context.Context, role *roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[role.ID]; !ok {
		return &roles.NotFoundError{RoleID: role.ID}
	}
	s.byID[role.ID] = role.Clone()
	return nil
}

type countingCache struct{ invalidations int }

func (c *countingCache) Invalidate() { c.invalidations++ }

type roleFixture struct {
	store    *memRoleStore
	handlers *RoleHandlers
	registry *EditSessionRegistry
	cache    *countingCache
	router   *mux.Router
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()
	catalog := permissions.DefaultCatalog()
	resolver := permissions.NewResolver(catalog, permissions.DefaultRules())
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	store := newMemRoleStore()
	manager := roles.NewManager(store, resolver, logger)
	registry := NewEditSessionRegistry(16, time.Minute)
	cache := &countingCache{}

	handlers := NewRoleHandlers(manager, catalog, resolver, registry, cache, logger)
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return &roleFixture{
		store:    store,
		handlers: handlers,
		registry: registry,
		cache:    cache,
		router:   router,
	}
}

func (f *roleFixture) do(t *testing.T, p *principal.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if p != nil {
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *roleFixture) seed(t *testing.T, name string, tenant *string, perms ...permissions.Permission) int64 {
	t.Helper()
	role := &roles.Role{
		Name:        name,
		Kind:        roles.KindSystem,
		TenantID:    tenant,
		Permissions: permissions.NewSet(perms...),
	}
	if tenant != nil {
		role.Kind = roles.KindTenant
	}
	require.NoError(t, f.store.Create(context.Background(), role))
	return role.ID
}

func tenantPrincipal(userID int64, tenant string) *principal.Principal {
	return &principal.Principal{UserID: userID, TenantID: &tenant}
}

func platformPrincipal(userID int64) *principal.Principal {
	return &principal.Principal{UserID: userID}
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) EditSessionResponse {
	t.Helper()
	var resp EditSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListRolesScoping(t *testing.T) {
	f := newRoleFixture(t)
	f.seed(t, "Platform-Admin", nil)
	acme := "acme"
	f.seed(t, "Shop-Clerk", &acme)
	other := "globex"
	f.seed(t, "Globex-Ops", &other)

	rec := f.do(t, tenantPrincipal(1, "acme"), "GET", "/api/v1/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []RoleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	names := make([]string, 0, len(listed))
	for _, r := range listed {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"Platform-Admin", "Shop-Clerk"}, names)
}

func TestListRolesRequiresAuth(t *testing.T) {
	f := newRoleFixture(t)
	rec := f.do(t, nil, "GET", "/api/v1/roles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRole(t *testing.T) {
	f := newRoleFixture(t)

	rec := f.do(t, tenantPrincipal(7, "acme"), "POST", "/api/v1/roles", CreateRoleRequest{
		Name:        "Shop-Manager",
		Permissions: []string{"shops.all", "shops.read", "shops.write"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created RoleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "TENANT", created.Kind)
	require.NotNil(t, created.TenantID)
	assert.Equal(t, "acme", *created.TenantID)
	assert.Equal(t, 1, f.cache.invalidations)
}

func TestCreateRoleRejectsUnclosedSet(t *testing.T) {
	f := newRoleFixture(t)

	rec := f.do(t, platformPrincipal(1), "POST", "/api/v1/roles", CreateRoleRequest{
		Name:        "Broken",
		Permissions: []string{"shops.read", "shops.write"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEditFlowToggleAndSave(t *testing.T) {
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil, "reports.all", "reports.read", "reports.write")
	viewer := platformPrincipal(3)

	rec := f.do(t, viewer, "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeSession(t, rec)
	require.NotEmpty(t, session.SessionID)

	// first child alone
	rec = f.do(t, viewer, "POST", "/api/v1/roles/edit/"+session.SessionID+"/toggle",
		TogglePermissionRequest{Permission: "shops.read", Enabled: true})
	require.Equal(t, http.StatusOK, rec.Code)
	working := decodeSession(t, rec)
	assert.Contains(t, working.Role.Permissions, "shops.read")
	assert.NotContains(t, working.Role.Permissions, "shops.all")

	// second child completes the aggregate
	rec = f.do(t, viewer, "POST", "/api/v1/roles/edit/"+session.SessionID+"/toggle",
		TogglePermissionRequest{Permission: "shops.write", Enabled: true})
	require.Equal(t, http.StatusOK, rec.Code)
	working = decodeSession(t, rec)
	assert.Contains(t, working.Role.Permissions, "shops.all")

	rec = f.do(t, viewer, "POST", "/api/v1/roles/edit/"+session.SessionID+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := f.store.Get(context.Background(), roleID)
	require.NoError(t, err)
	assert.True(t, saved.Permissions.Has("shops.all"))

	// session is closed after a successful save
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 1, f.cache.invalidations)

	rec = f.do(t, viewer, "POST", "/api/v1/roles/edit/"+session.SessionID+"/save", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleUnknownPermission(t *testing.T) {
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil)
	viewer := platformPrincipal(3)

	rec := f.do(t, viewer, "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeSession(t, rec)

	rec = f.do(t, viewer, "POST", "/api/v1/roles/edit/"+session.SessionID+"/toggle",
		TogglePermissionRequest{Permission: "nonexistent.thing", Enabled: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditSessionBoundToOwner(t *testing.T) {
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil)

	rec := f.do(t, platformPrincipal(3), "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeSession(t, rec)

	// a different user cannot drive the session even with the id
	rec = f.do(t, platformPrincipal(99), "GET", "/api/v1/roles/edit/"+session.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenEditCrossTenantDenied(t *testing.T) {
	f := newRoleFixture(t)
	globex := "globex"
	roleID := f.seed(t, "Globex-Ops", &globex)

	rec := f.do(t, tenantPrincipal(5, "acme"), "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateRoleMeta(t *testing.T) {
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil)
	viewer := platformPrincipal(3)

	rec := f.do(t, viewer, "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeSession(t, rec)

	name := "Senior-Analyst"
	rec = f.do(t, viewer, "PATCH", "/api/v1/roles/edit/"+session.SessionID,
		UpdateRoleMetaRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	working := decodeSession(t, rec)
	assert.Equal(t, "Senior-Analyst", working.Role.Name)
}

func TestDiscardEditSession(t *testing.T) {
	f := newRoleFixture(t)
	roleID := f.seed(t, "Analyst", nil)
	viewer := platformPrincipal(3)

	rec := f.do(t, viewer, "POST", fmt.Sprintf("/api/v1/roles/%d/edit", roleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decodeSession(t, rec)

	rec = f.do(t, viewer, "DELETE", "/api/v1/roles/edit/"+session.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.registry.Len())
}

func TestGetCatalogGrouped(t *testing.T) {
	f := newRoleFixture(t)

	rec := f.do(t, platformPrincipal(1), "GET", "/api/v1/permissions/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []permissions.CategoryGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	assert.NotEmpty(t, groups)
}
