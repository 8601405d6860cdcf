package roles

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/permissions"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func roleColumns() []string {
	return []string{"id", "name", "description", "kind", "tenant_id", "permissions", "created_at", "updated_at", "created_by"}
}

func TestStoreCreate(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`INSERT INTO roles`).
		WithArgs("Tenant-Admin", "Full tenant access", "TENANT", strptr("T1"),
			`["shops.all","shops.read","shops.write"]`,
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	role := &Role{
		Name:        "Tenant-Admin",
		Description: "Full tenant access",
		Kind:        KindTenant,
		TenantID:    strptr("T1"),
		Permissions: permissions.NewSet("shops.read", "shops.write", "shops.all"),
	}
	require.NoError(t, store.Create(context.Background(), role))
	assert.Equal(t, int64(7), role.ID)
	assert.False(t, role.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGet(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(roleColumns()).
			AddRow(7, "Tenant-Admin", "", "TENANT", "T1", `["shops.read"]`, now, now, nil))

	role, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Tenant-Admin", role.Name)
	assert.Equal(t, KindTenant, role.Kind)
	require.NotNil(t, role.TenantID)
	assert.Equal(t, "T1", *role.TenantID)
	assert.ElementsMatch(t, []string{"shops.read"}, role.Permissions.Strings())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetLegacySinglePermission(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	// old rows stored a bare string when the role held one permission
	mock.ExpectQuery(`SELECT .+ FROM roles WHERE id`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(roleColumns()).
			AddRow(3, "Viewer", "", "SYSTEM", nil, `"reports.read"`, now, now, nil))

	role, err := store.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reports.read"}, role.Permissions.Strings())
	assert.Nil(t, role.TenantID)
}

func TestStoreGetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE id`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(roleColumns()))

	_, err := store.Get(context.Background(), 404)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(404), notFound.RoleID)
}

func TestStoreListVisible(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE tenant_id IS NULL OR tenant_id`).
		WithArgs(strptr("T1")).
		WillReturnRows(sqlmock.NewRows(roleColumns()).
			AddRow(1, "Platform-Admin", "", "SYSTEM", nil, `[]`, now, now, nil).
			AddRow(2, "Tenant-Admin", "", "TENANT", "T1", `[]`, now, now, nil))

	roles, err := store.ListVisible(context.Background(), strptr("T1"))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "Platform-Admin", roles[0].Name)
	assert.Equal(t, "Tenant-Admin", roles[1].Name)
}

func TestStoreUpdate(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`UPDATE roles`).
		WithArgs("Editor", "desc", `["shops.read"]`, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	role := &Role{
		ID:          7,
		Name:        "Editor",
		Description: "desc",
		Permissions: permissions.NewSet("shops.read"),
	}
	require.NoError(t, store.Update(context.Background(), role))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`UPDATE roles`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &Role{ID: 404, Permissions: permissions.NewSet()})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStoreGetManySkipsMissing(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(roleColumns()).
			AddRow(1, "A", "", "SYSTEM", nil, `[]`, now, now, nil))
	mock.ExpectQuery(`SELECT .+ FROM roles WHERE id`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(roleColumns()))

	roles, err := store.GetMany(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "A", roles[0].Name)
}
