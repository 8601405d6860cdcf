package principal

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserUpserts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	tenant := "acme"
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("idp|1234", "ada@acme.test", "Ada", &tenant).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	dir := NewDirectory(db)
	id, err := dir.EnsureUser(context.Background(), "idp|1234", "ada@acme.test", "Ada", &tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignedRoles(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT role_id FROM user_roles`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(1)).AddRow(int64(3)))

	dir := NewDirectory(db)
	roleIDs, err := dir.AssignedRoles(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, roleIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignAndRevokeRole(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO user_roles`).
		WithArgs(int64(42), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM user_roles`).
		WithArgs(int64(42), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	dir := NewDirectory(db)
	require.NoError(t, dir.AssignRole(context.Background(), 42, 7))
	require.NoError(t, dir.RevokeRole(context.Background(), 42, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
