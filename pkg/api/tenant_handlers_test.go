package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/contextkeys"
	"github.com/canopysoft/atrium/pkg/principal"
	"github.com/canopysoft/atrium/pkg/tenants"
)

func newTenantRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	router := mux.NewRouter()
	NewTenantHandlers(tenants.NewStore(db)).RegisterRoutes(router)
	return router, mock
}

func doTenant(t *testing.T, router *mux.Router, p *principal.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
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
	router.ServeHTTP(rec, req)
	return rec
}

func TestTenantEndpointsPlatformOnly(t *testing.T) {
	router, _ := newTenantRouter(t)

	rec := doTenant(t, router, nil, "GET", "/api/v1/tenants", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doTenant(t, router, tenantPrincipal(1, "acme"), "GET", "/api/v1/tenants", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListTenants(t *testing.T) {
	router, mock := newTenantRouter(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, ref, name, status, created_at, updated_at FROM tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ref", "name", "status", "created_at", "updated_at"}).
			AddRow(int64(1), "acme", "Acme Corp", "active", now, now).
			AddRow(int64(2), "globex", "Globex", "suspended", now, now))

	rec := doTenant(t, router, platformPrincipal(1), "GET", "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []TenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "acme", listed[0].Ref)
	assert.Equal(t, "suspended", listed[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenant(t *testing.T) {
	router, mock := newTenantRouter(t)

	mock.ExpectQuery(`INSERT INTO tenants`).
		WithArgs("acme", "Acme Corp", "active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	rec := doTenant(t, router, platformPrincipal(1), "POST", "/api/v1/tenants",
		CreateTenantRequest{Ref: "acme", Name: "Acme Corp"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantBadRef(t *testing.T) {
	router, _ := newTenantRouter(t)

	rec := doTenant(t, router, platformPrincipal(1), "POST", "/api/v1/tenants",
		CreateTenantRequest{Ref: "-bad ref-", Name: "Nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateTenantStatus(t *testing.T) {
	router, mock := newTenantRouter(t)

	mock.ExpectExec(`UPDATE tenants SET status`).
		WithArgs("suspended", sqlmock.AnyArg(), "acme").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doTenant(t, router, platformPrincipal(1), "PUT", "/api/v1/tenants/acme/status",
		UpdateTenantStatusRequest{Status: "suspended"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTenantStatusInvalid(t *testing.T) {
	router, _ := newTenantRouter(t)

	rec := doTenant(t, router, platformPrincipal(1), "PUT", "/api/v1/tenants/acme/status",
		UpdateTenantStatusRequest{Status: "frozen"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
