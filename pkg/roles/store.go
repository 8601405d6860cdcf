package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/canopysoft/atrium/pkg/permissions"
)

// Store persists roles. The permissions column stores the sorted JSON list
// produced by permissions.Set; legacy rows holding a bare string for a
// single permission decode through the same type.
type Store struct {
	db *sql.DB
}

// NewStore creates a role store over the given database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the roles schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS roles (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			kind VARCHAR(16) NOT NULL,
			tenant_id VARCHAR(64),
			permissions JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			created_by BIGINT,
			UNIQUE(name, tenant_id)
		);

		CREATE INDEX IF NOT EXISTS idx_roles_tenant_id ON roles(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_roles_kind ON roles(kind);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate roles schema: %w", err)
	}
	return nil
}

// Create inserts a new role and fills in its id and timestamps
func (s *Store) Create(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (name, description, kind, tenant_id, permissions, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		role.Name,
		role.Description,
		string(role.Kind),
		role.TenantID,
		string(permissionsJSON),
		now,
		now,
		role.CreatedBy,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// Get retrieves a role by id
func (s *Store) Get(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, name, description, kind, tenant_id, permissions, created_at, updated_at, created_by
		FROM roles
		WHERE id = $1
	`
	role, err := s.scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RoleID: roleID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by name within a tenant scope. A nil tenantID
// looks up system roles.
func (s *Store) GetByName(ctx context.Context, name string, tenantID *string) (*Role, error) {
	query := `
		SELECT id, name, description, kind, tenant_id, permissions, created_at, updated_at, created_by
		FROM roles
		WHERE name = $1 AND tenant_id IS NOT DISTINCT FROM $2
	`
	role, err := s.scanRole(s.db.QueryRowContext(ctx, query, name, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{RoleID: 0}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// ListVisible returns every system role plus the tenant's own roles,
// ordered by kind then name. A nil tenantID returns system roles only.
func (s *Store) ListVisible(ctx context.Context, tenantID *string) ([]*Role, error) {
	query := `
		SELECT id, name, description, kind, tenant_id, permissions, created_at, updated_at, created_by
		FROM roles
		WHERE tenant_id IS NULL OR tenant_id = $1
		ORDER BY kind, name
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var out []*Role
	for rows.Next() {
		role, err := s.scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return out, nil
}

// GetMany retrieves the roles for a set of ids. Missing ids are skipped,
// not errors: a stale assignment to a deleted role must not break login.
func (s *Store) GetMany(ctx context.Context, roleIDs []int64) ([]*Role, error) {
	out := make([]*Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		role, err := s.Get(ctx, id)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

// Update persists a role's name, description and permissions. Kind and
// tenant are immutable after creation.
func (s *Store) Update(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE roles
		SET name = $1, description = $2, permissions = $3, updated_at = $4
		WHERE id = $5
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.Name,
		role.Description,
		string(permissionsJSON),
		now,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{RoleID: role.ID}
	}

	role.UpdatedAt = now
	return nil
}

// Delete removes a role by id
func (s *Store) Delete(ctx context.Context, roleID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{RoleID: roleID}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRole(row rowScanner) (*Role, error) {
	var role Role
	var kind string
	var tenantID sql.NullString
	var createdBy sql.NullInt64
	var permissionsJSON []byte

	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&kind,
		&tenantID,
		&permissionsJSON,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	role.Kind = Kind(kind)
	if tenantID.Valid {
		t := tenantID.String
		role.TenantID = &t
	}
	if createdBy.Valid {
		u := createdBy.Int64
		role.CreatedBy = &u
	}

	var set permissions.Set
	if err := json.Unmarshal(permissionsJSON, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	role.Permissions = set

	return &role, nil
}
