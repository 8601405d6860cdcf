package principal

import (
	"context"
	"database/sql"
	"fmt"
)

// Directory persists the users the identity provider has sent us. The
// provider owns authentication; this table only gives each subject a stable
// numeric id and records role assignments.
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a user directory over the given database
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Migrate creates the users schema if it does not exist
func (d *Directory) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			subject VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			tenant_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_login_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_roles (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role_id BIGINT NOT NULL,
			PRIMARY KEY (user_id, role_id)
		);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate users schema: %w", err)
	}
	return nil
}

// EnsureUser upserts the user for an identity provider subject and returns
// its id. Email, name and tenant follow whatever the provider last asserted.
func (d *Directory) EnsureUser(ctx context.Context, subject, email, name string, tenantID *string) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO users (subject, email, name, tenant_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name,
		    tenant_id = EXCLUDED.tenant_id, last_login_at = NOW()
		RETURNING id
	`, subject, email, name, tenantID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}
	return id, nil
}

// AssignedRoles returns the role ids directly assigned to a user
func (d *Directory) AssignedRoles(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var roleIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		roleIDs = append(roleIDs, id)
	}
	return roleIDs, rows.Err()
}

// AssignRole grants a role to a user. Assigning an already-held role is a
// no-op.
func (d *Directory) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role from a user
func (d *Directory) RevokeRole(ctx context.Context, userID, roleID int64) error {
	_, err := d.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}
