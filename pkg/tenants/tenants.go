// Package tenants is the tenant directory: the set of customer
// organizations the portal serves. Roles and principals reference tenants
// by their short opaque ref.
package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/canopysoft/atrium/pkg/roles"
)

// Status represents a tenant's lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is one customer organization
type Tenant struct {
	ID        int64     `json:"id"`
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound is returned for an unknown tenant ref
var ErrNotFound = errors.New("tenant not found")

// Store persists tenants in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a tenant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tenants schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id BIGSERIAL PRIMARY KEY,
			ref VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate tenants schema: %w", err)
	}
	return nil
}

// Create inserts a new tenant. The ref must be syntactically valid; it is
// immutable afterwards.
func (s *Store) Create(ctx context.Context, ref, name string) (*Tenant, error) {
	if err := roles.ValidateTenantRef(ref); err != nil {
		return nil, fmt.Errorf("invalid tenant ref %q: %w", ref, err)
	}

	tenant := &Tenant{Ref: ref, Name: name, Status: StatusActive}
	now := time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tenants (ref, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ref, name, string(StatusActive), now, now).Scan(&tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	return tenant, nil
}

// GetByRef retrieves a tenant by its ref
func (s *Store) GetByRef(ctx context.Context, ref string) (*Tenant, error) {
	var tenant Tenant
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ref, name, status, created_at, updated_at
		FROM tenants WHERE ref = $1
	`, ref).Scan(&tenant.ID, &tenant.Ref, &tenant.Name, &status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	tenant.Status = Status(status)
	return &tenant, nil
}

// List returns all tenants ordered by ref
func (s *Store) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ref, name, status, created_at, updated_at
		FROM tenants ORDER BY ref
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		var tenant Tenant
		var status string
		if err := rows.Scan(&tenant.ID, &tenant.Ref, &tenant.Name, &status,
			&tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenant.Status = Status(status)
		out = append(out, &tenant)
	}
	return out, rows.Err()
}

// SetStatus updates a tenant's lifecycle state
func (s *Store) SetStatus(ctx context.Context, ref string, status Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET status = $1, updated_at = $2 WHERE ref = $3
	`, string(status), time.Now(), ref)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check tenant update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ValidateRef reports whether the ref names an active tenant. Wired into
// the role manager so saves check the directory, not just syntax.
func (s *Store) ValidateRef(ctx context.Context) func(string) error {
	return func(ref string) error {
		if err := roles.ValidateTenantRef(ref); err != nil {
			return err
		}
		tenant, err := s.GetByRef(ctx, ref)
		if err != nil {
			return err
		}
		if tenant.Status != StatusActive {
			return fmt.Errorf("tenant %q is %s", ref, tenant.Status)
		}
		return nil
	}
}
