// Package repository provides PostgreSQL persistence for the identity and
// document emulator.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/doafavor/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresIdentityRepository stores emulator identities in PostgreSQL.
type PostgresIdentityRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresIdentityRepository creates a repository over db.
func NewPostgresIdentityRepository(db *sql.DB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{DB: db}
}

// CreateIdentity inserts id. A duplicate email yields models.ErrEmailExists.
func (r *PostgresIdentityRepository) CreateIdentity(ctx context.Context, id models.Identity) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO identities (uid, email, password_hash, display_name, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id.UID, id.Email, id.PasswordHash, id.DisplayName, id.Provider, id.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// GetIdentityByEmail returns the identity registered with email.
func (r *PostgresIdentityRepository) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var id models.Identity
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT uid, email, password_hash, display_name, provider, created_at
		 FROM identities WHERE email = $1`,
		email,
	).Scan(&id.UID, &id.Email, &id.PasswordHash, &id.DisplayName, &id.Provider, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select identity: %w", err)
	}
	return &id, nil
}
