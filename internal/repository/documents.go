package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/doafavor/internal/models"
)

// PostgresDocumentRepository stores schemaless JSON documents grouped by
// collection in a single JSONB table.
type PostgresDocumentRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// newKey generates keys for Append.
	newKey func() string
}

// NewPostgresDocumentRepository creates a repository over db.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db, newKey: uuid.NewString}
}

// Query returns the documents of collection whose top-level field equals value,
// compared as text.
//
//	ctx:        context for cancellation and deadlines
//	collection: collection name
//	field:      top-level JSON field to match
//	value:      expected text value
func (r *PostgresDocumentRepository) Query(ctx context.Context, collection, field, value string) ([]models.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT key, data FROM documents
		WHERE collection = $1 AND data->>$2 = $3
		ORDER BY created_at, key
	`, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var (
			doc  models.Document
			data []byte
		)
		if err := rows.Scan(&doc.Key, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// CreateOrReplace writes data under (collection, key), replacing the body of
// an existing document.
func (r *PostgresDocumentRepository) CreateOrReplace(ctx context.Context, collection, key string, data json.RawMessage) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()
	`, collection, key, string(data))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Append stores data under a newly generated key and returns the key.
func (r *PostgresDocumentRepository) Append(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	key := r.newKey()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3)
	`, collection, key, string(data))
	if err != nil {
		return "", fmt.Errorf("append document: %w", err)
	}
	return key, nil
}
