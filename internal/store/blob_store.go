package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spsc/goldledger/pkg/errors"
)

const blobSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureBlobSchema creates the blobs table if it does not exist yet.
func EnsureBlobSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, blobSchema); err != nil {
		return apperrors.WrapStoreError(err)
	}
	return nil
}

type pgBlobStore struct {
	db      *sqlx.DB
	baseURL string
}

// NewBlobStore returns a BlobStore that keeps object bytes in Postgres and
// serves them back under <baseURL>/files/<id>.
func NewBlobStore(db *sqlx.DB, baseURL string) BlobStore {
	return &pgBlobStore{db: db, baseURL: baseURL}
}

func (s *pgBlobStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO blobs (id, name, content_type, content)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, id, name, contentType, data); err != nil {
		return "", apperrors.WrapStoreError(err)
	}

	return s.baseURL + "/files/" + id, nil
}

func (s *pgBlobStore) Open(ctx context.Context, id string) (*Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.WrapEntryNotFound(id)
	}

	query := `
		SELECT id, name, content_type, content, created_at
		FROM blobs
		WHERE id = $1
	`

	var blob Blob
	err := s.db.GetContext(ctx, &blob, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapEntryNotFound(id)
	}
	if err != nil {
		return nil, apperrors.WrapStoreError(err)
	}

	return &blob, nil
}
