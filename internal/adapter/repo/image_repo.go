package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

// ImageRepositoryPG implements domain.ImageRepository on PostgreSQL. The
// terminal transition is a single UPDATE guarded on status='processing', so
// it is atomic and happens at most once per record.
type ImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewImageRepository creates a new image repository backed by PostgreSQL.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepositoryPG {
	return &ImageRepositoryPG{pool: pool}
}

// EnsureSchema creates the images table when it does not exist yet.
func (r *ImageRepositoryPG) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS images (
    position BIGSERIAL,
    id TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    status TEXT NOT NULL,
    original_key TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    processed_at TIMESTAMPTZ,
    metadata JSONB,
    thumbnail_keys JSONB,
    error TEXT NOT NULL DEFAULT '',
    processing_duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
);
`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure images schema: %w", err)
	}
	return nil
}

// Insert stores a new processing record.
func (r *ImageRepositoryPG) Insert(ctx context.Context, record *domain.ImageRecord) error {
	query := `
INSERT INTO images (id, original_name, status, original_key, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.OriginalName,
		record.Status,
		record.OriginalKey,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID fetches a record by its identifier.
func (r *ImageRepositoryPG) GetByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	query := `
SELECT id, original_name, status, original_key, created_at, processed_at,
       metadata, thumbnail_keys, error, processing_duration_seconds
FROM images
WHERE id = $1;
`
	record, err := scanImage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// List returns all records in insertion order.
func (r *ImageRepositoryPG) List(ctx context.Context) ([]domain.ImageRecord, error) {
	query := `
SELECT id, original_name, status, original_key, created_at, processed_at,
       metadata, thumbnail_keys, error, processing_duration_seconds
FROM images
ORDER BY position;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ImageRecord
	for rows.Next() {
		record, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

// Finish applies the one terminal transition a record ever receives.
func (r *ImageRepositoryPG) Finish(ctx context.Context, id string, outcome domain.Outcome) error {
	metaJSON, err := marshalMetadata(outcome.Metadata)
	if err != nil {
		return err
	}
	keysJSON, err := marshalKeys(outcome.ThumbnailKeys)
	if err != nil {
		return err
	}

	query := `
UPDATE images
SET status = $2,
    metadata = $3,
    thumbnail_keys = $4,
    error = $5,
    processed_at = $6,
    processing_duration_seconds = $7
WHERE id = $1 AND status = $8;
`
	tag, err := r.pool.Exec(ctx, query,
		id,
		outcome.Status,
		metaJSON,
		keysJSON,
		outcome.Error,
		outcome.ProcessedAt,
		outcome.Duration,
		domain.StatusProcessing,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyTerminal
	}
	return nil
}

func scanImage(row pgx.Row) (*domain.ImageRecord, error) {
	var record domain.ImageRecord
	var processedAt *time.Time
	var metaJSON, keysJSON []byte
	if err := row.Scan(
		&record.ID,
		&record.OriginalName,
		&record.Status,
		&record.OriginalKey,
		&record.CreatedAt,
		&processedAt,
		&metaJSON,
		&keysJSON,
		&record.Error,
		&record.ProcessingDurationSeconds,
	); err != nil {
		return nil, err
	}
	if processedAt != nil {
		record.ProcessedAt = *processedAt
	}
	if len(metaJSON) > 0 {
		var meta domain.ImageMetadata
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", record.ID, err)
		}
		record.Metadata = &meta
	}
	if len(keysJSON) > 0 {
		keys := make(map[domain.ThumbnailSize]string)
		if err := json.Unmarshal(keysJSON, &keys); err != nil {
			return nil, fmt.Errorf("decode thumbnail keys for %s: %w", record.ID, err)
		}
		record.ThumbnailKeys = keys
	}
	return &record, nil
}

func marshalMetadata(meta *domain.ImageMetadata) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

func marshalKeys(keys map[domain.ThumbnailSize]string) ([]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail keys: %w", err)
	}
	return data, nil
}

var _ domain.ImageRepository = (*ImageRepositoryPG)(nil)
