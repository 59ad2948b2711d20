// Package rawrecord implements the RawRecord repository using PostgreSQL.
// It provides idempotent upsert keyed by external_id and queries over
// records awaiting promotion.
package rawrecord

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// Repo provides raw record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new raw record repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const rawRecordColumns = `id, external_id, payload, ingested_at, processed, error, card_id`

const getByIDSQL = `
SELECT ` + rawRecordColumns + `
FROM raw_records
WHERE id = $1`

const getByExternalIDSQL = `
SELECT ` + rawRecordColumns + `
FROM raw_records
WHERE external_id = $1`

// upsertSQL relies on the unique constraint on external_id: two concurrent
// sync passes observing the same external identifier cannot create two rows;
// the second writer updates instead of inserting. Re-ingestion refreshes the
// payload and clears processed and error, so an updated upstream record goes
// through promotion again. card_id is kept: the record stays linked to its
// card and the next pass refreshes that card instead of creating a new one.
const upsertSQL = `
INSERT INTO raw_records (id, external_id, payload, ingested_at, processed, error, card_id)
VALUES ($1, $2, $3, $4, false, NULL, NULL)
ON CONFLICT (external_id) DO UPDATE
SET payload = EXCLUDED.payload, processed = false, error = NULL
RETURNING ` + rawRecordColumns

const listUnprocessedSQL = `
SELECT ` + rawRecordColumns + `
FROM raw_records
WHERE processed = false
ORDER BY ingested_at ASC
LIMIT $1`

const countUnprocessedSQL = `
SELECT count(*) FROM raw_records WHERE processed = false`

const markProcessedSQL = `
UPDATE raw_records
SET processed = true, card_id = $2, error = NULL
WHERE id = $1`

const setErrorSQL = `
UPDATE raw_records
SET error = $2
WHERE id = $1`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a raw record by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RawRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rec, err := scanRawRecord(q.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, mapError(err, "raw_record", id.String())
	}
	return rec, nil
}

// GetByExternalID returns a raw record by the upstream system's identifier.
func (r *Repo) GetByExternalID(ctx context.Context, externalID string) (*domain.RawRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rec, err := scanRawRecord(q.QueryRow(ctx, getByExternalIDSQL, externalID))
	if err != nil {
		return nil, mapError(err, "raw_record", externalID)
	}
	return rec, nil
}

// ListUnprocessed returns records not yet promoted, oldest first.
func (r *Repo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.RawRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listUnprocessedSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed raw_records: %w", err)
	}
	defer rows.Close()

	var records []*domain.RawRecord
	for rows.Next() {
		rec, err := scanRawRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw_record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw_records: %w", err)
	}

	return records, nil
}

// CountUnprocessed returns the number of records awaiting promotion.
func (r *Repo) CountUnprocessed(ctx context.Context) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var count int64
	if err := q.QueryRow(ctx, countUnprocessedSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unprocessed raw_records: %w", err)
	}
	return int(count), nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Upsert inserts a raw record or, when the external_id is already known,
// refreshes the stored payload and puts the record back into the promotion
// backlog. Returns the persisted row either way.
func (r *Repo) Upsert(ctx context.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	stored, err := scanRawRecord(q.QueryRow(ctx, upsertSQL,
		rec.ID, rec.ExternalID, rec.Payload, rec.IngestedAt,
	))
	if err != nil {
		return nil, mapError(err, "raw_record", rec.ExternalID)
	}
	return stored, nil
}

// MarkProcessed flags a record as promoted and stores the card backreference.
// Returns domain.ErrNotFound if the record does not exist.
func (r *Repo) MarkProcessed(ctx context.Context, id, cardID uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, markProcessedSQL, id, cardID)
	if err != nil {
		return mapError(err, "raw_record", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("raw_record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetError records the reason the last promotion attempt failed.
// The processed flag stays false so the next pass retries.
func (r *Repo) SetError(ctx context.Context, id uuid.UUID, msg string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, setErrorSQL, id, msg)
	if err != nil {
		return mapError(err, "raw_record", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("raw_record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	// pgx.ErrNoRows -> domain.ErrNotFound
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	// PgError codes
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		}
	}

	// Everything else: wrap with context
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

// ---------------------------------------------------------------------------
// Row scanning
// ---------------------------------------------------------------------------

func scanRawRecord(row pgx.Row) (*domain.RawRecord, error) {
	var rec domain.RawRecord
	err := row.Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.Payload,
		&rec.IngestedAt,
		&rec.Processed,
		&rec.Error,
		&rec.CardID,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
