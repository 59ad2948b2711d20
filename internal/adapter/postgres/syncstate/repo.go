// Package syncstate implements the single-row watermark store used by the
// sync scheduler. The watermark marks the end of the most recently
// successfully synchronized window; it is never a process-wide variable.
package syncstate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
)

// Repo provides watermark persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new sync state repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const getWatermarkSQL = `
SELECT last_synced_at FROM sync_state WHERE id = 1`

// advanceSQL only moves the watermark forward. A concurrent pass that
// already advanced further wins; updated_at still records the attempt.
const advanceSQL = `
UPDATE sync_state
SET last_synced_at = GREATEST(coalesce(last_synced_at, $1), $1),
    updated_at = now()
WHERE id = 1`

// GetWatermark returns the current watermark, or nil if no sync pass has
// ever completed.
func (r *Repo) GetWatermark(ctx context.Context) (*time.Time, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var watermark *time.Time
	if err := q.QueryRow(ctx, getWatermarkSQL).Scan(&watermark); err != nil {
		return nil, fmt.Errorf("get sync watermark: %w", err)
	}
	return watermark, nil
}

// Advance moves the watermark to the given time (monotonic: never backwards).
func (r *Repo) Advance(ctx context.Context, to time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := q.Exec(ctx, advanceSQL, to); err != nil {
		return fmt.Errorf("advance sync watermark: %w", err)
	}
	return nil
}
