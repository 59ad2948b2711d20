// Package history implements the HistoryEntry repository using PostgreSQL.
// The table is append-only: entries are never updated or removed.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// Repo provides history entry persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new history repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const historyColumns = `id, card_id, previous_status, new_status, actor_id, comment, metadata, created_at`

const appendSQL = `
INSERT INTO history_entries (` + historyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + historyColumns

const listByCardSQL = `
SELECT ` + historyColumns + `
FROM history_entries
WHERE card_id = $1
ORDER BY created_at ASC`

const countByCardSQL = `
SELECT count(*) FROM history_entries WHERE card_id = $1`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append inserts a new history entry and returns the persisted row.
func (r *Repo) Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("history_entry %s: %w", entry.ID, err)
	}

	var prevStatus *string
	if entry.PreviousStatus != nil {
		s := entry.PreviousStatus.String()
		prevStatus = &s
	}

	stored, err := scanEntry(q.QueryRow(ctx, appendSQL,
		entry.ID, entry.CardID, prevStatus, entry.NewStatus.String(),
		entry.ActorID, entry.Comment, metadata, entry.CreatedAt,
	))
	if err != nil {
		return nil, mapError(err, entry.ID)
	}
	return stored, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByCard returns the full transition history of a card in timestamp
// order. Replaying the entries reconstructs the card's current status.
func (r *Repo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listByCardSQL, cardID)
	if err != nil {
		return nil, fmt.Errorf("list history_entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history_entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history_entries: %w", err)
	}

	return entries, nil
}

// CountByCard returns the number of history entries for a card.
func (r *Repo) CountByCard(ctx context.Context, cardID uuid.UUID) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var count int64
	if err := q.QueryRow(ctx, countByCardSQL, cardID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history_entries: %w", err)
	}
	return int(count), nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("history_entry %s: %w", id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("history_entry %s: %w", id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("history_entry %s: %w", id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("history_entry %s: %w", id, domain.ErrNotFound)
		}
	}

	return fmt.Errorf("history_entry %s: %w", id, err)
}

// ---------------------------------------------------------------------------
// Row scanning
// ---------------------------------------------------------------------------

func scanEntry(row pgx.Row) (*domain.HistoryEntry, error) {
	var (
		entry      domain.HistoryEntry
		prevStatus *string
		newStatus  string
		metadata   []byte
	)
	err := row.Scan(
		&entry.ID, &entry.CardID, &prevStatus, &newStatus,
		&entry.ActorID, &entry.Comment, &metadata, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prevStatus != nil {
		s := domain.CardStatus(*prevStatus)
		entry.PreviousStatus = &s
	}
	entry.NewStatus = domain.CardStatus(newStatus)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &entry, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}
