// Package card implements the TaskCard repository using PostgreSQL.
// Fixed-shape queries use raw SQL; list/count filtering is built with squirrel.
package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// Repo provides task card persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new task card repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// psql builds placeholders in PostgreSQL's $N format.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const cardColumns = `id, raw_record_id, status, assigned_to, department_id,
title, requester_name, contact_info, request_type, description, priority,
classification, suggestion, metadata,
started_at, completed_at, confirmed_at, deadline, created_at, updated_at`

const getByIDSQL = `
SELECT ` + cardColumns + `
FROM task_cards
WHERE id = $1`

const getByRawRecordIDSQL = `
SELECT ` + cardColumns + `
FROM task_cards
WHERE raw_record_id = $1`

const createSQL = `
INSERT INTO task_cards (` + cardColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING ` + cardColumns

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a card by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	card, err := scanCard(q.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, mapError(err, "task_card", id.String())
	}
	return card, nil
}

// GetByRawRecordID returns the card promoted from the given raw record.
// The raw_record_id backreference is the single source of truth for the
// RawRecord <-> TaskCard relationship.
func (r *Repo) GetByRawRecordID(ctx context.Context, rawRecordID uuid.UUID) (*domain.TaskCard, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	card, err := scanCard(q.QueryRow(ctx, getByRawRecordIDSQL, rawRecordID))
	if err != nil {
		return nil, mapError(err, "task_card", rawRecordID.String())
	}
	return card, nil
}

// List returns cards matching the filter plus the total count for the same
// filter (ignoring pagination). Ordered by created_at DESC.
func (r *Repo) List(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error) {
	filter.Normalize()
	q := postgres.QuerierFromCtx(ctx, r.pool)

	total, err := r.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := applyFilter(psql.Select(cardColumns).From("task_cards"), filter).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list task_cards query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list task_cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.TaskCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task_card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate task_cards: %w", err)
	}

	return cards, total, nil
}

// Count returns the number of cards matching the filter (pagination ignored).
func (r *Repo) Count(ctx context.Context, filter domain.CardFilter) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	query, args, err := applyFilter(psql.Select("count(*)").From("task_cards"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count task_cards query: %w", err)
	}

	var count int64
	if err := q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count task_cards: %w", err)
	}
	return int(count), nil
}

// applyFilter adds WHERE clauses for the set filter fields.
func applyFilter(b sq.SelectBuilder, f domain.CardFilter) sq.SelectBuilder {
	if f.Status != nil {
		b = b.Where(sq.Eq{"status": f.Status.String()})
	}
	if f.AssignedTo != nil {
		b = b.Where(sq.Eq{"assigned_to": *f.AssignedTo})
	}
	if f.Department != nil {
		b = b.Where(sq.Eq{"department_id": *f.Department})
	}
	return b
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new card and returns the persisted row.
func (r *Repo) Create(ctx context.Context, card *domain.TaskCard) (*domain.TaskCard, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	metadata, err := marshalMetadata(card.Metadata)
	if err != nil {
		return nil, fmt.Errorf("task_card %s: %w", card.ID, err)
	}

	stored, err := scanCard(q.QueryRow(ctx, createSQL,
		card.ID, card.RawRecordID, card.Status.String(), card.AssignedTo, card.Department,
		card.Title, card.RequesterName, card.ContactInfo, card.RequestType, card.Description,
		card.Priority.String(), card.Classification, card.Suggestion, metadata,
		card.StartedAt, card.CompletedAt, card.ConfirmedAt, card.Deadline,
		card.CreatedAt, card.UpdatedAt,
	))
	if err != nil {
		return nil, mapError(err, "task_card", card.ID.String())
	}
	return stored, nil
}

// UpdateStatus applies a status transition's field changes. Only non-nil
// timestamps are written.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, params domain.StatusUpdate) (*domain.TaskCard, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Update("task_cards").
		Set("status", params.Status.String()).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + cardColumns)

	if params.AssignedTo != nil {
		b = b.Set("assigned_to", *params.AssignedTo)
	}
	if params.StartedAt != nil {
		b = b.Set("started_at", *params.StartedAt)
	}
	if params.CompletedAt != nil {
		b = b.Set("completed_at", *params.CompletedAt)
	}
	if params.ConfirmedAt != nil {
		b = b.Set("confirmed_at", *params.ConfirmedAt)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update task_card query: %w", err)
	}

	card, err := scanCard(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "task_card", id.String())
	}
	return card, nil
}

// UpdateFromRecord refreshes the mapped fields of an existing card from a
// re-ingested external record. Status is not touched here; status changes go
// through the lifecycle engine.
func (r *Repo) UpdateFromRecord(ctx context.Context, id uuid.UUID, params domain.CardUpdate) (*domain.TaskCard, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	metadata, err := marshalMetadata(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("task_card %s: %w", id, err)
	}

	query, args, err := psql.Update("task_cards").
		Set("title", params.Title).
		Set("requester_name", params.RequesterName).
		Set("contact_info", params.ContactInfo).
		Set("request_type", params.RequestType).
		Set("description", params.Description).
		Set("priority", params.Priority.String()).
		Set("deadline", params.Deadline).
		Set("metadata", metadata).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + cardColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update task_card query: %w", err)
	}

	card, err := scanCard(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "task_card", id.String())
	}
	return card, nil
}

// SetAnnotations stores the classification hook's output. Fire-and-forget
// from the caller's perspective; never part of a transition.
func (r *Repo) SetAnnotations(ctx context.Context, id uuid.UUID, classification, suggestion *string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE task_cards SET classification = $2, suggestion = $3, updated_at = $4 WHERE id = $1`,
		id, classification, suggestion, time.Now().UTC(),
	)
	if err != nil {
		return mapError(err, "task_card", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task_card %s: %w", id, domain.ErrNotFound)
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

func scanCard(row pgx.Row) (*domain.TaskCard, error) {
	var (
		card     domain.TaskCard
		status   string
		priority string
		metadata []byte
	)
	err := row.Scan(
		&card.ID, &card.RawRecordID, &status, &card.AssignedTo, &card.Department,
		&card.Title, &card.RequesterName, &card.ContactInfo, &card.RequestType, &card.Description,
		&priority, &card.Classification, &card.Suggestion, &metadata,
		&card.StartedAt, &card.CompletedAt, &card.ConfirmedAt, &card.Deadline,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.Status = domain.CardStatus(status)
	card.Priority = domain.Priority(priority)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &card.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &card, nil
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
