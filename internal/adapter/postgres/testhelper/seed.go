package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedRawRecord inserts an unprocessed raw record with a unique external id.
func SeedRawRecord(t *testing.T, pool *pgxpool.Pool) domain.RawRecord {
	t.Helper()
	ctx := context.Background()

	rec := domain.RawRecord{
		ID:         uuid.New(),
		ExternalID: "EXT-" + uniqueSuffix(),
		Payload:    []byte(`{"id":"seed","text":"тестовое обращение","status":"новое"}`),
		IngestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO raw_records (id, external_id, payload, ingested_at, processed)
		 VALUES ($1, $2, $3, $4, false)`,
		rec.ID, rec.ExternalID, rec.Payload, rec.IngestedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedRawRecord insert: %v", err)
	}

	return rec
}

// SeedCard inserts a task card in NEW status with default fields.
func SeedCard(t *testing.T, pool *pgxpool.Pool) domain.TaskCard {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	card := domain.TaskCard{
		ID:        uuid.New(),
		Status:    domain.CardStatusNew,
		Title:     "Обращение " + uniqueSuffix(),
		Priority:  domain.PriorityMedium,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO task_cards (id, status, title, priority, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '{}', $5, $6)`,
		card.ID, card.Status.String(), card.Title, card.Priority.String(), card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedCard insert: %v", err)
	}

	return card
}
