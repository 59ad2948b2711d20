package syncstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/syncstate"
	"github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/testhelper"
)

// The watermark lives in a single shared row, so these tests run
// sequentially and build on each other's state.
func TestRepo_Watermark(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := syncstate.New(pool)
	ctx := context.Background()

	t.Run("nil before the first pass", func(t *testing.T) {
		got, err := repo.GetWatermark(ctx)
		if err != nil {
			t.Fatalf("GetWatermark: unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("watermark should be nil before any sync pass, got %s", got)
		}
	})

	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("advance sets the watermark", func(t *testing.T) {
		if err := repo.Advance(ctx, first); err != nil {
			t.Fatalf("Advance: unexpected error: %v", err)
		}

		got, err := repo.GetWatermark(ctx)
		if err != nil {
			t.Fatalf("GetWatermark: %v", err)
		}
		if got == nil || !got.Equal(first) {
			t.Errorf("watermark: got %v, want %s", got, first)
		}
	})

	t.Run("advance moves forward", func(t *testing.T) {
		second := first.Add(15 * time.Minute)
		if err := repo.Advance(ctx, second); err != nil {
			t.Fatalf("Advance: %v", err)
		}

		got, err := repo.GetWatermark(ctx)
		if err != nil {
			t.Fatalf("GetWatermark: %v", err)
		}
		if got == nil || !got.Equal(second) {
			t.Errorf("watermark: got %v, want %s", got, second)
		}
	})

	t.Run("advance never moves backwards", func(t *testing.T) {
		current, err := repo.GetWatermark(ctx)
		if err != nil {
			t.Fatalf("GetWatermark: %v", err)
		}

		stale := current.Add(-time.Hour)
		if err := repo.Advance(ctx, stale); err != nil {
			t.Fatalf("Advance with stale time: unexpected error: %v", err)
		}

		got, err := repo.GetWatermark(ctx)
		if err != nil {
			t.Fatalf("GetWatermark: %v", err)
		}
		if got == nil || !got.Equal(*current) {
			t.Errorf("stale advance should be a no-op: got %v, want %s", got, current)
		}
	})
}
