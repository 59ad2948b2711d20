// Package sync implements the watermark-based ingestion pipeline: fetch a
// window of records from the portal, store them idempotently, promote the
// backlog, and advance the watermark.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/internal/service/lifecycle"
	"github.com/soloviev-m/civicdesk-backend/internal/upstream"
)

// DefaultLookback bounds the first window when no sync has ever completed.
const DefaultLookback = 24 * time.Hour

type rawRecordRepo interface {
	Upsert(ctx context.Context, rec *domain.RawRecord) (*domain.RawRecord, error)
}

type watermarkRepo interface {
	GetWatermark(ctx context.Context) (*time.Time, error)
	Advance(ctx context.Context, to time.Time) error
}

type promoter interface {
	PromoteUnprocessed(ctx context.Context, limit int) (lifecycle.PromoteStats, error)
}

// PassResult summarizes one completed sync pass.
type PassResult struct {
	From     time.Time
	To       time.Time
	Fetched  int
	Ingested int
	Promote  lifecycle.PromoteStats
}

// Service runs sync passes against the portal.
type Service struct {
	fetcher    upstream.Fetcher
	raws       rawRecordRepo
	watermarks watermarkRepo
	promoter   promoter
	sink       observe.Sink
	lookback   time.Duration
	log        *slog.Logger
}

// NewService creates a new sync service. lookback bounds the first window
// of a fresh deployment; zero means DefaultLookback.
func NewService(
	log *slog.Logger,
	fetcher upstream.Fetcher,
	raws rawRecordRepo,
	watermarks watermarkRepo,
	promoter promoter,
	sink observe.Sink,
	lookback time.Duration,
) *Service {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if sink == nil {
		sink = observe.NopSink{}
	}
	return &Service{
		fetcher:    fetcher,
		raws:       raws,
		watermarks: watermarks,
		promoter:   promoter,
		sink:       sink,
		lookback:   lookback,
		log:        log.With("service", "sync"),
	}
}

// RunPass executes one full sync cycle. The window starts at the stored
// watermark (or now minus the lookback on a fresh deployment) and ends at
// the wall clock captured before fetching, so records arriving mid-pass are
// picked up next time. The watermark advances only after every fetched
// record is stored and the backlog promotion has run; an earlier failure
// leaves it untouched and the same window is retried on the next pass.
func (s *Service) RunPass(ctx context.Context) (*PassResult, error) {
	watermark, err := s.watermarks.GetWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	to := time.Now().UTC()
	from := to.Add(-s.lookback)
	if watermark != nil {
		from = watermark.UTC()
	}

	records, err := s.fetcher.Fetch(ctx, from, to)
	if err != nil {
		s.sink.Record(ctx, observe.EventPassFailed, map[string]any{
			"from":  from,
			"to":    to,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("fetch window [%s, %s): %w",
			from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}

	result := &PassResult{From: from, To: to, Fetched: len(records)}

	for _, rec := range records {
		if rec.ExternalID == "" {
			s.log.WarnContext(ctx, "record without external id skipped")
			continue
		}
		if err := s.ingest(ctx, rec, to); err != nil {
			// Storage trouble is systemic: stop, keep the watermark, let
			// the next pass re-fetch the same window. Upsert makes the
			// re-ingestion harmless.
			s.sink.Record(ctx, observe.EventPassFailed, map[string]any{
				"from":  from,
				"to":    to,
				"error": err.Error(),
			})
			return nil, err
		}
		result.Ingested++
	}

	// Records are durable at this point; a promotion failure only delays
	// cards, never loses data, because the backlog is retried next pass.
	result.Promote, err = s.promoter.PromoteUnprocessed(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("promote backlog: %w", err)
	}

	if err := s.watermarks.Advance(ctx, to); err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}

	s.sink.Record(ctx, observe.EventPassCompleted, map[string]any{
		"fetched":  result.Fetched,
		"ingested": result.Ingested,
		"promoted": result.Promote.Promoted,
		"failed":   result.Promote.Failed,
	})
	s.log.InfoContext(ctx, "sync pass completed",
		slog.Time("from", from),
		slog.Time("to", to),
		slog.Int("fetched", result.Fetched),
		slog.Int("promoted", result.Promote.Promoted),
		slog.Int("refreshed", result.Promote.Refreshed),
		slog.Int("failed", result.Promote.Failed),
	)

	return result, nil
}

// ingest stores one fetched record. The verbatim payload is kept; repeated
// ingestion of the same external ID refreshes the payload and nothing else.
func (s *Service) ingest(ctx context.Context, rec upstream.Record, at time.Time) error {
	stored, err := s.raws.Upsert(ctx, &domain.RawRecord{
		ID:         uuid.New(),
		ExternalID: rec.ExternalID,
		Payload:    rec.Raw,
		IngestedAt: at,
	})
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.ExternalID, err)
	}

	s.sink.Record(ctx, observe.EventIngested, map[string]any{
		"external_id": stored.ExternalID,
	})
	return nil
}
