package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
)

// PromoteStats summarizes one promotion pass.
type PromoteStats struct {
	Promoted  int
	Refreshed int
	Failed    int
}

// PromoteUnprocessed works through the backlog of raw records, turning each
// into a task card or refreshing the card it was already promoted to. Each
// record is handled in its own transaction: a failure is recorded on the
// record and the pass continues, so one malformed payload never blocks the
// batch. The next pass retries failed records because their processed flag
// stays false.
func (s *Service) PromoteUnprocessed(ctx context.Context, limit int) (PromoteStats, error) {
	if limit <= 0 {
		limit = DefaultPromoteBatch
	}

	records, err := s.raws.ListUnprocessed(ctx, limit)
	if err != nil {
		return PromoteStats{}, fmt.Errorf("list unprocessed records: %w", err)
	}

	var stats PromoteStats
	for _, raw := range records {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		card, created, err := s.promoteOne(ctx, raw)
		if err != nil {
			stats.Failed++
			s.recordFailure(ctx, raw, err)
			continue
		}

		if created {
			stats.Promoted++
			s.sink.Record(ctx, observe.EventCardPromoted, map[string]any{
				"card_id":     card.ID.String(),
				"external_id": raw.ExternalID,
			})
			s.annotate(ctx, card)
		} else {
			stats.Refreshed++
			s.sink.Record(ctx, observe.EventCardRefreshed, map[string]any{
				"card_id":     card.ID.String(),
				"external_id": raw.ExternalID,
			})
		}
	}

	s.log.InfoContext(ctx, "promotion pass finished",
		slog.Int("promoted", stats.Promoted),
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("failed", stats.Failed),
	)

	return stats, nil
}

// promoteOne handles a single raw record atomically. created reports whether
// a new card was made (as opposed to refreshing an existing one).
func (s *Service) promoteOne(ctx context.Context, raw *domain.RawRecord) (card *domain.TaskCard, created bool, err error) {
	mapped, err := mapPayload(raw.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("record %s: %w", raw.ExternalID, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.cards.GetByRawRecordID(ctx, raw.ID)
		switch {
		case err == nil:
			card, err = s.refreshCard(ctx, existing, mapped)
		case errors.Is(err, domain.ErrNotFound):
			created = true
			card, err = s.createFromRecord(ctx, raw, mapped)
		default:
			return fmt.Errorf("lookup card for record: %w", err)
		}
		if err != nil {
			return err
		}

		if err := s.raws.MarkProcessed(ctx, raw.ID, card.ID); err != nil {
			return fmt.Errorf("mark record processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return card, created, nil
}

// createFromRecord makes a card for a record seen for the first time. The
// card starts at whatever status the portal reports, with lifecycle
// timestamps backfilled so a card born IN_PROGRESS still has StartedAt.
func (s *Service) createFromRecord(ctx context.Context, raw *domain.RawRecord, mapped *mappedCard) (*domain.TaskCard, error) {
	now := time.Now().UTC()
	rawID := raw.ID

	card := &domain.TaskCard{
		ID:            uuid.New(),
		RawRecordID:   &rawID,
		Status:        mapped.Status,
		Title:         mapped.Title,
		Description:   mapped.Description,
		RequesterName: mapped.RequesterName,
		ContactInfo:   mapped.ContactInfo,
		RequestType:   mapped.RequestType,
		Priority:      mapped.Priority,
		Deadline:      mapped.Deadline,
		Metadata:      mapped.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch mapped.Status {
	case domain.CardStatusInProgress:
		card.StartedAt = &now
	case domain.CardStatusAwaitingConfirmation:
		card.StartedAt = &now
		card.CompletedAt = &now
	case domain.CardStatusDone:
		card.StartedAt = &now
		card.CompletedAt = &now
	}

	created, err := s.cards.Create(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}

	if _, err := s.history.Append(ctx, creationEntry(created, nil, now)); err != nil {
		return nil, fmt.Errorf("append creation history: %w", err)
	}

	return created, nil
}

// refreshCard re-applies the mapped fields to an already-promoted card.
// If the portal moved the request forward, the change goes through the
// state machine with a system actor; a status the machine does not allow
// from the current position is ignored, since local progress wins over a
// stale or regressing portal status.
func (s *Service) refreshCard(ctx context.Context, existing *domain.TaskCard, mapped *mappedCard) (*domain.TaskCard, error) {
	updated, err := s.cards.UpdateFromRecord(ctx, existing.ID, mapped.toCardUpdate())
	if err != nil {
		return nil, fmt.Errorf("refresh card: %w", err)
	}

	if mapped.Status != existing.Status && existing.Status.CanTransitionTo(mapped.Status) {
		comment := "статус обновлён по данным портала"
		updated, err = s.applyTransition(ctx, updated, mapped.Status, nil, &comment)
		if err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// recordFailure stores the promotion error on the record and reports it.
// The write happens outside the rolled-back transaction.
func (s *Service) recordFailure(ctx context.Context, raw *domain.RawRecord, cause error) {
	s.log.ErrorContext(ctx, "promotion failed",
		slog.String("external_id", raw.ExternalID),
		slog.String("error", cause.Error()),
	)
	s.sink.Record(ctx, observe.EventPromotionFailed, map[string]any{
		"external_id": raw.ExternalID,
		"error":       cause.Error(),
	})

	if err := s.raws.SetError(ctx, raw.ID, cause.Error()); err != nil {
		s.log.ErrorContext(ctx, "store promotion error",
			slog.String("external_id", raw.ExternalID),
			slog.String("error", err.Error()),
		)
	}
}

// annotate runs the classification hook on a freshly promoted card.
// Best-effort: a classifier failure is logged and the card stays
// unannotated.
func (s *Service) annotate(ctx context.Context, card *domain.TaskCard) {
	if s.classifier == nil {
		return
	}

	description := ""
	if card.Description != nil {
		description = *card.Description
	}

	category, suggestion, err := s.classifier.Classify(ctx, card.Title, description)
	if err != nil {
		s.log.WarnContext(ctx, "classification failed",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	var suggestionPtr *string
	if suggestion != "" {
		suggestionPtr = &suggestion
	}
	if err := s.cards.SetAnnotations(ctx, card.ID, &category, suggestionPtr); err != nil {
		s.log.WarnContext(ctx, "store annotations",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
