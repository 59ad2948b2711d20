package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
)

// Transition moves a card to the target status if the state machine allows
// the edge. The card update and its history entry commit atomically; an
// illegal edge returns domain.ErrInvalidTransition and leaves the card
// untouched.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (*domain.TaskCard, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	actorID := actorFromCtx(ctx)

	var updated *domain.TaskCard
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		card, err := s.cards.GetByID(ctx, input.CardID)
		if err != nil {
			return fmt.Errorf("get task card: %w", err)
		}

		updated, err = s.applyTransition(ctx, card, input.Target, actorID, trimOrNil(input.Comment))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, observe.EventStatusChanged, map[string]any{
		"card_id": updated.ID.String(),
		"status":  updated.Status.String(),
	})
	s.log.InfoContext(ctx, "card status changed",
		slog.String("card_id", updated.ID.String()),
		slog.String("status", updated.Status.String()),
	)

	return updated, nil
}

// applyTransition performs one validated state machine step inside the
// caller's transaction: the status write, the set-once timestamps, and the
// audit entry.
func (s *Service) applyTransition(
	ctx context.Context,
	card *domain.TaskCard,
	target domain.CardStatus,
	actorID *string,
	comment *string,
) (*domain.TaskCard, error) {
	if card.Status == target {
		return nil, fmt.Errorf("card %s is already %s: %w", card.ID, target, domain.ErrConflict)
	}
	if !card.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("card %s: %s -> %s: %w",
			card.ID, card.Status, target, domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	update := domain.StatusUpdate{Status: target}

	// Lifecycle timestamps are written at most once, on first entry into
	// the corresponding stage.
	if target == domain.CardStatusInProgress && card.StartedAt == nil {
		update.StartedAt = &now
	}
	if (target == domain.CardStatusAwaitingConfirmation || target == domain.CardStatusDone) && card.CompletedAt == nil {
		update.CompletedAt = &now
	}
	if target == domain.CardStatusDone && card.Status == domain.CardStatusAwaitingConfirmation {
		update.ConfirmedAt = &now
	}

	updated, err := s.cards.UpdateStatus(ctx, card.ID, update)
	if err != nil {
		return nil, fmt.Errorf("update card status: %w", err)
	}

	prev := card.Status
	if _, err := s.history.Append(ctx, &domain.HistoryEntry{
		ID:             uuid.New(),
		CardID:         card.ID,
		PreviousStatus: &prev,
		NewStatus:      target,
		ActorID:        actorID,
		Comment:        comment,
		CreatedAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	return updated, nil
}
