package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
)

// Assign hands a card to an operator. Assigning a NEW card also moves it to
// IN_PROGRESS as a single combined step with an automatic comment, so the
// history log shows who picked the card up. Reassigning a card already in
// flight changes only the assignee. Done cards cannot be assigned.
func (s *Service) Assign(ctx context.Context, input AssignInput) (*domain.TaskCard, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	assignee := strings.TrimSpace(input.Assignee)
	actorID := actorFromCtx(ctx)

	var updated *domain.TaskCard
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		card, err := s.cards.GetByID(ctx, input.CardID)
		if err != nil {
			return fmt.Errorf("get task card: %w", err)
		}

		if card.Status.IsTerminal() {
			return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, domain.ErrConflict)
		}

		now := time.Now().UTC()

		if card.Status == domain.CardStatusNew {
			// Combined step: assignment implies work has started.
			update := domain.StatusUpdate{
				Status:     domain.CardStatusInProgress,
				AssignedTo: &assignee,
			}
			if card.StartedAt == nil {
				update.StartedAt = &now
			}

			updated, err = s.cards.UpdateStatus(ctx, card.ID, update)
			if err != nil {
				return fmt.Errorf("update card status: %w", err)
			}

			prev := card.Status
			comment := fmt.Sprintf("назначено: %s", assignee)
			if _, err := s.history.Append(ctx, &domain.HistoryEntry{
				ID:             uuid.New(),
				CardID:         card.ID,
				PreviousStatus: &prev,
				NewStatus:      domain.CardStatusInProgress,
				ActorID:        actorID,
				Comment:        &comment,
				CreatedAt:      now,
			}); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
			return nil
		}

		// Reassignment: keep the current status, only the assignee changes.
		updated, err = s.cards.UpdateStatus(ctx, card.ID, domain.StatusUpdate{
			Status:     card.Status,
			AssignedTo: &assignee,
		})
		if err != nil {
			return fmt.Errorf("update card assignee: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, observe.EventCardAssigned, map[string]any{
		"card_id":  updated.ID.String(),
		"assignee": assignee,
	})
	s.log.InfoContext(ctx, "card assigned",
		slog.String("card_id", updated.ID.String()),
		slog.String("assignee", assignee),
		slog.String("status", updated.Status.String()),
	)

	return updated, nil
}
