package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/pkg/ctxutil"
)

// CreateCard creates a card directly in status NEW, together with its
// creation history entry. Cards derived from portal records go through
// PromoteUnprocessed instead.
func (s *Service) CreateCard(ctx context.Context, input CreateCardInput) (*domain.TaskCard, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	card := &domain.TaskCard{
		ID:            uuid.New(),
		Status:        domain.CardStatusNew,
		Title:         domain.NormalizeText(input.Title),
		Description:   trimOrNil(input.Description),
		RequesterName: trimOrNil(input.RequesterName),
		ContactInfo:   trimOrNil(input.ContactInfo),
		RequestType:   trimOrNil(input.RequestType),
		Priority:      priority,
		Department:    trimOrNil(input.Department),
		Deadline:      input.Deadline,
		Metadata:      input.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	actorID := actorFromCtx(ctx)

	var created *domain.TaskCard
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.cards.Create(ctx, card)
		if err != nil {
			return fmt.Errorf("create task card: %w", err)
		}

		if _, err := s.history.Append(ctx, creationEntry(created, actorID, now)); err != nil {
			return fmt.Errorf("append creation history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Record(ctx, observe.EventCardPromoted, map[string]any{
		"card_id": created.ID.String(),
		"source":  "manual",
	})
	s.log.InfoContext(ctx, "card created",
		slog.String("card_id", created.ID.String()),
		slog.String("priority", created.Priority.String()),
	)

	return created, nil
}

// creationEntry builds the history entry recorded when a card comes into
// existence. PreviousStatus is nil only here.
func creationEntry(card *domain.TaskCard, actorID *string, at time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:        uuid.New(),
		CardID:    card.ID,
		NewStatus: card.Status,
		ActorID:   actorID,
		CreatedAt: at,
	}
}

// actorFromCtx returns the operator ID from the context, or nil for
// system-triggered operations.
func actorFromCtx(ctx context.Context) *string {
	if id, ok := ctxutil.ActorIDFromCtx(ctx); ok && id != "" {
		return &id
	}
	return nil
}
