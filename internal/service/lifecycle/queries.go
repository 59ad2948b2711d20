package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// GetCard returns one card by ID.
func (s *Service) GetCard(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("card_id", "required")
	}

	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task card: %w", err)
	}
	return card, nil
}

// ListCards returns cards matching the filter plus the total match count.
func (s *Service) ListCards(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, domain.NewValidationError("status", "unknown status")
	}
	if filter.Limit < 0 {
		return nil, 0, domain.NewValidationError("limit", "must be non-negative")
	}
	if filter.Offset < 0 {
		return nil, 0, domain.NewValidationError("offset", "must be non-negative")
	}

	cards, total, err := s.cards.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list task cards: %w", err)
	}
	return cards, total, nil
}

// GetHistory returns a card's full audit trail, oldest entry first. The
// card must exist; a card with no history is a bug, since creation always
// writes the first entry.
func (s *Service) GetHistory(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error) {
	if cardID == uuid.Nil {
		return nil, domain.NewValidationError("card_id", "required")
	}

	if _, err := s.cards.GetByID(ctx, cardID); err != nil {
		return nil, fmt.Errorf("get task card: %w", err)
	}

	entries, err := s.history.ListByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card history: %w", err)
	}
	return entries, nil
}

// Backlog returns the number of raw records still awaiting promotion.
func (s *Service) Backlog(ctx context.Context) (int, error) {
	count, err := s.raws.CountUnprocessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed records: %w", err)
	}
	return count, nil
}
