// Package lifecycle implements the task card engine: creation, the status
// state machine, assignment, audit history, and promotion of raw records
// into cards.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 10000
	MaxCommentLen     = 2000

	// DefaultPromoteBatch bounds one promotion pass so a large backlog is
	// worked off across passes instead of in one unbounded loop.
	DefaultPromoteBatch = 100
)

type cardRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error)
	GetByRawRecordID(ctx context.Context, rawRecordID uuid.UUID) (*domain.TaskCard, error)
	List(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error)
	Create(ctx context.Context, card *domain.TaskCard) (*domain.TaskCard, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (*domain.TaskCard, error)
	UpdateFromRecord(ctx context.Context, id uuid.UUID, update domain.CardUpdate) (*domain.TaskCard, error)
	SetAnnotations(ctx context.Context, id uuid.UUID, classification, suggestion *string) error
}

type historyRepo interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error)
}

type rawRecordRepo interface {
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.RawRecord, error)
	CountUnprocessed(ctx context.Context) (int, error)
	MarkProcessed(ctx context.Context, id, cardID uuid.UUID) error
	SetError(ctx context.Context, id uuid.UUID, msg string) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// classifier annotates a card with a category and a suggested response.
// Classification is best-effort: failures never affect the card lifecycle.
type classifier interface {
	Classify(ctx context.Context, title, description string) (category, suggestion string, err error)
}

// Service provides task card lifecycle operations.
type Service struct {
	cards      cardRepo
	history    historyRepo
	raws       rawRecordRepo
	tx         txManager
	classifier classifier
	sink       observe.Sink
	log        *slog.Logger
}

// NewService creates a new lifecycle service. The classifier may be nil,
// in which case promoted cards are not annotated.
func NewService(
	log *slog.Logger,
	cards cardRepo,
	history historyRepo,
	raws rawRecordRepo,
	tx txManager,
	classifier classifier,
	sink observe.Sink,
) *Service {
	if sink == nil {
		sink = observe.NopSink{}
	}
	return &Service{
		cards:      cards,
		history:    history,
		raws:       raws,
		tx:         tx,
		classifier: classifier,
		sink:       sink,
		log:        log.With("service", "lifecycle"),
	}
}

// trimOrNil trims whitespace. Returns nil if result is empty.
func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
