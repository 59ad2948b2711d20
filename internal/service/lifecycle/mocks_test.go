package lifecycle

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

var (
	_ cardRepo      = &cardRepoMock{}
	_ historyRepo   = &historyRepoMock{}
	_ rawRecordRepo = &rawRecordRepoMock{}
	_ txManager     = &txManagerMock{}
	_ classifier    = &classifierMock{}
)

// cardRepoMock is a hand-rolled mock with one Func field per method.
type cardRepoMock struct {
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error)
	GetByRawRecordIDFunc func(ctx context.Context, rawRecordID uuid.UUID) (*domain.TaskCard, error)
	ListFunc             func(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error)
	CreateFunc           func(ctx context.Context, card *domain.TaskCard) (*domain.TaskCard, error)
	UpdateStatusFunc     func(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (*domain.TaskCard, error)
	UpdateFromRecordFunc func(ctx context.Context, id uuid.UUID, update domain.CardUpdate) (*domain.TaskCard, error)
	SetAnnotationsFunc   func(ctx context.Context, id uuid.UUID, classification, suggestion *string) error

	mu    sync.Mutex
	calls struct {
		Create           []*domain.TaskCard
		UpdateStatus     []domain.StatusUpdate
		UpdateFromRecord []domain.CardUpdate
		SetAnnotations   []uuid.UUID
	}
}

func (m *cardRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error) {
	if m.GetByIDFunc == nil {
		panic("cardRepoMock.GetByIDFunc is nil")
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *cardRepoMock) GetByRawRecordID(ctx context.Context, rawRecordID uuid.UUID) (*domain.TaskCard, error) {
	if m.GetByRawRecordIDFunc == nil {
		panic("cardRepoMock.GetByRawRecordIDFunc is nil")
	}
	return m.GetByRawRecordIDFunc(ctx, rawRecordID)
}

func (m *cardRepoMock) List(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error) {
	if m.ListFunc == nil {
		panic("cardRepoMock.ListFunc is nil")
	}
	return m.ListFunc(ctx, filter)
}

func (m *cardRepoMock) Create(ctx context.Context, card *domain.TaskCard) (*domain.TaskCard, error) {
	if m.CreateFunc == nil {
		panic("cardRepoMock.CreateFunc is nil")
	}
	m.mu.Lock()
	m.calls.Create = append(m.calls.Create, card)
	m.mu.Unlock()
	return m.CreateFunc(ctx, card)
}

func (m *cardRepoMock) CreateCalls() []*domain.TaskCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Create
}

func (m *cardRepoMock) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (*domain.TaskCard, error) {
	if m.UpdateStatusFunc == nil {
		panic("cardRepoMock.UpdateStatusFunc is nil")
	}
	m.mu.Lock()
	m.calls.UpdateStatus = append(m.calls.UpdateStatus, update)
	m.mu.Unlock()
	return m.UpdateStatusFunc(ctx, id, update)
}

func (m *cardRepoMock) UpdateStatusCalls() []domain.StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpdateStatus
}

func (m *cardRepoMock) UpdateFromRecord(ctx context.Context, id uuid.UUID, update domain.CardUpdate) (*domain.TaskCard, error) {
	if m.UpdateFromRecordFunc == nil {
		panic("cardRepoMock.UpdateFromRecordFunc is nil")
	}
	m.mu.Lock()
	m.calls.UpdateFromRecord = append(m.calls.UpdateFromRecord, update)
	m.mu.Unlock()
	return m.UpdateFromRecordFunc(ctx, id, update)
}

func (m *cardRepoMock) UpdateFromRecordCalls() []domain.CardUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpdateFromRecord
}

func (m *cardRepoMock) SetAnnotations(ctx context.Context, id uuid.UUID, classification, suggestion *string) error {
	if m.SetAnnotationsFunc == nil {
		panic("cardRepoMock.SetAnnotationsFunc is nil")
	}
	m.mu.Lock()
	m.calls.SetAnnotations = append(m.calls.SetAnnotations, id)
	m.mu.Unlock()
	return m.SetAnnotationsFunc(ctx, id, classification, suggestion)
}

func (m *cardRepoMock) SetAnnotationsCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.SetAnnotations
}

// historyRepoMock mocks the append-only audit log.
type historyRepoMock struct {
	AppendFunc     func(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error)
	ListByCardFunc func(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error)

	mu    sync.Mutex
	calls struct {
		Append []*domain.HistoryEntry
	}
}

func (m *historyRepoMock) Append(ctx context.Context, entry *domain.HistoryEntry) (*domain.HistoryEntry, error) {
	m.mu.Lock()
	m.calls.Append = append(m.calls.Append, entry)
	m.mu.Unlock()
	if m.AppendFunc == nil {
		return entry, nil
	}
	return m.AppendFunc(ctx, entry)
}

func (m *historyRepoMock) AppendCalls() []*domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Append
}

func (m *historyRepoMock) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error) {
	if m.ListByCardFunc == nil {
		panic("historyRepoMock.ListByCardFunc is nil")
	}
	return m.ListByCardFunc(ctx, cardID)
}

// rawRecordRepoMock mocks the raw record store.
type rawRecordRepoMock struct {
	ListUnprocessedFunc  func(ctx context.Context, limit int) ([]*domain.RawRecord, error)
	CountUnprocessedFunc func(ctx context.Context) (int, error)
	MarkProcessedFunc    func(ctx context.Context, id, cardID uuid.UUID) error
	SetErrorFunc         func(ctx context.Context, id uuid.UUID, msg string) error

	mu    sync.Mutex
	calls struct {
		MarkProcessed []uuid.UUID
		SetError      []string
	}
}

func (m *rawRecordRepoMock) ListUnprocessed(ctx context.Context, limit int) ([]*domain.RawRecord, error) {
	if m.ListUnprocessedFunc == nil {
		panic("rawRecordRepoMock.ListUnprocessedFunc is nil")
	}
	return m.ListUnprocessedFunc(ctx, limit)
}

func (m *rawRecordRepoMock) CountUnprocessed(ctx context.Context) (int, error) {
	if m.CountUnprocessedFunc == nil {
		panic("rawRecordRepoMock.CountUnprocessedFunc is nil")
	}
	return m.CountUnprocessedFunc(ctx)
}

func (m *rawRecordRepoMock) MarkProcessed(ctx context.Context, id, cardID uuid.UUID) error {
	m.mu.Lock()
	m.calls.MarkProcessed = append(m.calls.MarkProcessed, id)
	m.mu.Unlock()
	if m.MarkProcessedFunc == nil {
		return nil
	}
	return m.MarkProcessedFunc(ctx, id, cardID)
}

func (m *rawRecordRepoMock) MarkProcessedCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.MarkProcessed
}

func (m *rawRecordRepoMock) SetError(ctx context.Context, id uuid.UUID, msg string) error {
	m.mu.Lock()
	m.calls.SetError = append(m.calls.SetError, msg)
	m.mu.Unlock()
	if m.SetErrorFunc == nil {
		return nil
	}
	return m.SetErrorFunc(ctx, id, msg)
}

func (m *rawRecordRepoMock) SetErrorCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.SetError
}

// txManagerMock runs the callback directly, without a transaction.
type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// classifierMock mocks the classification hook.
type classifierMock struct {
	ClassifyFunc func(ctx context.Context, title, description string) (string, string, error)

	mu    sync.Mutex
	calls int
}

func (m *classifierMock) Classify(ctx context.Context, title, description string) (string, string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ClassifyFunc == nil {
		panic("classifierMock.ClassifyFunc is nil")
	}
	return m.ClassifyFunc(ctx, title, description)
}

func (m *classifierMock) ClassifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
