package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/internal/service/lifecycle"
	"github.com/soloviev-m/civicdesk-backend/internal/upstream"
)

var (
	_ upstream.Fetcher = &fetcherMock{}
	_ rawRecordRepo    = &rawRecordRepoMock{}
	_ watermarkRepo    = &watermarkRepoMock{}
	_ promoter         = &promoterMock{}
)

type fetcherMock struct {
	FetchFunc func(ctx context.Context, from, to time.Time) ([]upstream.Record, error)

	mu    sync.Mutex
	calls []struct{ From, To time.Time }
}

func (m *fetcherMock) Fetch(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, struct{ From, To time.Time }{from, to})
	m.mu.Unlock()
	return m.FetchFunc(ctx, from, to)
}

func (m *fetcherMock) FetchCalls() []struct{ From, To time.Time } {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type rawRecordRepoMock struct {
	UpsertFunc func(ctx context.Context, rec *domain.RawRecord) (*domain.RawRecord, error)

	mu    sync.Mutex
	calls []*domain.RawRecord
}

func (m *rawRecordRepoMock) Upsert(ctx context.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
	m.mu.Lock()
	m.calls = append(m.calls, rec)
	m.mu.Unlock()
	if m.UpsertFunc == nil {
		return rec, nil
	}
	return m.UpsertFunc(ctx, rec)
}

func (m *rawRecordRepoMock) UpsertCalls() []*domain.RawRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type watermarkRepoMock struct {
	GetWatermarkFunc func(ctx context.Context) (*time.Time, error)
	AdvanceFunc      func(ctx context.Context, to time.Time) error

	mu       sync.Mutex
	advances []time.Time
}

func (m *watermarkRepoMock) GetWatermark(ctx context.Context) (*time.Time, error) {
	if m.GetWatermarkFunc == nil {
		return nil, nil
	}
	return m.GetWatermarkFunc(ctx)
}

func (m *watermarkRepoMock) Advance(ctx context.Context, to time.Time) error {
	m.mu.Lock()
	m.advances = append(m.advances, to)
	m.mu.Unlock()
	if m.AdvanceFunc == nil {
		return nil
	}
	return m.AdvanceFunc(ctx, to)
}

func (m *watermarkRepoMock) AdvanceCalls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advances
}

type promoterMock struct {
	PromoteUnprocessedFunc func(ctx context.Context, limit int) (lifecycle.PromoteStats, error)

	mu    sync.Mutex
	calls int
}

func (m *promoterMock) PromoteUnprocessed(ctx context.Context, limit int) (lifecycle.PromoteStats, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.PromoteUnprocessedFunc == nil {
		return lifecycle.PromoteStats{}, nil
	}
	return m.PromoteUnprocessedFunc(ctx, limit)
}

func (m *promoterMock) PromoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestService(f *fetcherMock, raws *rawRecordRepoMock, wm *watermarkRepoMock, p *promoterMock) *Service {
	return &Service{
		fetcher:    f,
		raws:       raws,
		watermarks: wm,
		promoter:   p,
		sink:       observe.NopSink{},
		lookback:   DefaultLookback,
		log:        slog.Default(),
	}
}

func testRecord(externalID string) upstream.Record {
	return upstream.Record{
		ExternalID: externalID,
		Text:       "Яма на дороге",
		Status:     "новое",
		Raw:        json.RawMessage(`{"id": "` + externalID + `", "text": "Яма на дороге", "status": "новое"}`),
	}
}

// ---------------------------------------------------------------------------
// RunPass tests
// ---------------------------------------------------------------------------

func TestRunPass_FirstRunUsesLookback(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return nil, nil
		},
	}
	wm := &watermarkRepoMock{}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, wm, &promoterMock{})

	before := time.Now().UTC()
	result, err := svc.RunPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fetcher.FetchCalls()
	if len(calls) != 1 {
		t.Fatalf("Fetch calls: got %d, want 1", len(calls))
	}
	gotWindow := calls[0].To.Sub(calls[0].From)
	if gotWindow != DefaultLookback {
		t.Errorf("window: got %v, want %v lookback", gotWindow, DefaultLookback)
	}
	if result.To.Before(before) {
		t.Errorf("window end %v should not precede pass start %v", result.To, before)
	}

	advances := wm.AdvanceCalls()
	if len(advances) != 1 || !advances[0].Equal(result.To) {
		t.Errorf("watermark should advance to window end: got %v", advances)
	}
}

func TestRunPass_ResumesFromWatermark(t *testing.T) {
	t.Parallel()

	mark := time.Now().UTC().Add(-2 * time.Hour)
	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return nil, nil
		},
	}
	wm := &watermarkRepoMock{
		GetWatermarkFunc: func(ctx context.Context) (*time.Time, error) {
			return &mark, nil
		},
	}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, wm, &promoterMock{})

	if _, err := svc.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fetcher.FetchCalls()
	if !calls[0].From.Equal(mark) {
		t.Errorf("window start: got %v, want watermark %v", calls[0].From, mark)
	}
}

func TestRunPass_IngestsAndPromotes(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return []upstream.Record{testRecord("ext-1"), testRecord("ext-2")}, nil
		},
	}
	raws := &rawRecordRepoMock{}
	p := &promoterMock{
		PromoteUnprocessedFunc: func(ctx context.Context, limit int) (lifecycle.PromoteStats, error) {
			return lifecycle.PromoteStats{Promoted: 2}, nil
		},
	}
	svc := newTestService(fetcher, raws, &watermarkRepoMock{}, p)

	result, err := svc.RunPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 2 || result.Ingested != 2 {
		t.Errorf("result: got %+v, want 2 fetched 2 ingested", result)
	}
	if result.Promote.Promoted != 2 {
		t.Errorf("promoted: got %d, want 2", result.Promote.Promoted)
	}

	stored := raws.UpsertCalls()
	if len(stored) != 2 {
		t.Fatalf("Upsert calls: got %d, want 2", len(stored))
	}
	if stored[0].ExternalID != "ext-1" || len(stored[0].Payload) == 0 {
		t.Errorf("stored record: got %+v, want verbatim payload under ext-1", stored[0])
	}
	if p.PromoteCalls() != 1 {
		t.Errorf("Promote calls: got %d, want 1", p.PromoteCalls())
	}
}

func TestRunPass_FetchFailureKeepsWatermark(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return nil, domain.ErrUpstreamUnavailable
		},
	}
	wm := &watermarkRepoMock{}
	p := &promoterMock{}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, wm, p)

	_, err := svc.RunPass(context.Background())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("error: got %v, want ErrUpstreamUnavailable", err)
	}
	if len(wm.AdvanceCalls()) != 0 {
		t.Error("watermark must not move after a failed fetch")
	}
	if p.PromoteCalls() != 0 {
		t.Error("no promotion after a failed fetch")
	}
}

func TestRunPass_StorageFailureKeepsWatermark(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection refused")
	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return []upstream.Record{testRecord("ext-1")}, nil
		},
	}
	raws := &rawRecordRepoMock{
		UpsertFunc: func(ctx context.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
			return nil, dbErr
		},
	}
	wm := &watermarkRepoMock{}
	svc := newTestService(fetcher, raws, wm, &promoterMock{})

	_, err := svc.RunPass(context.Background())
	if !errors.Is(err, dbErr) {
		t.Errorf("error: got %v, want storage error", err)
	}
	if len(wm.AdvanceCalls()) != 0 {
		t.Error("watermark must not move when ingestion fails")
	}
}

func TestRunPass_SkipsRecordsWithoutExternalID(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return []upstream.Record{{Text: "anonymous"}, testRecord("ext-1")}, nil
		},
	}
	raws := &rawRecordRepoMock{}
	svc := newTestService(fetcher, raws, &watermarkRepoMock{}, &promoterMock{})

	result, err := svc.RunPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 2 || result.Ingested != 1 {
		t.Errorf("result: got %+v, want 2 fetched 1 ingested", result)
	}
	if len(raws.UpsertCalls()) != 1 {
		t.Errorf("Upsert calls: got %d, want 1", len(raws.UpsertCalls()))
	}
}

func TestRunPass_PromotionRunsBeforeAdvance(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return []upstream.Record{testRecord("ext-1")}, nil
		},
	}
	wm := &watermarkRepoMock{}
	p := &promoterMock{}
	var promotedBeforeAdvance bool
	p.PromoteUnprocessedFunc = func(ctx context.Context, limit int) (lifecycle.PromoteStats, error) {
		promotedBeforeAdvance = len(wm.AdvanceCalls()) == 0
		return lifecycle.PromoteStats{Promoted: 1}, nil
	}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, wm, p)

	if _, err := svc.RunPass(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !promotedBeforeAdvance {
		t.Error("promotion must run before the watermark moves")
	}
	if len(wm.AdvanceCalls()) != 1 {
		t.Error("watermark should advance after the pass")
	}
}

func TestRunPass_PromotionFailureKeepsWatermark(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return []upstream.Record{testRecord("ext-1")}, nil
		},
	}
	wm := &watermarkRepoMock{}
	p := &promoterMock{
		PromoteUnprocessedFunc: func(ctx context.Context, limit int) (lifecycle.PromoteStats, error) {
			return lifecycle.PromoteStats{}, errors.New("listing failed")
		},
	}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, wm, p)

	_, err := svc.RunPass(context.Background())
	if err == nil {
		t.Fatal("expected error from promotion")
	}
	// The records are durable either way, but the watermark only moves at
	// the very end of a clean pass.
	if len(wm.AdvanceCalls()) != 0 {
		t.Error("watermark must not move when promotion fails")
	}
}

// ---------------------------------------------------------------------------
// Scheduler tests
// ---------------------------------------------------------------------------

func TestScheduler_TriggerNowSharesInFlightPass(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, &watermarkRepoMock{}, &promoterMock{})
	sched := NewScheduler(slog.Default(), svc, time.Hour)

	results := make(chan error, 2)
	go func() {
		_, err := sched.TriggerNow(context.Background())
		results <- err
	}()

	<-started
	go func() {
		_, err := sched.TriggerNow(context.Background())
		results <- err
	}()

	// Give the second trigger a moment to join the in-flight pass.
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if calls := len(fetcher.FetchCalls()); calls != 1 {
		t.Errorf("Fetch calls: got %d, want 1 shared pass", calls)
	}
}

func TestScheduler_StopEndsLoop(t *testing.T) {
	t.Parallel()

	fetcher := &fetcherMock{
		FetchFunc: func(ctx context.Context, from, to time.Time) ([]upstream.Record, error) {
			return nil, nil
		},
	}
	svc := newTestService(fetcher, &rawRecordRepoMock{}, &watermarkRepoMock{}, &promoterMock{})
	sched := NewScheduler(slog.Default(), svc, time.Hour)

	go sched.Start(context.Background())

	// The initial pass runs immediately on start.
	deadline := time.After(time.Second)
	for len(fetcher.FetchCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("initial pass did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sched.Stop()

	if calls := len(fetcher.FetchCalls()); calls != 1 {
		t.Errorf("Fetch calls after stop: got %d, want 1", calls)
	}
}
