package sync

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Scheduler runs sync passes on a fixed interval and on demand. Passes
// never overlap: a manual trigger arriving while a pass is in flight joins
// that pass instead of starting a second one.
type Scheduler struct {
	service  *Service
	interval time.Duration
	group    singleflight.Group
	stop     chan struct{}
	done     chan struct{}
	log      *slog.Logger
}

// NewScheduler creates a Scheduler around the sync service.
func NewScheduler(log *slog.Logger, service *Service, interval time.Duration) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log.With("component", "sync_scheduler"),
	}
}

// Start launches the periodic loop. The first pass runs immediately so a
// restarted process catches up without waiting a full interval. Blocks
// until Stop is called or the context is cancelled; run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runPass(ctx)
		case <-ctx.Done():
			s.log.InfoContext(ctx, "scheduler stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return
		}
	}
}

// TriggerNow runs a pass immediately, or joins the one already running.
func (s *Scheduler) TriggerNow(ctx context.Context) (*PassResult, error) {
	v, err, _ := s.group.Do("pass", func() (any, error) {
		return s.service.RunPass(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PassResult), nil
}

// Stop ends the loop and waits for the in-flight pass to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runPass(ctx context.Context) {
	_, err, _ := s.group.Do("pass", func() (any, error) {
		return s.service.RunPass(ctx)
	})
	if err != nil {
		// A failed pass is not fatal: the watermark did not move, so the
		// next tick retries the same window.
		s.log.ErrorContext(ctx, "sync pass failed", slog.String("error", err.Error()))
	}
}
