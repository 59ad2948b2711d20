// Package observe provides the event sink consumed by the ingestion and
// lifecycle components. Sink failures must never abort the operation that
// reported the event, so implementations are fire-and-forget.
package observe

import (
	"context"
	"log/slog"
)

// Event names reported by the core components.
const (
	EventFetchAttempt    = "upstream.fetch_attempt"
	EventFetchOK         = "upstream.fetch_ok"
	EventFetchFailed     = "upstream.fetch_failed"
	EventIngested        = "sync.record_ingested"
	EventPassCompleted   = "sync.pass_completed"
	EventPassFailed      = "sync.pass_failed"
	EventCardPromoted    = "lifecycle.card_promoted"
	EventCardRefreshed   = "lifecycle.card_refreshed"
	EventPromotionFailed = "lifecycle.promotion_failed"
	EventStatusChanged   = "lifecycle.status_changed"
	EventCardAssigned    = "lifecycle.card_assigned"
)

// Sink receives one event per ingestion attempt, promotion outcome, and
// status transition.
type Sink interface {
	Record(ctx context.Context, event string, fields map[string]any)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a Sink backed by slog.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{log: logger.With("component", "observe")}
}

func (s *LogSink) Record(ctx context.Context, event string, fields map[string]any) {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.log.InfoContext(ctx, event, attrs...)
}

// MultiSink fans one event out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

func (m *MultiSink) Record(ctx context.Context, event string, fields map[string]any) {
	for _, s := range m.sinks {
		s.Record(ctx, event, fields)
	}
}

// NopSink discards all events. Used in tests and one-shot commands.
type NopSink struct{}

func (NopSink) Record(context.Context, string, map[string]any) {}
