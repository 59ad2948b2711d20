package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	syncsvc "github.com/soloviev-m/civicdesk-backend/internal/service/sync"
)

// syncTrigger defines the minimal interface needed by SyncHandler.
type syncTrigger interface {
	TriggerNow(ctx context.Context) (*syncsvc.PassResult, error)
}

type backlogCounter interface {
	Backlog(ctx context.Context) (int, error)
}

// SyncHandler serves the manual sync trigger and backlog inspection.
type SyncHandler struct {
	trigger syncTrigger
	backlog backlogCounter
	log     *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(trigger syncTrigger, backlog backlogCounter, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{trigger: trigger, backlog: backlog, log: logger.With("handler", "sync")}
}

type passResponse struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Fetched   int       `json:"fetched"`
	Ingested  int       `json:"ingested"`
	Promoted  int       `json:"promoted"`
	Refreshed int       `json:"refreshed"`
	Failed    int       `json:"failed"`
}

// Trigger handles POST /sync. A trigger that arrives while a scheduled
// pass is running returns that pass's result.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.trigger.TriggerNow(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, passResponse{
		From:      result.From,
		To:        result.To,
		Fetched:   result.Fetched,
		Ingested:  result.Ingested,
		Promoted:  result.Promote.Promoted,
		Refreshed: result.Promote.Refreshed,
		Failed:    result.Promote.Failed,
	})
}

// Backlog handles GET /sync/backlog.
func (h *SyncHandler) Backlog(w http.ResponseWriter, r *http.Request) {
	count, err := h.backlog.Backlog(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unprocessed": count})
}
