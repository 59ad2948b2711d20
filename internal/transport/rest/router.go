package rest

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soloviev-m/civicdesk-backend/internal/transport/middleware"
)

// NewRouter assembles the HTTP surface: health probes, the card API, the
// sync trigger, and Prometheus metrics.
func NewRouter(
	logger *slog.Logger,
	health *HealthHandler,
	cards *CardHandler,
	synch *SyncHandler,
	registry *prometheus.Registry,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /livez", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.HandleFunc("GET /health", health.Health)

	mux.HandleFunc("GET /cards", cards.List)
	mux.HandleFunc("POST /cards", cards.Create)
	mux.HandleFunc("GET /cards/{id}", cards.Get)
	mux.HandleFunc("POST /cards/{id}/status", cards.UpdateStatus)
	mux.HandleFunc("POST /cards/{id}/assign", cards.Assign)
	mux.HandleFunc("GET /cards/{id}/history", cards.History)

	mux.HandleFunc("POST /sync", synch.Trigger)
	mux.HandleFunc("GET /sync/backlog", synch.Backlog)

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return middleware.Chain(
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.Actor,
	)(mux)
}
