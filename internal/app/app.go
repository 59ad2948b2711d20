package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
	cardrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/card"
	historyrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/history"
	rawrecordrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/rawrecord"
	syncstaterepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/syncstate"
	"github.com/soloviev-m/civicdesk-backend/internal/adapter/provider/claude"
	"github.com/soloviev-m/civicdesk-backend/internal/adapter/upstream/portal"
	"github.com/soloviev-m/civicdesk-backend/internal/config"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/internal/service/lifecycle"
	syncsvc "github.com/soloviev-m/civicdesk-backend/internal/service/sync"
	"github.com/soloviev-m/civicdesk-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, wires the
// adapters and services together, starts the sync scheduler and the HTTP
// server, and shuts both down cleanly when the context is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := observe.NewMultiSink(
		observe.NewLogSink(logger),
		observe.NewMetricsSink(registry),
	)

	// Repositories and transaction manager.
	txManager := postgres.NewTxManager(pool)
	cards := cardrepo.New(pool)
	history := historyrepo.New(pool)
	raws := rawrecordrepo.New(pool)
	watermarks := syncstaterepo.New(pool)

	// Services, with the optional classification hook.
	var lifecycleSvc *lifecycle.Service
	if cfg.Classifier.Enabled {
		logger.Info("classifier enabled", slog.String("model", cfg.Classifier.Model))
		lifecycleSvc = lifecycle.NewService(logger, cards, history, raws, txManager,
			claude.NewClassifier(cfg.Classifier, logger), sink)
	} else {
		lifecycleSvc = lifecycle.NewService(logger, cards, history, raws, txManager, nil, sink)
	}

	fetcher := portal.NewClient(cfg.Upstream, sink, logger)
	syncService := syncsvc.NewService(logger, fetcher, raws, watermarks, lifecycleSvc, sink, cfg.Sync.Lookback)
	scheduler := syncsvc.NewScheduler(logger, syncService, cfg.Sync.Interval)

	if cfg.Sync.Enabled {
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// HTTP server.
	router := rest.NewRouter(
		logger,
		rest.NewHealthHandler(pool, BuildVersion()),
		rest.NewCardHandler(lifecycleSvc, logger),
		rest.NewSyncHandler(scheduler, lifecycleSvc, logger),
		registry,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
