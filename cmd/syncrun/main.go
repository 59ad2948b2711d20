// Command syncrun executes a single sync pass and exits. It is meant for
// cron-style deployments and for backfilling after downtime.
//
// Usage:
//
//	syncrun [--timeout=10m]
//
// Configuration comes from the same CONFIG_PATH/env variables as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	postgres "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres"
	cardrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/card"
	historyrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/history"
	rawrecordrepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/rawrecord"
	syncstaterepo "github.com/soloviev-m/civicdesk-backend/internal/adapter/postgres/syncstate"
	"github.com/soloviev-m/civicdesk-backend/internal/adapter/upstream/portal"
	"github.com/soloviev-m/civicdesk-backend/internal/app"
	"github.com/soloviev-m/civicdesk-backend/internal/config"
	"github.com/soloviev-m/civicdesk-backend/internal/observe"
	"github.com/soloviev-m/civicdesk-backend/internal/service/lifecycle"
	syncsvc "github.com/soloviev-m/civicdesk-backend/internal/service/sync"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline for the pass")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	sink := observe.NewLogSink(logger)
	raws := rawrecordrepo.New(pool)

	lifecycleSvc := lifecycle.NewService(logger,
		cardrepo.New(pool), historyrepo.New(pool), raws,
		postgres.NewTxManager(pool), nil, sink,
	)

	syncService := syncsvc.NewService(logger,
		portal.NewClient(cfg.Upstream, sink, logger),
		raws, syncstaterepo.New(pool), lifecycleSvc, sink, cfg.Sync.Lookback,
	)

	result, err := syncService.RunPass(ctx)
	if err != nil {
		logger.Error("sync pass failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("window [%s, %s): fetched=%d ingested=%d promoted=%d refreshed=%d failed=%d\n",
		result.From.Format(time.RFC3339), result.To.Format(time.RFC3339),
		result.Fetched, result.Ingested,
		result.Promote.Promoted, result.Promote.Refreshed, result.Promote.Failed,
	)
}
