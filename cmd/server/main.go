// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package main is the entry point for the PagePulse server.
//
// PagePulse ingests page-view events, keeps them in a DuckDB event
// store, derives sessions, funnels, retention cohorts and dimensional
// breakdowns on demand, and pushes realtime updates to websocket
// subscribers.
//
// # Startup order
//
//  1. Configuration: koanf layering of defaults, YAML file and
//     PAGEPULSE_* environment variables
//  2. Logging: zerolog, JSON by default
//  3. Event store: DuckDB, optional mock-data seeding
//  4. Engine: aggregator, broadcast hub, analytics, update stream
//  5. Supervisor tree: sweeper, hub, broadcaster, HTTP server
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the listener drains
// in-flight requests, the hub disconnects subscribers, and the store
// is closed last.
//
// Example:
//
//	export PAGEPULSE_DATABASE_PATH=/data/pagepulse.duckdb
//	export PAGEPULSE_SERVER_PORT=8642
//	./pagepulse
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagepulse/pagepulse/internal/analytics"
	"github.com/pagepulse/pagepulse/internal/api"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/engine"
	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/realtime"
	"github.com/pagepulse/pagepulse/internal/store"
	"github.com/pagepulse/pagepulse/internal/supervisor"
	"github.com/pagepulse/pagepulse/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Int("retention_days", cfg.Database.RetentionDays).
		Msg("Starting PagePulse")

	db, err := store.Open(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled")
		if err := db.SeedMockData(context.Background(), time.Now().UTC()); err != nil {
			logging.Error().Err(err).Msg("Failed to seed mock data")
		}
	}

	agg := realtime.NewAggregator(cfg.Realtime.ActiveSessionWindow, cfg.Realtime.RecentEventsCap)
	hub := realtime.NewHub(cfg.Realtime.SubscriberQueueSize, cfg.Realtime.StatsBroadcastsPerSecond, agg.StatsUpdate)
	analyzer := analytics.NewAnalyzer(db, cfg.Analytics.MaxRange())

	eng, err := engine.New(db, analyzer, agg, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing engine")
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(api.NewHandler(eng, cfg), &cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	tree.AddDataService(services.NewSweeperService(db, agg, cfg.Database.RetentionAge(), cfg.Database.SweepInterval))
	tree.AddMessagingService(hub)
	tree.AddMessagingService(eng)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop before timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}
