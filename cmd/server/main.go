// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/personafeed/internal/api"
	"github.com/tomtom215/personafeed/internal/config"
	"github.com/tomtom215/personafeed/internal/database"
	"github.com/tomtom215/personafeed/internal/events"
	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/feed/sources"
	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/supervisor"
	"github.com/tomtom215/personafeed/internal/supervisor/services"
	ws "github.com/tomtom215/personafeed/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential startup wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting personafeed")

	if len(cfg.Security.CORSOrigins) == 1 && cfg.Security.CORSOrigins[0] == "*" {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled (SEED_MOCK_DATA=true)")
		if err := db.SeedMockData(context.Background()); err != nil {
			return fmt.Errorf("seed mock data: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pipeline *events.Pipeline
	if cfg.Events.Enabled {
		pipeline, err = events.NewPipeline(ctx, eventsConfig(cfg), outboxConfig(&cfg.Outbox), db, logging.WithComponent("events"))
		if err != nil {
			return fmt.Errorf("initialize event pipeline: %w", err)
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer closeCancel()
			if err := pipeline.Close(closeCtx, cfg.Events.PublishTimeout); err != nil {
				logging.Error().Err(err).Msg("Error closing event pipeline")
			}
		}()
	} else {
		logging.Info().Msg("Event pipeline disabled (EVENTS_ENABLED=false)")
	}

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub(cfg.WebSocket.PingInterval, cfg.WebSocket.WriteTimeout)
	}

	feedCfg, err := feedConfig(&cfg.Feed)
	if err != nil {
		return err
	}
	var opts []feed.Option
	if pipeline != nil {
		opts = append(opts, feed.WithEventSink(pipeline.Sink()))
	}
	if hub != nil {
		opts = append(opts, feed.WithNotifier(hub))
	}
	engine, err := feed.NewEngine(feedCfg, db, sources.All(db, sourcesConfig(&cfg.Sources)), logging.Logger(), opts...)
	if err != nil {
		return fmt.Errorf("initialize feed engine: %w", err)
	}
	// Deferred after the pipeline so runs finish before the sink is flushed.
	defer engine.Close()

	deps := api.Deps{
		Engine:  engine,
		DB:      db,
		Config:  cfg,
		Hub:     hub,
		Version: version,
	}
	if pipeline != nil {
		deps.Events = pipeline
	}
	router := api.NewRouter(api.NewHandler(deps), cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if pipeline != nil {
		tree.AddDataService(pipeline.RetryLoop())
		if consumer := pipeline.Consumer(); consumer != nil {
			tree.AddMessagingService(consumer)
		}
	}
	if hub != nil {
		tree.AddMessagingService(services.NewWebSocketHubService(hub))
	}
	if cfg.Refresh.Enabled {
		tree.AddFeedService(services.NewRefreshService(engine, refreshConfig(&cfg.Refresh), logging.Logger()))
		tree.AddDataService(services.NewJanitorService(engine, cfg.Refresh.JanitorInterval, logging.Logger()))
	} else {
		logging.Info().Msg("Background refresh disabled (REFRESH_ENABLED=false)")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		treeErr = err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return treeErr
}
