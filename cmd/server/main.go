// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package main is the entry point for the Peermatch server.
//
// Peermatch pairs a requesting user with the stored watch-history peer
// whose taste profile best matches, blending collaborative-filtering
// and word2vec similarity with a per-user tunable weight.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layering defaults, YAML file, environment
//  2. DuckDB: one-time code ledger and watch ratings
//  3. BadgerDB envelope store: model snapshots and alpha weights
//  4. Match engine with its snapshot cache
//  5. Trainer clients and the periodic training service (optional)
//  6. HTTP server: match, alpha, history, observation, health, metrics
//
// All long-running components live under a suture supervisor tree and
// shut down gracefully on SIGINT and SIGTERM.
//
// # Configuration
//
// Settings load via Koanf v2 with layered sources (highest wins):
// environment variables, config file (config.yaml or CONFIG_PATH),
// built-in defaults. Commonly used variables:
//
//	export HTTP_PORT=8415
//	export DUCKDB_PATH=/data/peermatch.duckdb
//	export ENVELOPE_PATH=/data/envelopes
//	export SERVICE_IDENTITY=peermatch
//	export TRAINER_ENABLED=true
//	export TRAINER_MF_URL=http://mf-trainer:8000
//	export TRAINER_W2V_URL=http://w2v-trainer:8000
//	./peermatch
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

	"github.com/hyewatch/peermatch/internal/api"
	"github.com/hyewatch/peermatch/internal/config"
	"github.com/hyewatch/peermatch/internal/database"
	"github.com/hyewatch/peermatch/internal/envelope"
	"github.com/hyewatch/peermatch/internal/history"
	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/match"
	"github.com/hyewatch/peermatch/internal/supervisor"
	"github.com/hyewatch/peermatch/internal/supervisor/services"
	"github.com/hyewatch/peermatch/internal/trainer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so the default logger reports this.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("envelope_path", cfg.Envelope.Path).
		Str("service_identity", cfg.Envelope.ServiceIdentity).
		Bool("trainer_enabled", cfg.Trainer.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := envelope.Open(cfg.Envelope.Path, cfg.Envelope.ServiceIdentity)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open envelope store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing envelope store")
		}
	}()

	engine := match.NewEngine(match.Config{
		SnapshotCacheTTL:  cfg.Match.SnapshotCacheTTL,
		SnapshotCacheSize: cfg.Match.SnapshotCacheSize,
		StoreTimeout:      cfg.Match.StoreTimeout,
	}, store, store, db, db)

	synchronizer := history.NewSynchronizer(db, store)

	handler := api.NewHandler(engine, store, db, synchronizer, db, store)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Trainer.Enabled {
		mfClient := trainer.NewMFClient(cfg.Trainer)
		w2vClient := trainer.NewW2VClient(cfg.Trainer)
		trainSvc := services.NewTrainService(db, mfClient, w2vClient, store, engine,
			services.TrainServiceConfig{
				TrainOnStartup: cfg.Trainer.TrainOnStartup,
				TrainInterval:  cfg.Trainer.TrainInterval,
			}, logging.Logger())
		tree.AddTrainingService(trainSvc)
		logging.Info().
			Str("mf_url", cfg.Trainer.MFUrl).
			Str("w2v_url", cfg.Trainer.W2VUrl).
			Dur("train_interval", cfg.Trainer.TrainInterval).
			Msg("Training service added")
	} else {
		logging.Info().Msg("Training service disabled (TRAINER_ENABLED=false)")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Peermatch stopped gracefully")
}
