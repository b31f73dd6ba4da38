// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyewatch/peermatch/internal/database"
	"github.com/hyewatch/peermatch/internal/envelope"
)

// RatingSource supplies the full rating corpus for a training cycle.
type RatingSource interface {
	AllRatings(ctx context.Context) ([]database.Rating, error)
}

// ModelTrainer is satisfied by both trainer clients.
type ModelTrainer interface {
	Train(ctx context.Context, ratings []database.Rating) (map[string][]float64, error)
}

// ModelSink stores trained model snapshots.
type ModelSink interface {
	PutModel(ctx context.Context, model envelope.Model, snapshot map[string][]float64) error
}

// SnapshotInvalidator drops cached model snapshots after a retrain.
type SnapshotInvalidator interface {
	InvalidateSnapshots()
}

// TrainServiceConfig holds configuration for the training service.
type TrainServiceConfig struct {
	// TrainOnStartup triggers a training cycle when the service starts.
	TrainOnStartup bool

	// TrainInterval is how often to retrain models. Default: 24h.
	TrainInterval time.Duration

	// CycleTimeout bounds a single training cycle. Default: 30m.
	CycleTimeout time.Duration
}

// TrainService periodically ships the rating corpus to the external
// trainers and stores the returned model snapshots. Both models are
// trained in one cycle so the CF and word2vec snapshots stay roughly
// in step; a cycle that fails either trainer stores neither.
type TrainService struct {
	ratings RatingSource
	mf      ModelTrainer
	w2v     ModelTrainer
	sink    ModelSink
	engine  SnapshotInvalidator
	config  TrainServiceConfig
	logger  zerolog.Logger
	name    string
}

// NewTrainService creates a new training service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainService(ratings RatingSource, mf, w2v ModelTrainer, sink ModelSink, engine SnapshotInvalidator, cfg TrainServiceConfig, logger zerolog.Logger) *TrainService {
	if cfg.TrainInterval <= 0 {
		cfg.TrainInterval = 24 * time.Hour
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Minute
	}
	return &TrainService{
		ratings: ratings,
		mf:      mf,
		w2v:     w2v,
		sink:    sink,
		engine:  engine,
		config:  cfg,
		logger:  logger.With().Str("service", "train").Logger(),
		name:    "train-service",
	}
}

// Serve implements the suture.Service interface. Failed cycles are
// logged and retried on the next tick rather than crashing the service.
func (s *TrainService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("train_interval", s.config.TrainInterval).
		Msg("training service starting")

	if s.config.TrainOnStartup {
		if err := s.runCycle(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup training failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.TrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled training failed")
			}
		}
	}
}

// runCycle performs one full training cycle: load ratings, train both
// models, store both snapshots, invalidate the engine's cache.
func (s *TrainService) runCycle(ctx context.Context) error {
	cycleCtx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
	defer cancel()

	start := time.Now()

	ratings, err := s.ratings.AllRatings(cycleCtx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if len(ratings) == 0 {
		s.logger.Info().Msg("no ratings stored yet, skipping training cycle")
		return nil
	}

	cfModel, err := s.mf.Train(cycleCtx, ratings)
	if err != nil {
		return fmt.Errorf("mf training: %w", err)
	}
	w2vModel, err := s.w2v.Train(cycleCtx, ratings)
	if err != nil {
		return fmt.Errorf("w2v training: %w", err)
	}

	if err := s.sink.PutModel(cycleCtx, envelope.ModelMF, cfModel); err != nil {
		return fmt.Errorf("store mf model: %w", err)
	}
	if err := s.sink.PutModel(cycleCtx, envelope.ModelW2V, w2vModel); err != nil {
		return fmt.Errorf("store w2v model: %w", err)
	}

	if s.engine != nil {
		s.engine.InvalidateSnapshots()
	}

	s.logger.Info().
		Int("ratings", len(ratings)).
		Int("cf_users", len(cfModel)).
		Int("w2v_users", len(w2vModel)).
		Dur("duration", time.Since(start)).
		Msg("training cycle complete")
	return nil
}

// String returns the service name for logging.
func (s *TrainService) String() string {
	return s.name
}
