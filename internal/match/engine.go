// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyewatch/peermatch/internal/cache"
	"github.com/hyewatch/peermatch/internal/envelope"
	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/metrics"
)

// VectorSource provides trained model snapshots.
// Satisfied by *envelope.Store.
type VectorSource interface {
	GetModel(ctx context.Context, model envelope.Model) (map[string][]float64, error)
}

// AlphaSource provides per-user blend preferences.
// Satisfied by *envelope.Store.
type AlphaSource interface {
	GetAlpha(ctx context.Context, userID string) (float64, error)
}

// Ledger records one-time codes for completed matches.
// Satisfied by *database.DB.
type Ledger interface {
	RecordRequest(ctx context.Context, code string, alpha, cfDist, w2vDist float64) error
}

// CandidateSource provides the ordered candidate pool.
// Satisfied by *database.DB.
type CandidateSource interface {
	UserIDs(ctx context.Context) ([]string, error)
}

// Config tunes the match engine.
type Config struct {
	// SnapshotCacheTTL bounds how stale a cached model snapshot may be.
	SnapshotCacheTTL time.Duration

	// SnapshotCacheSize is the maximum number of cached snapshots.
	SnapshotCacheSize int

	// StoreTimeout bounds each call into the backing stores.
	StoreTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SnapshotCacheTTL:  5 * time.Minute,
		SnapshotCacheSize: 8,
		StoreTimeout:      5 * time.Second,
	}
}

// Engine orchestrates match computations: snapshot loading (with a
// bounded TTL cache in front of the envelope store), alpha lookup,
// scoring, and the one-time code side effect.
type Engine struct {
	cfg        Config
	vectors    VectorSource
	alphas     AlphaSource
	ledger     Ledger
	candidates CandidateSource
	snapshots  *cache.LRU
	logger     zerolog.Logger
}

// NewEngine creates a match engine.
func NewEngine(cfg Config, vectors VectorSource, alphas AlphaSource, ledger Ledger, candidates CandidateSource) *Engine {
	if cfg.SnapshotCacheTTL <= 0 {
		cfg.SnapshotCacheTTL = 5 * time.Minute
	}
	if cfg.SnapshotCacheSize <= 0 {
		cfg.SnapshotCacheSize = 8
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}

	return &Engine{
		cfg:        cfg,
		vectors:    vectors,
		alphas:     alphas,
		ledger:     ledger,
		candidates: candidates,
		snapshots:  cache.NewLRU(cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL),
		logger:     logging.With().Str("component", "match").Logger(),
	}
}

// ComputeMatch finds the best peer for the requesting user and records a
// one-time code for the exchange.
//
// Returns (nil, nil) when no eligible candidate exists. A ledger failure
// does not fail the match: the result is returned with an empty Code and
// the failure is logged and counted.
func (e *Engine) ComputeMatch(ctx context.Context, requester string) (*Result, error) {
	start := time.Now()

	cfModel, err := e.snapshot(ctx, envelope.ModelMF)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	w2vModel, err := e.snapshot(ctx, envelope.ModelW2V)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	alpha, err := e.getAlpha(ctx, requester)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load alpha for %s: %w", requester, err)
	}

	pool, err := e.pool(ctx, cfModel)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load candidate pool: %w", err)
	}

	m, err := FindMatch(e.logger, requester, alpha, cfModel, w2vModel, pool)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.MatchDuration.Observe(time.Since(start).Seconds())

	if m == nil {
		metrics.MatchRequests.WithLabelValues("no_match").Inc()
		e.logger.Info().Str("requester", requester).Msg("no eligible candidates")
		return nil, nil
	}

	metrics.MatchRequests.WithLabelValues("matched").Inc()

	result := &Result{
		MatchedUser: m.UserID,
		Alpha:       alpha,
		MatchValue:  m.Value,
		CFDistance:  m.CFDistance,
		W2VDistance: m.W2VDistance,
	}

	code := uuid.NewString()
	ledgerCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.ledger.RecordRequest(ledgerCtx, code, alpha, m.CFDistance, m.W2VDistance); err != nil {
		// The match is still valid without a code; the peer exchange
		// simply cannot be redeemed.
		e.logger.Error().Err(err).Str("requester", requester).Msg("failed to record one-time code")
	} else {
		result.Code = code
	}

	e.logger.Debug().
		Str("requester", requester).
		Str("matched", m.UserID).
		Float64("alpha", alpha).
		Float64("value", m.Value).
		Msg("match computed")

	return result, nil
}

// snapshot returns a model snapshot, serving from the TTL cache when
// fresh.
func (e *Engine) snapshot(ctx context.Context, model envelope.Model) (map[string][]float64, error) {
	key := "snapshot:" + string(model)
	if v, ok := e.snapshots.Get(key); ok {
		metrics.SnapshotCacheHits.Inc()
		return v.(map[string][]float64), nil
	}
	metrics.SnapshotCacheMisses.Inc()

	loadCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	snapshot, err := e.vectors.GetModel(loadCtx, model)
	if err != nil {
		return nil, fmt.Errorf("load %s snapshot: %w", model, err)
	}

	e.snapshots.Add(key, snapshot)
	return snapshot, nil
}

// getAlpha loads the requester's alpha with the store timeout applied.
func (e *Engine) getAlpha(ctx context.Context, requester string) (float64, error) {
	alphaCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.alphas.GetAlpha(alphaCtx, requester)
}

// pool returns the ordered candidate pool. Without a candidate source,
// the CF snapshot's users serve as the pool, sorted so that tie-breaking
// stays deterministic.
func (e *Engine) pool(ctx context.Context, cfModel map[string][]float64) ([]string, error) {
	if e.candidates != nil {
		poolCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		defer cancel()
		return e.candidates.UserIDs(poolCtx)
	}
	return sortedKeys(cfModel), nil
}

// sortedKeys returns the map keys in ascending order.
func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InvalidateSnapshots drops cached model snapshots. The training service
// calls this after storing fresh models so matches pick them up without
// waiting out the TTL.
func (e *Engine) InvalidateSnapshots() {
	e.snapshots.Clear()
	e.logger.Debug().Msg("snapshot cache invalidated")
}
