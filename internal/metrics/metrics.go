// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package metrics provides Prometheus instrumentation for Peermatch:
// match request outcomes and latency, candidate skip counts, ledger and
// envelope store behavior, and trainer call results.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Match engine metrics
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Total number of match computations by outcome",
		},
		[]string{"outcome"}, // "matched", "no_match", "error"
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "Duration of match computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_candidates_scored",
			Help:    "Number of eligible candidates scored per match computation",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	MatchCandidateSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_candidate_skips_total",
			Help: "Total number of candidates skipped during scoring",
		},
		[]string{"reason"}, // "missing_vector", "dimension_mismatch"
	)

	SnapshotCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_snapshot_cache_hits_total",
			Help: "Total number of model snapshot cache hits",
		},
	)

	SnapshotCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_snapshot_cache_misses_total",
			Help: "Total number of model snapshot cache misses",
		},
	)

	// Request ledger metrics
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Total number of request ledger writes",
		},
		[]string{"operation"}, // "request", "observation"
	)

	LedgerWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_write_failures_total",
			Help: "Total number of failed request ledger writes",
		},
		[]string{"operation"},
	)

	// DuckDB metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdb_reconnects_total",
			Help: "Total number of database reconnection attempts after connection loss",
		},
	)

	// Envelope store metrics
	EnvelopeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_operations_total",
			Help: "Total number of envelope store operations",
		},
		[]string{"operation", "status"}, // ("get_model"|"put_model"|"get_alpha"|"set_alpha"|"init_alpha"), ("ok"|"error")
	)

	EnvelopeModelBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "envelope_model_bytes",
			Help: "Serialized size of the most recently stored model snapshot",
		},
		[]string{"model"}, // "mf", "w2v"
	)

	// Trainer client metrics
	TrainerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_calls_total",
			Help: "Total number of trainer service calls",
		},
		[]string{"trainer", "status"}, // ("mf"|"w2v"), ("ok"|"error"|"breaker_open")
	)

	TrainerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trainer_call_duration_seconds",
			Help:    "Duration of trainer service calls in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600}, // training runs for minutes
		},
		[]string{"trainer"},
	)

	TrainerLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trainer_last_success_timestamp",
			Help: "Unix timestamp of the last successful training run",
		},
		[]string{"trainer"},
	)

	// History sync metrics
	HistoryEventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_events_ingested_total",
			Help: "Total number of watch-history events ingested",
		},
	)

	HistorySyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_sync_errors_total",
			Help: "Total number of watch-history sync failures",
		},
	)
)
