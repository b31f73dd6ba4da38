// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/metrics"
)

// withRetry runs op, and if it fails with a connection-loss error,
// reconnects and retries exactly once. Query errors other than connection
// loss are returned as-is; retrying those would repeat the same failure.
func (db *DB) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isConnectionError(err) {
		return err
	}

	logging.Warn().Err(err).Msg("database connection lost, reconnecting")

	if rerr := db.reconnect(ctx); rerr != nil {
		return fmt.Errorf("reconnect after connection loss: %w", rerr)
	}

	return op()
}

// reconnect re-establishes the database connection. Concurrent callers
// are serialized; a caller that arrives after another's successful
// reconnect sees a live connection and returns immediately.
func (db *DB) reconnect(ctx context.Context) error {
	db.reconnectMu.Lock()
	defer db.reconnectMu.Unlock()

	metrics.DBReconnects.Inc()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.conn.PingContext(pingCtx); err == nil {
		return nil // connection already recovered
	}

	closeWithLog(db.conn, "database connection")

	conn, err := sql.Open("duckdb", connString(db.cfg))
	if err != nil {
		return fmt.Errorf("failed to open: %w", err)
	}

	verifyCtx, verifyCancel := context.WithTimeout(ctx, 5*time.Second)
	defer verifyCancel()
	if err := conn.PingContext(verifyCtx); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to ping: %w", err)
	}

	db.conn = conn
	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to initialize: %w", err)
	}

	logging.Info().Msg("database connection re-established")
	return nil
}

// configureConnectionPool sets connection pool parameters:
// NumCPU open connections for parallelism, 2 idle for reuse, 1h max
// lifetime to avoid stale connections.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// isConnectionError checks if an error indicates database connection loss.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "database is closed")
}

// isDuplicateKeyError checks if an error is a DuckDB primary key violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "primary key constraint") ||
		strings.Contains(msg, "PRIMARY KEY or UNIQUE constraint")
}
