// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyewatch/peermatch/internal/metrics"
)

// CodeRecord is a row of the one-time code ledger. The match path fills
// the score columns; the observation path fills the count columns. Either
// side may arrive first, so every data column is nullable.
type CodeRecord struct {
	Code         string
	Alpha        sql.NullFloat64
	CFDist       sql.NullFloat64
	W2VDist      sql.NullFloat64
	VideoCount   sql.NullInt64
	HelpfulCount sql.NullInt64
	CreatedAt    time.Time
}

// RecordRequest inserts a new one-time code with the scores of the match
// that produced it. A code that already exists returns ErrDuplicateCode;
// codes are single-use and never silently overwritten.
func (db *DB) RecordRequest(ctx context.Context, code string, alpha, cfDist, w2vDist float64) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("insert", "one_time_codes").Observe(time.Since(start).Seconds())
	}()

	err := db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO one_time_codes (code, alpha, cf_dist, w2v_dist) VALUES (?, ?, ?, ?)`,
			code, alpha, cfDist, w2vDist)
		return err
	})
	if err != nil {
		metrics.LedgerWriteFailures.WithLabelValues("request").Inc()
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
		return fmt.Errorf("record request %s: %w", code, err)
	}

	metrics.LedgerWrites.WithLabelValues("request").Inc()
	return nil
}

// RecordObservation stores what a peer reported after redeeming a code:
// how many videos they were shown and how many they marked helpful.
//
// The write takes the insert path when no row exists for the code and the
// update path when one does. The update touches only the count columns,
// leaving the match scores from RecordRequest intact.
func (db *DB) RecordObservation(ctx context.Context, code string, videoCount, helpfulCount int) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("upsert", "one_time_codes").Observe(time.Since(start).Seconds())
	}()

	err := db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO one_time_codes (code, video_count, helpful_count) VALUES (?, ?, ?)
			 ON CONFLICT (code) DO UPDATE SET
			     video_count = excluded.video_count,
			     helpful_count = excluded.helpful_count`,
			code, videoCount, helpfulCount)
		return err
	})
	if err != nil {
		metrics.LedgerWriteFailures.WithLabelValues("observation").Inc()
		return fmt.Errorf("record observation %s: %w", code, err)
	}

	metrics.LedgerWrites.WithLabelValues("observation").Inc()
	return nil
}

// GetRequest returns the ledger row for a code, or ErrCodeNotFound.
func (db *DB) GetRequest(ctx context.Context, code string) (*CodeRecord, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("select", "one_time_codes").Observe(time.Since(start).Seconds())
	}()

	var rec CodeRecord
	err := db.withRetry(ctx, func() error {
		row := db.conn.QueryRowContext(ctx,
			`SELECT code, alpha, cf_dist, w2v_dist, video_count, helpful_count, created_at
			 FROM one_time_codes WHERE code = ?`, code)
		return row.Scan(&rec.Code, &rec.Alpha, &rec.CFDist, &rec.W2VDist,
			&rec.VideoCount, &rec.HelpfulCount, &rec.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", code, err)
	}

	return &rec, nil
}
