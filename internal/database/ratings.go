// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hyewatch/peermatch/internal/metrics"
)

// Rating is an implicit-feedback rating derived from a user's watch
// history. Later events for the same (user, video) pair replace earlier
// ones.
type Rating struct {
	UserID  string
	VideoID string
	Rating  float64
}

// UpsertRating stores or replaces a rating.
func (db *DB) UpsertRating(ctx context.Context, r Rating) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("upsert", "watch_ratings").Observe(time.Since(start).Seconds())
	}()

	err := db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO watch_ratings (user_id, video_id, rating, updated_at)
			 VALUES (?, ?, ?, current_timestamp)
			 ON CONFLICT (user_id, video_id) DO UPDATE SET
			     rating = excluded.rating,
			     updated_at = excluded.updated_at`,
			r.UserID, r.VideoID, r.Rating)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert rating (%s, %s): %w", r.UserID, r.VideoID, err)
	}
	return nil
}

// RatingsByUser returns a user's ratings ordered by video ID.
func (db *DB) RatingsByUser(ctx context.Context, userID string) ([]Rating, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("select", "watch_ratings").Observe(time.Since(start).Seconds())
	}()

	var ratings []Rating
	err := db.withRetry(ctx, func() error {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT user_id, video_id, rating FROM watch_ratings
			 WHERE user_id = ? ORDER BY video_id`, userID)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		ratings = ratings[:0]
		for rows.Next() {
			var r Rating
			if err := rows.Scan(&r.UserID, &r.VideoID, &r.Rating); err != nil {
				return err
			}
			ratings = append(ratings, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ratings for %s: %w", userID, err)
	}
	return ratings, nil
}

// AllRatings returns every rating, ordered by user then video. This is
// the training corpus shipped to the external trainers.
func (db *DB) AllRatings(ctx context.Context) ([]Rating, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("select", "watch_ratings").Observe(time.Since(start).Seconds())
	}()

	var ratings []Rating
	err := db.withRetry(ctx, func() error {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT user_id, video_id, rating FROM watch_ratings
			 ORDER BY user_id, video_id`)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		ratings = ratings[:0]
		for rows.Next() {
			var r Rating
			if err := rows.Scan(&r.UserID, &r.VideoID, &r.Rating); err != nil {
				return err
			}
			ratings = append(ratings, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("all ratings: %w", err)
	}
	return ratings, nil
}

// UserIDs returns the distinct users with stored ratings in ascending
// order. This ordering defines the candidate pool order for matching, so
// it must be deterministic.
func (db *DB) UserIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("select", "watch_ratings").Observe(time.Since(start).Seconds())
	}()

	var users []string
	err := db.withRetry(ctx, func() error {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT DISTINCT user_id FROM watch_ratings ORDER BY user_id`)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		users = users[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			users = append(users, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("user ids: %w", err)
	}
	return users, nil
}
