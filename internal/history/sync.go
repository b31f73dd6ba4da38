// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package history ingests watch-history events and turns them into the
// weighted ratings the trainers consume. Synchronizing a user also
// initializes their blend weight so the first match request after an
// import does not race alpha creation.
package history

import (
	"context"
	"fmt"

	"github.com/hyewatch/peermatch/internal/database"
	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/metrics"
)

// EventKind identifies the interaction a history event records.
type EventKind string

const (
	KindDislike     EventKind = "dislike"
	KindSubscribe   EventKind = "subscribe"
	KindWatch       EventKind = "watch"
	KindPlaylistAdd EventKind = "playlist_add"
	KindLike        EventKind = "like"
)

// Event is a single interaction between a user and a video.
type Event struct {
	VideoID string    `json:"videoId"`
	Kind    EventKind `json:"kind"`
}

// eventWeights maps interaction kinds to rating values. Later events
// for the same video overwrite earlier ones, so a like after a watch
// lands at 3, not 5.
var eventWeights = map[EventKind]float64{
	KindDislike:     -1,
	KindSubscribe:   1,
	KindWatch:       2,
	KindPlaylistAdd: 2,
	KindLike:        3,
}

// Weight returns the rating value for kind, or false for unknown kinds.
func Weight(kind EventKind) (float64, bool) {
	w, ok := eventWeights[kind]
	return w, ok
}

// RatingStore is the slice of the relational store the synchronizer
// writes through.
type RatingStore interface {
	UpsertRating(ctx context.Context, r database.Rating) error
}

// AlphaInitializer creates a user's blend weight if absent.
type AlphaInitializer interface {
	InitAlpha(ctx context.Context, userID string) error
}

// Synchronizer converts history events into stored ratings.
type Synchronizer struct {
	ratings RatingStore
	alphas  AlphaInitializer
}

// NewSynchronizer wires the synchronizer to its stores.
func NewSynchronizer(ratings RatingStore, alphas AlphaInitializer) *Synchronizer {
	return &Synchronizer{ratings: ratings, alphas: alphas}
}

// Synchronize upserts a rating per event and then initializes the
// user's alpha. Unknown event kinds are skipped with a warning rather
// than failing the batch. A storage failure aborts the batch so the
// caller can retry it whole; upserts are idempotent, so a partial
// retry is safe.
func (s *Synchronizer) Synchronize(ctx context.Context, userID string, events []Event) error {
	if userID == "" {
		return fmt.Errorf("history sync: empty user id")
	}

	logger := logging.With().Str("component", "history").Str("user_id", userID).Logger()

	ingested := 0
	for _, ev := range events {
		weight, ok := Weight(ev.Kind)
		if !ok {
			logger.Warn().
				Str("kind", string(ev.Kind)).
				Str("video_id", ev.VideoID).
				Msg("skipping event with unknown kind")
			continue
		}
		if ev.VideoID == "" {
			logger.Warn().Str("kind", string(ev.Kind)).Msg("skipping event with empty video id")
			continue
		}

		rating := database.Rating{UserID: userID, VideoID: ev.VideoID, Rating: weight}
		if err := s.ratings.UpsertRating(ctx, rating); err != nil {
			metrics.HistorySyncErrors.Inc()
			return fmt.Errorf("upsert rating for video %s: %w", ev.VideoID, err)
		}
		ingested++
	}
	metrics.HistoryEventsIngested.Add(float64(ingested))

	if err := s.alphas.InitAlpha(ctx, userID); err != nil {
		metrics.HistorySyncErrors.Inc()
		return fmt.Errorf("init alpha: %w", err)
	}

	logger.Debug().Int("events", len(events)).Int("ingested", ingested).Msg("history synchronized")
	return nil
}
