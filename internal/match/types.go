// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package match implements peer matching over trained model snapshots.
//
// A match pairs the requesting user with the stored watch-history peer
// whose taste profile scores highest under a tunable blend of two
// distance signals:
//
//   - cfDist: Euclidean distance between matrix factorization vectors.
//     Larger means less similar watch behavior, so favoring it yields
//     serendipitous matches.
//   - w2vDist: Euclidean distance between word2vec center vectors.
//     Favoring small values yields semantically close matches.
//
// Each candidate's distances are normalized by the pool maximum and
// blended with the requester's alpha:
//
//	matchValue = alpha*(cfDist/maxCf) - (1-alpha)*(w2vDist/maxW2v)
//
// alpha = 1 selects for maximal collaborative distance, alpha = 0 for
// minimal semantic distance, 0.5 balances both.
package match

import (
	"errors"
	"fmt"
	"math"
)

// ErrUserModelMissing indicates the requesting user has no vector in one
// of the model snapshots. The user needs to synchronize watch history and
// wait for the next training run.
var ErrUserModelMissing = errors.New("requesting user not present in model")

// Match is the outcome of scoring a candidate pool.
type Match struct {
	// UserID is the matched peer.
	UserID string

	// Value is the blended score that won.
	Value float64

	// CFDistance and W2VDistance are the raw (unnormalized) Euclidean
	// distances between requester and matched peer.
	CFDistance  float64
	W2VDistance float64
}

// Result is a completed match computation, including the one-time code
// recorded for the exchange. Code is empty when the ledger write failed;
// the match itself is still valid.
type Result struct {
	MatchedUser string  `json:"matchedUser"`
	Code        string  `json:"code,omitempty"`
	Alpha       float64 `json:"alpha"`
	MatchValue  float64 `json:"matchValue"`
	CFDistance  float64 `json:"cfDistance"`
	W2VDistance float64 `json:"w2vDistance"`
}

// euclidean returns the Euclidean distance between two vectors of equal
// dimension.
func euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
