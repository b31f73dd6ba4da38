// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package match

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hyewatch/peermatch/internal/metrics"
)

// candidateScore holds the per-candidate distances computed in the first
// scoring pass.
type candidateScore struct {
	userID  string
	cfDist  float64
	w2vDist float64
}

// FindMatch scores the candidate pool against the requester and returns
// the best match, or nil when no candidate is eligible.
//
// Candidates are scored in pool order. A candidate missing from either
// snapshot is skipped (the models are trained independently and need not
// cover the same users); a candidate whose vector dimension disagrees
// with the requester's is skipped as a corruption signal. Ties keep the
// first-seen candidate, so a deterministic pool order gives a
// deterministic match.
//
// Returns ErrUserModelMissing when the requester has no vector in one of
// the snapshots.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func FindMatch(logger zerolog.Logger, requester string, alpha float64, cfModel, w2vModel map[string][]float64, pool []string) (*Match, error) {
	reqCF, ok := cfModel[requester]
	if !ok {
		return nil, fmt.Errorf("%w: %s (collaborative model)", ErrUserModelMissing, requester)
	}
	reqW2V, ok := w2vModel[requester]
	if !ok {
		return nil, fmt.Errorf("%w: %s (semantic model)", ErrUserModelMissing, requester)
	}

	// First pass: raw distances and pool maxima.
	scores := make([]candidateScore, 0, len(pool))
	var maxCf, maxW2v float64

	for _, candidate := range pool {
		if candidate == requester {
			continue
		}

		candCF, ok := cfModel[candidate]
		if !ok {
			logger.Info().Str("candidate", candidate).Str("model", "cf").Msg("candidate has no vector, skipping")
			metrics.MatchCandidateSkips.WithLabelValues("missing_vector").Inc()
			continue
		}
		candW2V, ok := w2vModel[candidate]
		if !ok {
			logger.Info().Str("candidate", candidate).Str("model", "w2v").Msg("candidate has no vector, skipping")
			metrics.MatchCandidateSkips.WithLabelValues("missing_vector").Inc()
			continue
		}

		cfDist, err := euclidean(reqCF, candCF)
		if err != nil {
			logger.Warn().Str("candidate", candidate).Str("model", "cf").Err(err).Msg("vector dimension mismatch, skipping")
			metrics.MatchCandidateSkips.WithLabelValues("dimension_mismatch").Inc()
			continue
		}
		w2vDist, err := euclidean(reqW2V, candW2V)
		if err != nil {
			logger.Warn().Str("candidate", candidate).Str("model", "w2v").Err(err).Msg("vector dimension mismatch, skipping")
			metrics.MatchCandidateSkips.WithLabelValues("dimension_mismatch").Inc()
			continue
		}

		scores = append(scores, candidateScore{userID: candidate, cfDist: cfDist, w2vDist: w2vDist})
		if cfDist > maxCf {
			maxCf = cfDist
		}
		if w2vDist > maxW2v {
			maxW2v = w2vDist
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	// A zero maximum means every distance on that axis is zero; dividing
	// by 1 keeps the normalized terms at zero instead of NaN.
	if maxCf == 0 {
		maxCf = 1
	}
	if maxW2v == 0 {
		maxW2v = 1
	}

	// Second pass: blend and select the true maximum. Strict comparison
	// keeps the first-seen candidate on ties.
	var best *Match
	for i := range scores {
		s := &scores[i]
		value := alpha*(s.cfDist/maxCf) - (1-alpha)*(s.w2vDist/maxW2v)
		if best == nil || value > best.Value {
			best = &Match{
				UserID:      s.userID,
				Value:       value,
				CFDistance:  s.cfDist,
				W2VDistance: s.w2vDist,
			}
		}
	}

	metrics.MatchCandidatesScored.Observe(float64(len(scores)))

	return best, nil
}
