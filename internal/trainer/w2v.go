// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package trainer

import (
	"context"
	"fmt"

	"github.com/hyewatch/peermatch/internal/config"
	"github.com/hyewatch/peermatch/internal/database"
)

// W2VClient talks to the word2vec trainer. The trainer owns the video
// text pipeline; given user-video ratings it returns one semantic center
// vector per user.
type W2VClient struct {
	*client
}

// NewW2VClient creates a word2vec trainer client.
func NewW2VClient(cfg config.TrainerConfig) *W2VClient {
	return &W2VClient{client: newClient("w2v", cfg.W2VUrl, cfg)}
}

type w2vRequest struct {
	Ratings []w2vRating `json:"ratings"`
}

type w2vRating struct {
	User   string  `json:"user"`
	Video  string  `json:"video"`
	Rating float64 `json:"rating"`
}

type w2vResponse struct {
	Centers map[string][]float64 `json:"centers"`
}

// Train ships the rating corpus to the word2vec trainer and returns the
// per-user center vectors keyed by user ID.
func (c *W2VClient) Train(ctx context.Context, ratings []database.Rating) (map[string][]float64, error) {
	if len(ratings) == 0 {
		return nil, fmt.Errorf("w2v training requires at least one rating")
	}

	req := w2vRequest{Ratings: make([]w2vRating, 0, len(ratings))}
	for _, r := range ratings {
		req.Ratings = append(req.Ratings, w2vRating{
			User:   r.UserID,
			Video:  r.VideoID,
			Rating: r.Rating,
		})
	}

	var resp w2vResponse
	if err := c.postJSON(ctx, "/train", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Centers) == 0 {
		return nil, fmt.Errorf("w2v trainer returned no centers")
	}

	// All centers must share one dimension; a mixed response indicates a
	// broken trainer and would poison distance computations.
	dim := -1
	for user, center := range resp.Centers {
		if len(center) == 0 {
			return nil, fmt.Errorf("w2v trainer returned empty center for user %s", user)
		}
		if dim == -1 {
			dim = len(center)
		} else if len(center) != dim {
			return nil, fmt.Errorf("w2v trainer returned mixed dimensions (%d and %d)", dim, len(center))
		}
	}

	c.logger.Info().
		Int("users", len(resp.Centers)).
		Int("ratings", len(req.Ratings)).
		Int("dimension", dim).
		Msg("word2vec model trained")

	return resp.Centers, nil
}
