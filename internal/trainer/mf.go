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
	"github.com/hyewatch/peermatch/internal/remap"
)

// MFClient talks to the matrix factorization (ALS) trainer. The trainer
// operates on dense integer indices, so user and video IDs are remapped
// before the call and the returned factor rows are mapped back to user
// IDs afterwards.
type MFClient struct {
	*client
}

// NewMFClient creates a matrix factorization trainer client.
func NewMFClient(cfg config.TrainerConfig) *MFClient {
	return &MFClient{client: newClient("mf", cfg.MFUrl, cfg)}
}

// mfRequest is the trainer's wire format: a sparse rating matrix as
// (row, col, value) triples over dense indices.
type mfRequest struct {
	NumUsers int        `json:"numUsers"`
	NumItems int        `json:"numItems"`
	Ratings  []mfTriple `json:"ratings"`
}

type mfTriple struct {
	User   int     `json:"user"`
	Item   int     `json:"item"`
	Rating float64 `json:"rating"`
}

// mfResponse carries one factor vector per user index, in index order.
type mfResponse struct {
	UserFactors [][]float64 `json:"userFactors"`
}

// Train ships the rating corpus to the ALS trainer and returns the
// resulting per-user factor vectors keyed by user ID.
func (c *MFClient) Train(ctx context.Context, ratings []database.Rating) (map[string][]float64, error) {
	if len(ratings) == 0 {
		return nil, fmt.Errorf("mf training requires at least one rating")
	}

	users := remap.NewIndex()
	items := remap.NewIndex()

	triples := make([]mfTriple, 0, len(ratings))
	for _, r := range ratings {
		triples = append(triples, mfTriple{
			User:   users.Put(r.UserID),
			Item:   items.Put(r.VideoID),
			Rating: r.Rating,
		})
	}

	req := mfRequest{
		NumUsers: users.Len(),
		NumItems: items.Len(),
		Ratings:  triples,
	}

	var resp mfResponse
	if err := c.postJSON(ctx, "/train", req, &resp); err != nil {
		return nil, err
	}

	// Fail closed on any disagreement between what we sent and what
	// came back; a partial model would silently exclude users.
	if len(resp.UserFactors) != users.Len() {
		return nil, fmt.Errorf("mf trainer returned %d factor rows for %d users",
			len(resp.UserFactors), users.Len())
	}

	model := make(map[string][]float64, users.Len())
	for i, factors := range resp.UserFactors {
		id, err := users.MustID(i)
		if err != nil {
			return nil, fmt.Errorf("mf trainer response: %w", err)
		}
		if len(factors) == 0 {
			return nil, fmt.Errorf("mf trainer returned empty factors for user %s", id)
		}
		model[id] = factors
	}

	c.logger.Info().
		Int("users", users.Len()).
		Int("items", items.Len()).
		Int("ratings", len(triples)).
		Msg("matrix factorization model trained")

	return model, nil
}
