// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package envelope

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/metrics"
)

// alphaRecord is the stored form of a user's alpha preference.
type alphaRecord struct {
	Value float64 `json:"alpha"`
}

// GetAlpha returns the user's stored alpha, or DefaultAlpha when no record
// exists. Absence is not an error: every user has a well-defined alpha.
func (s *Store) GetAlpha(ctx context.Context, userID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var rec alphaRecord
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(alphaKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get alpha: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("get_alpha", "error").Inc()
		return 0, err
	}

	metrics.EnvelopeOps.WithLabelValues("get_alpha", "ok").Inc()
	if !found {
		return DefaultAlpha, nil
	}
	return rec.Value, nil
}

// SetAlpha updates the user's alpha. The value must be in [0, 1] and the
// user must already have an alpha record from a prior history sync;
// otherwise ErrAlphaRange or ErrAlphaNotInitialized is returned and
// nothing is written.
func (s *Store) SetAlpha(ctx context.Context, userID string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if value < 0 || value > 1 {
		metrics.EnvelopeOps.WithLabelValues("set_alpha", "error").Inc()
		return fmt.Errorf("%w: got %g", ErrAlphaRange, value)
	}

	data, err := json.Marshal(alphaRecord{Value: value})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("set_alpha", "error").Inc()
		return fmt.Errorf("marshal alpha: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := alphaKey(userID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAlphaNotInitialized
		} else if err != nil {
			return fmt.Errorf("check alpha record: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("set_alpha", "error").Inc()
		return err
	}

	metrics.EnvelopeOps.WithLabelValues("set_alpha", "ok").Inc()
	logging.Debug().Str("user", userID).Float64("alpha", value).Msg("alpha updated")
	return nil
}

// InitAlpha creates the user's alpha record with DefaultAlpha if absent.
// An existing record is left untouched so that re-synchronizing watch
// history never discards a tuned preference.
func (s *Store) InitAlpha(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(alphaRecord{Value: DefaultAlpha})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("init_alpha", "error").Inc()
		return fmt.Errorf("marshal alpha: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := alphaKey(userID)
		_, err := txn.Get(key)
		if err == nil {
			return nil // already initialized
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check alpha record: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("init_alpha", "error").Inc()
		return err
	}

	metrics.EnvelopeOps.WithLabelValues("init_alpha", "ok").Inc()
	return nil
}
