// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package envelope provides the durable key-value store holding trained
// model snapshots and per-user alpha preferences, backed by BadgerDB.
//
// Keys follow the handle scheme of the upstream recommendation network:
//
//	<serviceIdentity>_MF-Model   collaborative filtering vectors
//	<serviceIdentity>_W2V-Model  word2vec center vectors
//	<userID>_Alpha               per-user blend preference
//
// Model snapshots are stored as a whole map and replaced atomically on
// write; readers never observe a partially updated model.
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

// Model identifies which trained model a snapshot belongs to.
type Model string

const (
	// ModelMF is the collaborative filtering (matrix factorization) model.
	ModelMF Model = "MF"

	// ModelW2V is the word2vec semantic model.
	ModelW2V Model = "W2V"
)

// Sentinel errors for the envelope store.
var (
	// ErrModelUnavailable indicates no snapshot has been stored for the
	// requested model, typically because training has not run yet.
	ErrModelUnavailable = errors.New("model snapshot not available")

	// ErrAlphaNotInitialized indicates an alpha update for a user with no
	// alpha record. Users must synchronize their watch history first.
	ErrAlphaNotInitialized = errors.New("alpha not initialized for user")

	// ErrAlphaRange indicates an alpha value outside [0, 1].
	ErrAlphaRange = errors.New("alpha must be in [0, 1]")
)

// DefaultAlpha is the blend value assigned on initialization and assumed
// for users without a stored record.
const DefaultAlpha = 0.5

// Store is a BadgerDB-backed envelope store. It is safe for concurrent
// use; Badger provides transactional isolation.
type Store struct {
	db       *badger.DB
	identity string
}

// Open opens (or creates) the envelope store at the given path. identity
// namespaces the model handles.
func Open(path, identity string) (*Store, error) {
	if identity == "" {
		return nil, fmt.Errorf("service identity must not be empty")
	}

	opts := badger.DefaultOptions(path)
	// Badger's own logger is chatty at INFO; envelope operations are
	// already logged by callers.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open envelope store at %s: %w", path, err)
	}

	logging.Debug().Str("path", path).Str("identity", identity).Msg("envelope store opened")

	return &Store{db: db, identity: identity}, nil
}

// NewWithDB wraps an existing Badger handle. Used by tests and by callers
// that manage the Badger lifecycle themselves.
func NewWithDB(db *badger.DB, identity string) *Store {
	return &Store{db: db, identity: identity}
}

// Close closes the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Healthy reports whether the store is usable. Badger has no ping; a
// closed handle is the only unhealthy state this can observe.
func (s *Store) Healthy() bool {
	return s.db != nil && !s.db.IsClosed()
}

// modelKey returns the storage key for a model snapshot.
func (s *Store) modelKey(model Model) []byte {
	return []byte(s.identity + "_" + string(model) + "-Model")
}

// alphaKey returns the storage key for a user's alpha record.
func alphaKey(userID string) []byte {
	return []byte(userID + "_Alpha")
}

// PutModel replaces the stored snapshot for a model. The snapshot maps
// user IDs to their vectors in that model's space.
func (s *Store) PutModel(ctx context.Context, model Model, snapshot map[string][]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("put_model", "error").Inc()
		return fmt.Errorf("marshal %s snapshot: %w", model, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.modelKey(model), data)
	})
	if err != nil {
		metrics.EnvelopeOps.WithLabelValues("put_model", "error").Inc()
		return fmt.Errorf("store %s snapshot: %w", model, err)
	}

	metrics.EnvelopeOps.WithLabelValues("put_model", "ok").Inc()
	metrics.EnvelopeModelBytes.WithLabelValues(modelLabel(model)).Set(float64(len(data)))

	logging.Debug().
		Str("model", string(model)).
		Int("users", len(snapshot)).
		Int("bytes", len(data)).
		Msg("model snapshot stored")

	return nil
}

// GetModel returns the stored snapshot for a model, or ErrModelUnavailable
// when none has been stored.
func (s *Store) GetModel(ctx context.Context, model Model) (map[string][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snapshot map[string][]float64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.modelKey(model))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrModelUnavailable
		}
		if err != nil {
			return fmt.Errorf("get %s snapshot: %w", model, err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snapshot)
		})
	})
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			metrics.EnvelopeOps.WithLabelValues("get_model", "ok").Inc()
		} else {
			metrics.EnvelopeOps.WithLabelValues("get_model", "error").Inc()
		}
		return nil, err
	}

	metrics.EnvelopeOps.WithLabelValues("get_model", "ok").Inc()
	return snapshot, nil
}

func modelLabel(model Model) string {
	if model == ModelW2V {
		return "w2v"
	}
	return "mf"
}
