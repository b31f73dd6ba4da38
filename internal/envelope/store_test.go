// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package envelope

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})

	return NewWithDB(db, "test-service")
}

func TestGetModelUnavailable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetModel(context.Background(), ModelMF)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestPutGetModelRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := map[string][]float64{
		"alice": {0.1, -2.5, 3.25},
		"bob":   {1e-17, 0.30000000000000004, -0.0},
	}

	if err := s.PutModel(ctx, ModelMF, in); err != nil {
		t.Fatalf("PutModel: %v", err)
	}

	out, err := s.GetModel(ctx, ModelMF)
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("got %d users, want %d", len(out), len(in))
	}
	for user, vec := range in {
		got, ok := out[user]
		if !ok {
			t.Fatalf("user %q missing from round-tripped snapshot", user)
		}
		if len(got) != len(vec) {
			t.Fatalf("user %q vector length %d, want %d", user, len(got), len(vec))
		}
		for i := range vec {
			if got[i] != vec[i] {
				t.Errorf("user %q component %d: got %v, want %v (round trip must be exact)",
					user, i, got[i], vec[i])
			}
		}
	}
}

func TestPutModelReplacesWholeSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := map[string][]float64{"alice": {1, 2}, "bob": {3, 4}}
	second := map[string][]float64{"carol": {5, 6}}

	if err := s.PutModel(ctx, ModelW2V, first); err != nil {
		t.Fatalf("PutModel: %v", err)
	}
	if err := s.PutModel(ctx, ModelW2V, second); err != nil {
		t.Fatalf("PutModel: %v", err)
	}

	out, err := s.GetModel(ctx, ModelW2V)
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if _, ok := out["alice"]; ok {
		t.Error("stale user survived snapshot replacement")
	}
	if _, ok := out["carol"]; !ok {
		t.Error("new snapshot user missing")
	}
}

func TestModelKindsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutModel(ctx, ModelMF, map[string][]float64{"alice": {1}}); err != nil {
		t.Fatalf("PutModel: %v", err)
	}

	if _, err := s.GetModel(ctx, ModelW2V); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("W2V should be unavailable after storing only MF, got %v", err)
	}
}

func TestGetAlphaDefault(t *testing.T) {
	s := newTestStore(t)

	alpha, err := s.GetAlpha(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetAlpha: %v", err)
	}
	if alpha != DefaultAlpha {
		t.Errorf("GetAlpha for unknown user = %v, want %v", alpha, DefaultAlpha)
	}
}

func TestSetAlphaRequiresInit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SetAlpha(ctx, "alice", 0.7)
	if !errors.Is(err, ErrAlphaNotInitialized) {
		t.Fatalf("expected ErrAlphaNotInitialized, got %v", err)
	}

	if err := s.InitAlpha(ctx, "alice"); err != nil {
		t.Fatalf("InitAlpha: %v", err)
	}
	if err := s.SetAlpha(ctx, "alice", 0.7); err != nil {
		t.Fatalf("SetAlpha after init: %v", err)
	}

	alpha, err := s.GetAlpha(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAlpha: %v", err)
	}
	if alpha != 0.7 {
		t.Errorf("alpha = %v, want 0.7", alpha)
	}
}

func TestSetAlphaValidatesRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InitAlpha(ctx, "alice"); err != nil {
		t.Fatalf("InitAlpha: %v", err)
	}

	for _, bad := range []float64{-0.001, 1.001, 2, -5} {
		if err := s.SetAlpha(ctx, "alice", bad); !errors.Is(err, ErrAlphaRange) {
			t.Errorf("SetAlpha(%v) error = %v, want ErrAlphaRange", bad, err)
		}
	}

	// Rejected writes must not clobber the stored value.
	alpha, _ := s.GetAlpha(ctx, "alice")
	if alpha != DefaultAlpha {
		t.Errorf("alpha changed by rejected write: %v", alpha)
	}

	// Boundaries are inclusive.
	for _, ok := range []float64{0, 1} {
		if err := s.SetAlpha(ctx, "alice", ok); err != nil {
			t.Errorf("SetAlpha(%v) = %v, want nil", ok, err)
		}
	}
}

func TestInitAlphaIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InitAlpha(ctx, "alice"); err != nil {
		t.Fatalf("InitAlpha: %v", err)
	}
	if err := s.SetAlpha(ctx, "alice", 0.9); err != nil {
		t.Fatalf("SetAlpha: %v", err)
	}

	// Re-initializing must not reset a tuned value.
	if err := s.InitAlpha(ctx, "alice"); err != nil {
		t.Fatalf("second InitAlpha: %v", err)
	}

	alpha, err := s.GetAlpha(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAlpha: %v", err)
	}
	if alpha != 0.9 {
		t.Errorf("re-init clobbered alpha: got %v, want 0.9", alpha)
	}
}

func TestAlphaPerUserIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InitAlpha(ctx, "alice"); err != nil {
		t.Fatalf("InitAlpha: %v", err)
	}
	if err := s.SetAlpha(ctx, "alice", 0.25); err != nil {
		t.Fatalf("SetAlpha: %v", err)
	}

	bob, err := s.GetAlpha(ctx, "bob")
	if err != nil {
		t.Fatalf("GetAlpha: %v", err)
	}
	if bob != DefaultAlpha {
		t.Errorf("bob's alpha affected by alice's write: %v", bob)
	}
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetModel(ctx, ModelMF); !errors.Is(err, context.Canceled) {
		t.Errorf("GetModel with canceled ctx: %v", err)
	}
	if err := s.InitAlpha(ctx, "alice"); !errors.Is(err, context.Canceled) {
		t.Errorf("InitAlpha with canceled ctx: %v", err)
	}
}
