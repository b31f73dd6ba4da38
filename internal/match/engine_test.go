// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package match

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/hyewatch/peermatch/internal/envelope"
)

// mockVectors implements VectorSource for testing.
type mockVectors struct {
	models   map[envelope.Model]map[string][]float64
	err      error
	getCalls int32
}

func (m *mockVectors) GetModel(ctx context.Context, model envelope.Model) (map[string][]float64, error) {
	atomic.AddInt32(&m.getCalls, 1)
	if m.err != nil {
		return nil, m.err
	}
	snapshot, ok := m.models[model]
	if !ok {
		return nil, envelope.ErrModelUnavailable
	}
	return snapshot, nil
}

// mockAlphas implements AlphaSource for testing.
type mockAlphas struct {
	alphas map[string]float64
	err    error
}

func (m *mockAlphas) GetAlpha(ctx context.Context, userID string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if a, ok := m.alphas[userID]; ok {
		return a, nil
	}
	return envelope.DefaultAlpha, nil
}

// mockLedger implements Ledger for testing.
type mockLedger struct {
	err     error
	code    string
	alpha   float64
	cfDist  float64
	w2vDist float64
	calls   int32
}

func (m *mockLedger) RecordRequest(ctx context.Context, code string, alpha, cfDist, w2vDist float64) error {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return m.err
	}
	m.code = code
	m.alpha = alpha
	m.cfDist = cfDist
	m.w2vDist = w2vDist
	return nil
}

// mockCandidates implements CandidateSource for testing.
type mockCandidates struct {
	users []string
	err   error
}

func (m *mockCandidates) UserIDs(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

func newTestEngine(vectors *mockVectors, alphas *mockAlphas, ledger *mockLedger, candidates CandidateSource) *Engine {
	return NewEngine(DefaultConfig(), vectors, alphas, ledger, candidates)
}

func canonicalVectors() *mockVectors {
	cf, w2v := canonicalModels()
	return &mockVectors{models: map[envelope.Model]map[string][]float64{
		envelope.ModelMF:  cf,
		envelope.ModelW2V: w2v,
	}}
}

func TestComputeMatchHappyPath(t *testing.T) {
	vectors := canonicalVectors()
	ledger := &mockLedger{}
	engine := newTestEngine(vectors, &mockAlphas{}, ledger, &mockCandidates{users: []string{"A", "B"}})

	result, err := engine.ComputeMatch(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}

	if result.MatchedUser != "A" {
		t.Errorf("matched %q, want A", result.MatchedUser)
	}
	if result.Alpha != envelope.DefaultAlpha {
		t.Errorf("alpha = %v, want default %v", result.Alpha, envelope.DefaultAlpha)
	}
	if result.Code == "" {
		t.Error("expected a one-time code")
	}
	if _, err := uuid.Parse(result.Code); err != nil {
		t.Errorf("code %q is not a UUID: %v", result.Code, err)
	}

	// The ledger received the same scores the result carries.
	if ledger.code != result.Code {
		t.Errorf("ledger code %q != result code %q", ledger.code, result.Code)
	}
	if ledger.alpha != result.Alpha || ledger.cfDist != result.CFDistance || ledger.w2vDist != result.W2VDistance {
		t.Errorf("ledger row (%v, %v, %v) != result (%v, %v, %v)",
			ledger.alpha, ledger.cfDist, ledger.w2vDist,
			result.Alpha, result.CFDistance, result.W2VDistance)
	}
}

func TestComputeMatchModelUnavailable(t *testing.T) {
	vectors := &mockVectors{models: map[envelope.Model]map[string][]float64{}}
	engine := newTestEngine(vectors, &mockAlphas{}, &mockLedger{}, &mockCandidates{})

	_, err := engine.ComputeMatch(context.Background(), "requester")
	if !errors.Is(err, envelope.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestComputeMatchUsesStoredAlpha(t *testing.T) {
	vectors := canonicalVectors()
	alphas := &mockAlphas{alphas: map[string]float64{"requester": 1}}
	ledger := &mockLedger{}
	engine := newTestEngine(vectors, alphas, ledger, &mockCandidates{users: []string{"A", "B"}})

	result, err := engine.ComputeMatch(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if result.Alpha != 1 {
		t.Errorf("alpha = %v, want stored 1", result.Alpha)
	}
	if result.MatchValue != 1 {
		t.Errorf("match value = %v, want 1 at alpha=1", result.MatchValue)
	}
}

func TestComputeMatchLedgerFailureNonFatal(t *testing.T) {
	vectors := canonicalVectors()
	ledger := &mockLedger{err: errors.New("disk full")}
	engine := newTestEngine(vectors, &mockAlphas{}, ledger, &mockCandidates{users: []string{"A", "B"}})

	result, err := engine.ComputeMatch(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ledger failure must not fail the match: %v", err)
	}
	if result == nil || result.MatchedUser != "A" {
		t.Fatalf("expected valid match despite ledger failure, got %+v", result)
	}
	if result.Code != "" {
		t.Errorf("code should be empty after ledger failure, got %q", result.Code)
	}
}

func TestComputeMatchNoCandidates(t *testing.T) {
	vectors := canonicalVectors()
	ledger := &mockLedger{}
	engine := newTestEngine(vectors, &mockAlphas{}, ledger, &mockCandidates{users: nil})

	result, err := engine.ComputeMatch(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for empty pool, got %+v", result)
	}
	if atomic.LoadInt32(&ledger.calls) != 0 {
		t.Error("no code should be recorded when there is no match")
	}
}

func TestComputeMatchRequesterMissing(t *testing.T) {
	vectors := canonicalVectors()
	engine := newTestEngine(vectors, &mockAlphas{}, &mockLedger{}, &mockCandidates{users: []string{"A"}})

	_, err := engine.ComputeMatch(context.Background(), "stranger")
	if !errors.Is(err, ErrUserModelMissing) {
		t.Errorf("expected ErrUserModelMissing, got %v", err)
	}
}

func TestComputeMatchSnapshotCache(t *testing.T) {
	vectors := canonicalVectors()
	engine := newTestEngine(vectors, &mockAlphas{}, &mockLedger{}, &mockCandidates{users: []string{"A", "B"}})
	ctx := context.Background()

	if _, err := engine.ComputeMatch(ctx, "requester"); err != nil {
		t.Fatalf("first ComputeMatch: %v", err)
	}
	first := atomic.LoadInt32(&vectors.getCalls)
	if first != 2 {
		t.Fatalf("expected 2 store loads (MF + W2V), got %d", first)
	}

	if _, err := engine.ComputeMatch(ctx, "requester"); err != nil {
		t.Fatalf("second ComputeMatch: %v", err)
	}
	if got := atomic.LoadInt32(&vectors.getCalls); got != first {
		t.Errorf("second match hit the store (%d loads), cache should serve it", got)
	}

	engine.InvalidateSnapshots()
	if _, err := engine.ComputeMatch(ctx, "requester"); err != nil {
		t.Fatalf("third ComputeMatch: %v", err)
	}
	if got := atomic.LoadInt32(&vectors.getCalls); got != first+2 {
		t.Errorf("after invalidation expected %d loads, got %d", first+2, got)
	}
}

func TestComputeMatchPoolFallsBackToSnapshot(t *testing.T) {
	vectors := canonicalVectors()
	engine := newTestEngine(vectors, &mockAlphas{}, &mockLedger{}, nil)

	result, err := engine.ComputeMatch(context.Background(), "requester")
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if result == nil || result.MatchedUser != "A" {
		t.Errorf("expected A from snapshot-derived pool, got %+v", result)
	}
}
