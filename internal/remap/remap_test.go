// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package remap

import "testing"

func TestIndexRoundTrip(t *testing.T) {
	idx := Build([]string{"alice", "bob", "carol"})

	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}

	for want, id := range []string{"alice", "bob", "carol"} {
		i, ok := idx.Int(id)
		if !ok || i != want {
			t.Errorf("Int(%q) = %d, %v; want %d, true", id, i, ok, want)
		}
		back, ok := idx.ID(i)
		if !ok || back != id {
			t.Errorf("ID(%d) = %q, %v; want %q, true", i, back, ok, id)
		}
	}
}

func TestIndexSkipsDuplicates(t *testing.T) {
	idx := Build([]string{"alice", "bob", "alice"})

	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
	if i, _ := idx.Int("alice"); i != 0 {
		t.Errorf("duplicate insert changed alice's index to %d", i)
	}
}

func TestIndexPutReturnsExisting(t *testing.T) {
	idx := NewIndex()

	first := idx.Put("alice")
	second := idx.Put("alice")
	if first != second {
		t.Errorf("Put twice returned %d then %d", first, second)
	}
}

func TestIndexUnknownLookups(t *testing.T) {
	idx := Build([]string{"alice"})

	if _, ok := idx.Int("unknown"); ok {
		t.Error("Int(unknown) should return false")
	}
	if _, ok := idx.ID(-1); ok {
		t.Error("ID(-1) should return false")
	}
	if _, ok := idx.ID(1); ok {
		t.Error("ID past end should return false")
	}
	if _, err := idx.MustID(7); err == nil {
		t.Error("MustID out of range should error")
	}
}

func TestIndexDeterministicRebuild(t *testing.T) {
	input := []string{"u3", "u1", "u2"}
	a := Build(input)
	b := Build(input)

	for _, id := range input {
		ai, _ := a.Int(id)
		bi, _ := b.Int(id)
		if ai != bi {
			t.Errorf("rebuild changed index for %q: %d vs %d", id, ai, bi)
		}
	}
}
