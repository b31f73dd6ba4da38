// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package remap translates between external string identifiers and the
// dense integer indices the matrix factorization trainer operates on.
//
// The mapping is injective in both directions: each identifier maps to
// exactly one index and back. Indices are assigned in insertion order
// starting at 0, so rebuilding an Index from the same ordered input
// reproduces the same assignment.
package remap

import "fmt"

// Index is a bidirectional mapping between string identifiers and dense
// integer indices. It is not safe for concurrent mutation; build it fully
// before sharing.
type Index struct {
	toInt map[string]int
	toID  []string
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		toInt: make(map[string]int),
	}
}

// Build creates an Index from identifiers in order, skipping duplicates.
func Build(ids []string) *Index {
	idx := NewIndex()
	for _, id := range ids {
		idx.Put(id)
	}
	return idx
}

// Put inserts an identifier and returns its index. Returns the existing
// index if the identifier was already present.
func (x *Index) Put(id string) int {
	if i, ok := x.toInt[id]; ok {
		return i
	}
	i := len(x.toID)
	x.toInt[id] = i
	x.toID = append(x.toID, id)
	return i
}

// Int returns the dense index for an identifier.
func (x *Index) Int(id string) (int, bool) {
	i, ok := x.toInt[id]
	return i, ok
}

// ID returns the identifier for a dense index.
func (x *Index) ID(i int) (string, bool) {
	if i < 0 || i >= len(x.toID) {
		return "", false
	}
	return x.toID[i], true
}

// MustID returns the identifier for a dense index, or an error naming the
// out-of-range index. Use this when the index came from an external
// response and a bad value indicates a protocol violation.
func (x *Index) MustID(i int) (string, error) {
	id, ok := x.ID(i)
	if !ok {
		return "", fmt.Errorf("index %d out of range (size %d)", i, len(x.toID))
	}
	return id, nil
}

// Len returns the number of mapped identifiers.
func (x *Index) Len() int {
	return len(x.toID)
}

// IDs returns the identifiers in index order. The returned slice is the
// Index's backing array; callers must not mutate it.
func (x *Index) IDs() []string {
	return x.toID
}
