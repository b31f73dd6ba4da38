// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package database

import (
	"errors"
	"io"

	"github.com/hyewatch/peermatch/internal/logging"
)

// ErrDuplicateCode indicates an attempt to record a one-time code that
// already exists in the ledger. Codes are single-use by contract; a
// repeat is a caller bug or a replay.
var ErrDuplicateCode = errors.New("one-time code already recorded")

// ErrCodeNotFound indicates a lookup for a code with no ledger row.
var ErrCodeNotFound = errors.New("one-time code not found")

// closeWithLog closes a resource and logs any error. Use for cleanup
// where errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error. Use in
// error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
