// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/hyewatch/peermatch/internal/logging"
)

// apiError is the JSON error body shared by all endpoints.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// respondJSON marshals payload and writes it with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError sends a structured error body.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}
