// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package api provides the service-to-service HTTP surface: match
// requests, alpha tuning, observation reporting, history ingestion,
// and the operational health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hyewatch/peermatch/internal/envelope"
	"github.com/hyewatch/peermatch/internal/history"
	"github.com/hyewatch/peermatch/internal/match"
)

// MatchEngine computes a peer match for a requesting user.
type MatchEngine interface {
	ComputeMatch(ctx context.Context, requester string) (*match.Result, error)
}

// AlphaStore reads and tunes per-user blend weights.
type AlphaStore interface {
	GetAlpha(ctx context.Context, userID string) (float64, error)
	SetAlpha(ctx context.Context, userID string, value float64) error
}

// ObservationLedger records what a user reported back for a one-time code.
type ObservationLedger interface {
	RecordObservation(ctx context.Context, code string, videoCount, helpfulCount int) error
}

// HistorySynchronizer ingests a user's watch-history events.
type HistorySynchronizer interface {
	Synchronize(ctx context.Context, userID string, events []history.Event) error
}

// Pinger reports relational store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EnvelopeHealth reports envelope store availability.
type EnvelopeHealth interface {
	Healthy() bool
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	engine    MatchEngine
	alphas    AlphaStore
	ledger    ObservationLedger
	histories HistorySynchronizer
	db        Pinger
	envelope  EnvelopeHealth
	startTime time.Time
}

// NewHandler creates a handler with its dependencies.
func NewHandler(engine MatchEngine, alphas AlphaStore, ledger ObservationLedger, histories HistorySynchronizer, db Pinger, env EnvelopeHealth) *Handler {
	return &Handler{
		engine:    engine,
		alphas:    alphas,
		ledger:    ledger,
		histories: histories,
		db:        db,
		envelope:  env,
		startTime: time.Now(),
	}
}

// healthStatus is the /healthz response body.
type healthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"databaseConnected"`
	EnvelopeOpen      bool    `json:"envelopeOpen"`
	Uptime            float64 `json:"uptime"`
}

// Health reports overall service health. Degraded when either store is
// unreachable; the process still serves so operators can read the body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	envelopeOpen := h.envelope != nil && h.envelope.Healthy()

	status := "healthy"
	code := http.StatusOK
	if !dbConnected || !envelopeOpen {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, healthStatus{
		Status:            status,
		DatabaseConnected: dbConnected,
		EnvelopeOpen:      envelopeOpen,
		Uptime:            time.Since(h.startTime).Seconds(),
	})
}

// Match computes a peer match for the path user and returns the match
// result with its one-time code.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_USER", "user id is required")
		return
	}

	result, err := h.engine.ComputeMatch(r.Context(), userID)
	switch {
	case errors.Is(err, envelope.ErrModelUnavailable):
		respondError(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "no trained model is available yet")
		return
	case errors.Is(err, match.ErrUserModelMissing):
		respondError(w, http.StatusNotFound, "USER_NOT_MODELED", "user is not present in the trained models")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "MATCH_FAILED", "match computation failed")
		return
	}

	if result == nil {
		respondError(w, http.StatusNotFound, "NO_MATCH", "no eligible peer found")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// alphaBody is the request and response body for alpha endpoints.
type alphaBody struct {
	Alpha float64 `json:"alpha"`
}

// GetAlpha returns the user's blend weight, falling back to the default
// when the user has never tuned it.
func (h *Handler) GetAlpha(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	value, err := h.alphas.GetAlpha(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ALPHA_READ_FAILED", "could not read blend weight")
		return
	}
	respondJSON(w, http.StatusOK, alphaBody{Alpha: value})
}

// SetAlpha tunes the user's blend weight.
func (h *Handler) SetAlpha(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body alphaBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with an alpha field")
		return
	}

	err := h.alphas.SetAlpha(r.Context(), userID, body.Alpha)
	switch {
	case errors.Is(err, envelope.ErrAlphaRange):
		respondError(w, http.StatusBadRequest, "ALPHA_RANGE", "alpha must be between 0 and 1")
		return
	case errors.Is(err, envelope.ErrAlphaNotInitialized):
		respondError(w, http.StatusConflict, "ALPHA_NOT_INITIALIZED", "user must synchronize history before tuning alpha")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "ALPHA_WRITE_FAILED", "could not store blend weight")
		return
	}
	respondJSON(w, http.StatusOK, alphaBody{Alpha: body.Alpha})
}

// observationBody is the request body for observation reporting.
type observationBody struct {
	VideoCount   int `json:"videoCount"`
	HelpfulCount int `json:"helpfulCount"`
}

// RecordObservation stores what the requester reported back about a
// one-time code: how many videos they saw and how many helped.
func (h *Handler) RecordObservation(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "INVALID_CODE", "code is required")
		return
	}

	var body observationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with videoCount and helpfulCount")
		return
	}
	if body.VideoCount < 0 || body.HelpfulCount < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_COUNTS", "counts must be non-negative")
		return
	}

	if err := h.ledger.RecordObservation(r.Context(), code, body.VideoCount, body.HelpfulCount); err != nil {
		respondError(w, http.StatusInternalServerError, "OBSERVATION_FAILED", "could not record observation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// historyBody is the request body for history synchronization.
type historyBody struct {
	Events []history.Event `json:"events"`
}

// SyncHistory ingests a batch of watch-history events for the path user.
func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body historyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with an events array")
		return
	}

	if err := h.histories.Synchronize(r.Context(), userID, body.Events); err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_FAILED", "history synchronization failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
