// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig controls router-level middleware.
type RouterConfig struct {
	// RateLimitRequests is the allowed request count per window per IP.
	// Zero disables rate limiting.
	RateLimitRequests int

	// RateLimitWindow is the rate limit window. Default: 1m.
	RateLimitWindow time.Duration
}

// NewRouter builds the chi router with the full route table. Health and
// metrics stay outside the rate limit so monitoring never gets throttled.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/match/{userID}", h.Match)
		r.Get("/users/{userID}/alpha", h.GetAlpha)
		r.Put("/users/{userID}/alpha", h.SetAlpha)
		r.Post("/users/{userID}/history", h.SyncHistory)
		r.Post("/codes/{code}/observation", h.RecordObservation)
	})

	return r
}
