// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package trainer provides HTTP clients for the external model training
// microservices: the matrix factorization (ALS) trainer and the word2vec
// trainer. Both clients share circuit breaking and rate limiting so a
// struggling trainer is backed off rather than hammered.
//
// Responses are decoded into typed structs; an unexpected shape fails the
// call instead of being traversed dynamically.
package trainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hyewatch/peermatch/internal/config"
	"github.com/hyewatch/peermatch/internal/logging"
	"github.com/hyewatch/peermatch/internal/metrics"
)

// ErrTrainerUnavailable wraps circuit-open and transport failures so
// callers can distinguish "trainer down" from "trainer rejected input".
var ErrTrainerUnavailable = errors.New("trainer unavailable")

// client is the shared HTTP plumbing for both trainer clients.
type client struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func newClient(name, baseURL string, cfg config.TrainerConfig) *client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = time.Minute
	}

	settings := gobreaker.Settings{
		Name:    name + "-trainer",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}

	return &client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  logging.With().Str("component", "trainer").Str("trainer", name).Logger(),
	}
}

// postJSON sends payload to path and decodes the response into out.
func (c *client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.name, err)
	}

	start := time.Now()
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 512<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 256))
		}
		return data, nil
	})
	metrics.TrainerDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.TrainerCalls.WithLabelValues(c.name, "breaker_open").Inc()
			return fmt.Errorf("%w: circuit open for %s", ErrTrainerUnavailable, c.name)
		}
		metrics.TrainerCalls.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("%w: %s call failed: %v", ErrTrainerUnavailable, c.name, err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		metrics.TrainerCalls.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}

	metrics.TrainerCalls.WithLabelValues(c.name, "ok").Inc()
	metrics.TrainerLastSuccess.WithLabelValues(c.name).SetToCurrentTime()
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
