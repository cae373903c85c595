// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/clickforge/internal/logging"
	"github.com/tomtom215/clickforge/internal/pipeline"
)

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "state-store",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore wraps a pipeline.StateStore with a shared circuit breaker.
// When the underlying store fails repeatedly the breaker opens and calls
// fail fast as retryable errors, so batches abort and redeliver instead of
// hammering a struggling store.
type BreakerStore struct {
	inner   pipeline.StateStore
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps a state store with circuit breaker protection.
func NewBreakerStore(inner pipeline.StateStore, cfg BreakerConfig) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Not-found and permanent (data-shaped) errors say nothing
			// about store health and must not trip the breaker.
			return err == nil ||
				errors.Is(err, pipeline.ErrSessionNotFound) ||
				pipeline.IsPermanentError(err)
		},
	}

	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state name for health reporting.
func (b *BreakerStore) State() string {
	return b.breaker.State().String()
}

// GetSession retrieves a session through the breaker.
func (b *BreakerStore) GetSession(ctx context.Context, sessionID string) (*pipeline.Session, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.GetSession(ctx, sessionID)
	})
	if err != nil {
		return nil, b.mapError(err)
	}
	session, ok := result.(*pipeline.Session)
	if !ok {
		return nil, pipeline.NewRetryableError("unexpected session result type", nil)
	}
	return session, nil
}

// SaveSession writes a session through the breaker.
func (b *BreakerStore) SaveSession(ctx context.Context, session *pipeline.Session) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.SaveSession(ctx, session)
	})
	return b.mapError(err)
}

// ArchiveEvent archives an event through the breaker.
func (b *BreakerStore) ArchiveEvent(ctx context.Context, event *pipeline.EnrichedEvent) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.ArchiveEvent(ctx, event)
	})
	return b.mapError(err)
}

// MergeMetrics merges a metrics delta through the breaker.
func (b *BreakerStore) MergeMetrics(ctx context.Context, bucket string, delta *pipeline.MetricsDelta) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.MergeMetrics(ctx, bucket, delta)
	})
	return b.mapError(err)
}

// mapError converts breaker rejections into retryable errors so the
// orchestrator aborts the batch and the transport redelivers it.
func (b *BreakerStore) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pipeline.NewRetryableError("state store circuit open", err)
	}
	return err
}
