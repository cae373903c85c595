// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import "context"

// SessionStore is the session persistence boundary used by the Enricher.
//
// GetSession returns ErrSessionNotFound for missing or expired sessions.
// SaveSession has full-overwrite semantics: the last writer wins. Two
// consumers enriching events for the same session concurrently can race;
// this is an accepted limitation, not a guaranteed invariant.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
}

// EventArchiver durably stores enriched events, content-addressed by event
// ID and date (events/{yyyy}/{MM}/{dd}/{eventId}).
type EventArchiver interface {
	ArchiveEvent(ctx context.Context, event *EnrichedEvent) error
}

// MetricsStore merges windowed metric deltas. Merges must be additive and
// tolerate concurrent callers: increment-in-place, never read-then-write
// outside a transaction.
type MetricsStore interface {
	MergeMetrics(ctx context.Context, bucket string, delta *MetricsDelta) error
}

// StateStore is the full persistence surface the pipeline requires.
// Implementations live outside this package; the pipeline only ever
// receives already-constructed stores through injection.
type StateStore interface {
	SessionStore
	EventArchiver
	MetricsStore
}
