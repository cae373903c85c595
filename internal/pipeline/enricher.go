// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/clickforge/internal/metrics"
)

// Session lifecycle bounds.
const (
	// SessionIdleTimeout is the inactivity window after which a supplied
	// session ID can no longer be reused and a fresh session is minted.
	SessionIdleTimeout = 30 * time.Minute
	// SessionTTL bounds a session record's lifetime in the store. Expiry
	// itself is enforced by the store, not by the pipeline.
	SessionTTL = 7 * 24 * time.Hour
)

// Enricher attaches session and device context to validated events. It is
// stateful across events that share a session: each call loads or creates
// exactly one session, mutates it, and writes it back.
type Enricher struct {
	sessions    SessionStore
	now         func() time.Time
	newID       func() string
	idleTimeout time.Duration
	ttl         time.Duration
}

// NewEnricher creates an enricher backed by the given session store with
// the default session lifetimes.
func NewEnricher(sessions SessionStore) *Enricher {
	return &Enricher{
		sessions:    sessions,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		idleTimeout: SessionIdleTimeout,
		ttl:         SessionTTL,
	}
}

// NewEnricherWithLifetimes creates an enricher with custom idle timeout
// and session TTL.
func NewEnricherWithLifetimes(sessions SessionStore, idleTimeout, ttl time.Duration) *Enricher {
	e := NewEnricher(sessions)
	e.idleTimeout = idleTimeout
	e.ttl = ttl
	return e
}

// NewEnricherWithClock creates an enricher with deterministic clock and ID
// generation for tests.
func NewEnricherWithClock(sessions SessionStore, now func() time.Time, newID func() string) *Enricher {
	return &Enricher{
		sessions:    sessions,
		now:         now,
		newID:       newID,
		idleTimeout: SessionIdleTimeout,
		ttl:         SessionTTL,
	}
}

// Enrich resolves the event's session, derives the enriched event, applies
// the session mutation, and persists the session. Any store failure is
// returned as-is for the orchestrator to classify as transient.
func (e *Enricher) Enrich(ctx context.Context, event *RawEvent) (*EnrichedEvent, error) {
	session, err := e.resolveSession(ctx, event)
	if err != nil {
		return nil, err
	}

	class := ClassifyUserAgent(event.UserAgent)
	pagePath := derivePagePath(event.URL)

	enriched := &EnrichedEvent{
		EventID:          e.newID(),
		UserID:           event.UserID,
		SessionID:        session.SessionID,
		EventName:        event.EventName,
		EventType:        strings.ToLower(event.EventType),
		Timestamp:        event.Timestamp,
		PagePath:         pagePath,
		Referrer:         event.Referrer,
		IsNewSession:     session.PageViewCount == 0,
		SessionStartTime: session.StartTime,
		SessionDuration:  event.Timestamp - session.StartTime,
		PageViewCount:    session.PageViewCount + 1,
		Device:           class.Device,
		Browser:          class.Browser,
		OS:               class.OS,
		Properties:       event.Properties,
	}

	applyEvent(session, event, enriched)

	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session %s: %w", session.SessionID, err)
	}

	return enriched, nil
}

// resolveSession reuses the referenced session when it exists and has been
// active within SessionIdleTimeout; otherwise (no ID supplied, not found,
// or idle too long) it synthesizes a fresh session.
func (e *Enricher) resolveSession(ctx context.Context, event *RawEvent) (*Session, error) {
	now := e.now().Unix()

	if event.SessionID != "" {
		session, err := e.sessions.GetSession(ctx, event.SessionID)
		switch {
		case err == nil:
			if now-session.LastActivityTime <= int64(e.idleTimeout/time.Second) {
				metrics.RecordSessionResumed()
				return session, nil
			}
			// Idle past the timeout: fall through and mint a replacement.
		case !errors.Is(err, ErrSessionNotFound):
			return nil, fmt.Errorf("load session %s: %w", event.SessionID, err)
		}
	}

	metrics.RecordSessionCreated()

	// A validly-old event may predate processing time by up to the
	// validator's age limit. Seed the session at the earlier of the two so
	// LastActivityTime never drops below StartTime and the first event's
	// session duration is zero, not negative.
	start := now
	if event.Timestamp < start {
		start = event.Timestamp
	}

	return &Session{
		SessionID:        e.newID(),
		UserID:           event.UserID,
		StartTime:        start,
		LastActivityTime: start,
		ExpiresAt:        now + int64(e.ttl/time.Second),
	}, nil
}

// applyEvent performs the one session mutation this event causes.
func applyEvent(session *Session, event *RawEvent, enriched *EnrichedEvent) {
	firstPageView := len(session.PageViews) == 0

	session.LastActivityTime = event.Timestamp
	session.PageViewCount++
	session.EventCount++

	if firstPageView {
		session.Referrer = event.Referrer
		if enriched.Device != nil {
			session.Device = *enriched.Device
		}
		if enriched.Browser != nil {
			session.Browser = *enriched.Browser
		}
	}

	if path := enriched.PagePath; path != nil {
		if firstPageView {
			session.LandingPage = *path
		}
		if !containsPath(session.PageViews, *path) {
			session.PageViews = append(session.PageViews, *path)
		}
		session.ExitPage = *path
	}

	if enriched.EventType == EventTypeConversion {
		session.HasConverted = true
		if v, ok := numericValue(event.Properties["value"]); ok {
			session.ConversionValue += v
		}
	}
}

// derivePagePath reduces an absolute URL to its path and query. A
// non-absolute, non-empty URL passes through unchanged; an empty URL
// yields nil.
func derivePagePath(raw string) *string {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return &raw
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return &path
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
