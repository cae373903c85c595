// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"strings"

	"github.com/goccy/go-json"
)

// Event types accepted by the pipeline. EventType matching is
// case-insensitive; enriched events always carry the lowercase form.
const (
	EventTypePageView   = "page_view"
	EventTypeClick      = "click"
	EventTypeConversion = "conversion"
	EventTypeFormSubmit = "form_submit"
	EventTypeVideoPlay  = "video_play"
	EventTypeScroll     = "scroll"
)

// validEventTypes is the closed set of accepted event types.
var validEventTypes = map[string]struct{}{
	EventTypePageView:   {},
	EventTypeClick:      {},
	EventTypeConversion: {},
	EventTypeFormSubmit: {},
	EventTypeVideoPlay:  {},
	EventTypeScroll:     {},
}

// IsValidEventType reports whether eventType (case-insensitively) names
// one of the accepted event types. Producers use it to reject unknown
// types at the edge before a message is ever published.
func IsValidEventType(eventType string) bool {
	_, ok := validEventTypes[strings.ToLower(eventType)]
	return ok
}

// RawEvent is the wire-format clickstream event as delivered by the
// transport. Field names are fixed by the ingestion contract.
type RawEvent struct {
	UserID     string         `json:"userId"`
	SessionID  string         `json:"sessionId,omitempty"`
	EventName  string         `json:"eventName"`
	EventType  string         `json:"eventType"`
	Timestamp  int64          `json:"timestamp"` // epoch seconds
	URL        string         `json:"url,omitempty"`
	Referrer   string         `json:"referrer,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	IP         string         `json:"ip,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Session is the mutable per-visitor state keyed by session ID.
//
// Invariants: LastActivityTime ≥ StartTime, and EventCount / PageViewCount
// only ever grow within a session's life. PageViews keeps distinct page
// paths in insertion order. Expiry is enforced by the store via ExpiresAt;
// the pipeline never deletes sessions itself.
type Session struct {
	SessionID        string   `json:"session_id"`
	UserID           string   `json:"user_id"`
	StartTime        int64    `json:"start_time"`
	LastActivityTime int64    `json:"last_activity_time"`
	PageViews        []string `json:"page_views,omitempty"`
	EventCount       int      `json:"event_count"`
	PageViewCount    int      `json:"page_view_count"`
	HasConverted     bool     `json:"has_converted"`
	ConversionValue  float64  `json:"conversion_value"`
	LandingPage      string   `json:"landing_page,omitempty"`
	ExitPage         string   `json:"exit_page,omitempty"`
	Referrer         string   `json:"referrer,omitempty"`
	Device           string   `json:"device,omitempty"`
	Browser          string   `json:"browser,omitempty"`
	ExpiresAt        int64    `json:"expires_at"` // epoch seconds, store TTL
}

// EnrichedEvent is the immutable output of session enrichment: the raw
// event plus session and device context. Pointer fields model genuinely
// optional values; nil means absent, never "empty string".
type EnrichedEvent struct {
	EventID          string         `json:"event_id"`
	UserID           string         `json:"user_id"`
	SessionID        string         `json:"session_id"`
	EventName        string         `json:"event_name"`
	EventType        string         `json:"event_type"`
	Timestamp        int64          `json:"timestamp"`
	PagePath         *string        `json:"page_path,omitempty"`
	Referrer         string         `json:"referrer,omitempty"`
	IsNewSession     bool           `json:"is_new_session"`
	SessionStartTime int64          `json:"session_start_time"`
	SessionDuration  int64          `json:"session_duration"` // seconds at time of event
	PageViewCount    int            `json:"page_view_count"`  // value after this event
	Device           *string        `json:"device,omitempty"`
	Browser          *string        `json:"browser,omitempty"`
	OS               *string        `json:"os,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// MetricsDelta is one event's additive contribution to a 5-minute metrics
// bucket. Deltas are always increments, never absolute values, so merging
// is commutative and safe under concurrent writers.
type MetricsDelta struct {
	PageViews   int64            `json:"page_views,omitempty"`
	Conversions int64            `json:"conversions,omitempty"`
	Revenue     float64          `json:"revenue,omitempty"`
	PageCounts  map[string]int64 `json:"page_counts,omitempty"`
}

// IsZero reports whether the delta carries no contribution at all.
func (d *MetricsDelta) IsZero() bool {
	return d.PageViews == 0 && d.Conversions == 0 && d.Revenue == 0 && len(d.PageCounts) == 0
}

// numericValue coerces a property value to float64. JSON decoding yields
// float64 for numbers, but callers may also hand us typed ints or a
// json.Number, so accept those too. Anything else reports false.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
