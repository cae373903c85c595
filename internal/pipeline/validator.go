// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"net/url"
	"strings"
	"time"
)

// Freshness bounds for event timestamps.
const (
	// MaxFutureSkew is how far ahead of the wall clock an event may be
	// timestamped before it is rejected.
	MaxFutureSkew = 5 * time.Minute
	// MaxEventAge is the oldest acceptable event timestamp.
	MaxEventAge = 24 * time.Hour
)

// Validator enforces schema and freshness rules on raw events. It is
// stateless and has no side effects; every failure is a PermanentError.
type Validator struct {
	now           func() time.Time
	maxFutureSkew time.Duration
	maxEventAge   time.Duration
}

// NewValidator creates a validator using the wall clock and the default
// freshness bounds.
func NewValidator() *Validator {
	return &Validator{now: time.Now, maxFutureSkew: MaxFutureSkew, maxEventAge: MaxEventAge}
}

// NewValidatorWithLimits creates a validator with custom freshness bounds.
func NewValidatorWithLimits(maxFutureSkew, maxEventAge time.Duration) *Validator {
	return &Validator{now: time.Now, maxFutureSkew: maxFutureSkew, maxEventAge: maxEventAge}
}

// NewValidatorWithClock creates a validator with a fixed clock for tests.
func NewValidatorWithClock(now func() time.Time) *Validator {
	return &Validator{now: now, maxFutureSkew: MaxFutureSkew, maxEventAge: MaxEventAge}
}

// Validate checks the event in order, first failure wins:
// required fields, event type enumeration, timestamp freshness, URL shape.
func (v *Validator) Validate(event *RawEvent) error {
	if strings.TrimSpace(event.UserID) == "" {
		return NewPermanentError("userId is required", nil)
	}
	if strings.TrimSpace(event.EventName) == "" {
		return NewPermanentError("eventName is required", nil)
	}
	if strings.TrimSpace(event.EventType) == "" {
		return NewPermanentError("eventType is required", nil)
	}
	if _, ok := validEventTypes[strings.ToLower(event.EventType)]; !ok {
		return NewPermanentError("eventType "+event.EventType+" is not a recognized event type", nil)
	}
	if event.Timestamp <= 0 {
		return NewPermanentError("timestamp must be a positive epoch value", nil)
	}

	now := v.now().Unix()
	if event.Timestamp > now+int64(v.maxFutureSkew/time.Second) {
		return NewPermanentError("timestamp is too far in the future", nil)
	}
	if event.Timestamp < now-int64(v.maxEventAge/time.Second) {
		return NewPermanentError("timestamp is older than the retention window", nil)
	}

	if event.URL != "" {
		u, err := url.Parse(event.URL)
		if err != nil {
			return NewPermanentError("url is malformed", err)
		}
		if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return NewPermanentError("url must be an absolute http or https URL", nil)
		}
	}

	return nil
}
