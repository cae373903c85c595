// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Serializer handles RawEvent encoding/decoding for transport messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes. Structurally required fields
// are checked before encoding so producers reject junk at the edge instead
// of shipping it to the consumer; freshness and enumeration rules stay
// with the Validator.
func (s *Serializer) Marshal(event *RawEvent) ([]byte, error) {
	if err := checkRequired(event); err != nil {
		return nil, fmt.Errorf("check event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to an event.
func (s *Serializer) Unmarshal(data []byte) (*RawEvent, error) {
	var event RawEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	return &event, nil
}

// checkRequired enforces the structural part of the wire contract.
func checkRequired(event *RawEvent) error {
	if strings.TrimSpace(event.UserID) == "" {
		return NewPermanentError("userId is required", nil)
	}
	if strings.TrimSpace(event.EventName) == "" {
		return NewPermanentError("eventName is required", nil)
	}
	if strings.TrimSpace(event.EventType) == "" {
		return NewPermanentError("eventType is required", nil)
	}
	if event.Timestamp <= 0 {
		return NewPermanentError("timestamp must be a positive epoch value", nil)
	}
	return nil
}
