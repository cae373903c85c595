// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"testing"
)

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()
	event := validEvent()
	event.Properties = map[string]any{"campaign": "spring", "value": 3.5}

	data, err := s.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.UserID != event.UserID {
		t.Errorf("UserID = %q, want %q", decoded.UserID, event.UserID)
	}
	if decoded.EventType != event.EventType {
		t.Errorf("EventType = %q, want %q", decoded.EventType, event.EventType)
	}
	if decoded.Timestamp != event.Timestamp {
		t.Errorf("Timestamp = %d, want %d", decoded.Timestamp, event.Timestamp)
	}
	if decoded.Properties["campaign"] != "spring" {
		t.Errorf("Properties = %v", decoded.Properties)
	}
}

func TestSerializerMarshalRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawEvent)
	}{
		{"missing user id", func(e *RawEvent) { e.UserID = "" }},
		{"missing event name", func(e *RawEvent) { e.EventName = "" }},
		{"missing event type", func(e *RawEvent) { e.EventType = "" }},
		{"zero timestamp", func(e *RawEvent) { e.Timestamp = 0 }},
	}

	s := NewSerializer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)

			if _, err := s.Marshal(event); err == nil {
				t.Fatal("expected marshal rejection")
			} else if !IsPermanentError(err) {
				t.Errorf("expected permanent error, got %T: %v", err, err)
			}
		})
	}
}

func TestSerializerUnmarshalMalformed(t *testing.T) {
	s := NewSerializer()
	if _, err := s.Unmarshal([]byte("not json at all")); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestSerializerUnmarshalDoesNotValidate(t *testing.T) {
	// Decoding is deliberately lenient; validation is the Validator's job
	// so an invalid event still reaches the failure report with its ID.
	s := NewSerializer()
	event, err := s.Unmarshal([]byte(`{"eventName":"x"}`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if event.UserID != "" {
		t.Errorf("UserID = %q, want empty", event.UserID)
	}
}
