// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickforge/internal/logging"
	"github.com/tomtom215/clickforge/internal/metrics"
	"github.com/tomtom215/clickforge/internal/pipeline"
)

// maxBodyBytes caps an ingest request body. A batch of 1000 typical
// events stays well under this.
const maxBodyBytes = 4 << 20 // 4MB

var errInvalidBody = errors.New("request body must be an event object or an array of event objects")

// EventPublisher publishes a raw event to the transport.
type EventPublisher interface {
	Publish(ctx context.Context, event *pipeline.RawEvent) error
}

// HealthStatus reports component readiness.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// ReadyCheck probes one downstream component, returning nil when ready.
type ReadyCheck func(ctx context.Context) error

// Handler holds the HTTP handler dependencies.
type Handler struct {
	publisher EventPublisher
	checks    map[string]ReadyCheck
}

// NewHandler creates a handler. checks maps component names (e.g.
// "nats", "store") to their readiness probes; it may be nil.
func NewHandler(publisher EventPublisher, checks map[string]ReadyCheck) *Handler {
	return &Handler{publisher: publisher, checks: checks}
}

// ingestResponse is the ingest endpoint's success body.
type ingestResponse struct {
	Accepted int `json:"accepted"`
}

// errorResponse is the error body for all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// IngestEvents accepts a single event object or an array of events,
// validates the structural wire contract, and publishes each event to
// the stream. Publishing is fire-and-acknowledge: a 202 means the events
// are durably in the stream, not that the pipeline has processed them.
//
// A structurally invalid event rejects the whole request so clients
// never silently lose part of a batch.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		metrics.RecordIngest("error", 0)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}
	if len(body) > maxBodyBytes {
		metrics.RecordIngest("rejected", 0)
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		metrics.RecordIngest("rejected", 0)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(events) == 0 {
		metrics.RecordIngest("rejected", 0)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no events in request"})
		return
	}

	for i, event := range events {
		if err := h.publisher.Publish(r.Context(), event); err != nil {
			if pipeline.IsPermanentError(err) {
				metrics.RecordIngest("rejected", 0)
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
					Error: "event " + strconv.Itoa(i) + ": " + err.Error(),
				})
				return
			}
			metrics.RecordIngest("error", 0)
			logging.Error().Err(err).Msg("Event publish failed")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event publishing unavailable"})
			return
		}
	}

	metrics.RecordIngest("accepted", len(events))
	writeJSON(w, http.StatusAccepted, ingestResponse{Accepted: len(events)})
}

// HealthLive is the liveness probe: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "ok"})
}

// HealthReady is the readiness probe: every registered component check
// must pass.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok", Components: make(map[string]string, len(h.checks))}
	code := http.StatusOK

	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status.Status = "degraded"
			status.Components[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status.Components[name] = "ok"
	}

	writeJSON(w, code, status)
}

// decodeEvents parses a request body holding either one event object or
// an array of event objects.
func decodeEvents(body []byte) ([]*pipeline.RawEvent, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errInvalidBody
	}

	if trimmed[0] == '[' {
		var events []*pipeline.RawEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, errInvalidBody
		}
		return events, nil
	}

	var event pipeline.RawEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errInvalidBody
	}
	return []*pipeline.RawEvent{&event}, nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn().Err(err).Msg("Response encoding failed")
	}
}
