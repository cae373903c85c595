// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickforge/internal/pipeline"
)

type fakePublisher struct {
	published []*pipeline.RawEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, event *pipeline.RawEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func newTestRouter(pub *fakePublisher, checks map[string]ReadyCheck) http.Handler {
	return NewRouter(NewHandler(pub, checks), RouterConfig{
		RateLimitReqs:   0, // disabled in tests
		RateLimitWindow: time.Minute,
	})
}

func postEvents(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const singleEvent = `{
	"userId": "user-1",
	"eventName": "homepage_view",
	"eventType": "page_view",
	"timestamp": 1773500000,
	"url": "https://shop.example.com/"
}`

func TestIngestSingleEvent(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub, nil)

	rec := postEvents(t, router, singleEvent)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accepted int `json:"accepted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", resp.Accepted)
	}
	if len(pub.published) != 1 || pub.published[0].UserID != "user-1" {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestIngestEventArray(t *testing.T) {
	pub := &fakePublisher{}
	router := newTestRouter(pub, nil)

	body := "[" + singleEvent + "," + singleEvent + "]"
	rec := postEvents(t, router, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d events, want 2", len(pub.published))
	}
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"empty body", ""},
		{"empty array", "[]"},
		{"scalar", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			rec := postEvents(t, newTestRouter(pub, nil), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(pub.published) != 0 {
				t.Error("nothing may be published for a rejected request")
			}
		})
	}
}

func TestIngestPermanentPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: pipeline.NewPermanentError("unknown event type \"hover\"", nil)}
	rec := postEvents(t, newTestRouter(pub, nil), singleEvent)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestIngestTransientPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: pipeline.NewRetryableError("publish event", nil)}
	rec := postEvents(t, newTestRouter(pub, nil), singleEvent)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(&fakePublisher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	t.Run("all components ready", func(t *testing.T) {
		router := newTestRouter(&fakePublisher{}, map[string]ReadyCheck{
			"nats":  func(context.Context) error { return nil },
			"store": func(context.Context) error { return nil },
		})

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("degraded component", func(t *testing.T) {
		router := newTestRouter(&fakePublisher{}, map[string]ReadyCheck{
			"nats": func(context.Context) error { return context.DeadlineExceeded },
		})

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}

		var status HealthStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if status.Status != "degraded" {
			t.Errorf("status = %q", status.Status)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakePublisher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Prometheus exposition output")
	}
}
