// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/clickforge/internal/pipeline"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, db, err := Open("")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return s
}

func testSession(id string) *pipeline.Session {
	now := time.Now().Unix()
	return &pipeline.Session{
		SessionID:        id,
		UserID:           "user-1",
		StartTime:        now,
		LastActivityTime: now,
		PageViews:        []string{"/home"},
		EventCount:       1,
		PageViewCount:    1,
		LandingPage:      "/home",
		ExitPage:         "/home",
		ExpiresAt:        now + 3600,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testSession("sess-1")
	if err := s.SaveSession(ctx, want); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.SessionID != want.SessionID || got.UserID != want.UserID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.PageViews) != 1 || got.PageViews[0] != "/home" {
		t.Errorf("PageViews = %v", got.PageViews)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	if !errors.Is(err, pipeline.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSaveSessionOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1")
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	session.EventCount = 9
	session.ExitPage = "/checkout"
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.EventCount != 9 || got.ExitPage != "/checkout" {
		t.Errorf("overwrite not applied: %+v", got)
	}
}

func TestSessionTTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping TTL wait in short mode")
	}

	s := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-ttl")
	session.ExpiresAt = time.Now().Add(1 * time.Second).Unix()
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	_, err := s.GetSession(ctx, "sess-ttl")
	if !errors.Is(err, pipeline.ErrSessionNotFound) {
		t.Errorf("expected expired session to be gone, got %v", err)
	}
}

func TestArchiveEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 14, 12, 7, 0, 0, time.UTC).Unix()
	event := &pipeline.EnrichedEvent{
		EventID:   "evt-1",
		UserID:    "user-1",
		SessionID: "sess-1",
		EventName: "homepage_view",
		EventType: pipeline.EventTypePageView,
		Timestamp: ts,
	}

	if err := s.ArchiveEvent(ctx, event); err != nil {
		t.Fatalf("ArchiveEvent failed: %v", err)
	}

	if want := "events/2026/03/14/evt-1"; ArchiveKey(event) != want {
		t.Errorf("ArchiveKey = %q, want %q", ArchiveKey(event), want)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(ArchiveKey(event)))
		return err
	})
	if err != nil {
		t.Errorf("archived event not readable at its key: %v", err)
	}
}

func TestMergeMetricsAdditive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := "2026-03-14-12:05"

	first := &pipeline.MetricsDelta{
		PageViews:  1,
		PageCounts: map[string]int64{"/home": 1},
	}
	second := &pipeline.MetricsDelta{
		PageViews:   1,
		Conversions: 1,
		Revenue:     42.5,
		PageCounts:  map[string]int64{"/home": 1, "/checkout": 1},
	}

	if err := s.MergeMetrics(ctx, bucket, first); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	if err := s.MergeMetrics(ctx, bucket, second); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	got, err := s.ReadMetrics(ctx, bucket)
	if err != nil {
		t.Fatalf("ReadMetrics failed: %v", err)
	}
	if got.TotalPageViews != 2 {
		t.Errorf("TotalPageViews = %d, want 2", got.TotalPageViews)
	}
	if got.TotalConversions != 1 {
		t.Errorf("TotalConversions = %d, want 1", got.TotalConversions)
	}
	if got.TotalRevenue != 42.5 {
		t.Errorf("TotalRevenue = %f, want 42.5", got.TotalRevenue)
	}
	if got.TopPages["/home"] != 2 || got.TopPages["/checkout"] != 1 {
		t.Errorf("TopPages = %v", got.TopPages)
	}
}

func TestMergeMetricsBucketsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.MergeMetrics(ctx, "2026-03-14-12:05", &pipeline.MetricsDelta{PageViews: 1}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := s.MergeMetrics(ctx, "2026-03-14-12:10", &pipeline.MetricsDelta{PageViews: 3}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got, err := s.ReadMetrics(ctx, "2026-03-14-12:10")
	if err != nil {
		t.Fatalf("ReadMetrics failed: %v", err)
	}
	if got.TotalPageViews != 3 {
		t.Errorf("TotalPageViews = %d, want 3", got.TotalPageViews)
	}
}

func TestMergeMetricsConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := "2026-03-14-12:05"

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.MergeMetrics(ctx, bucket, &pipeline.MetricsDelta{
				PageViews:  1,
				PageCounts: map[string]int64{"/home": 1},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d failed: %v", i, err)
		}
	}

	got, err := s.ReadMetrics(ctx, bucket)
	if err != nil {
		t.Fatalf("ReadMetrics failed: %v", err)
	}
	if got.TotalPageViews != writers {
		t.Errorf("TotalPageViews = %d, want %d (lost increments)", got.TotalPageViews, writers)
	}
	if got.TopPages["/home"] != writers {
		t.Errorf("TopPages[/home] = %d, want %d", got.TopPages["/home"], writers)
	}
}

func TestReadMetricsEmptyBucket(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ReadMetrics(context.Background(), "2099-01-01-00:00")
	if err != nil {
		t.Fatalf("ReadMetrics failed: %v", err)
	}
	if got.TotalPageViews != 0 || got.TopPages != nil {
		t.Errorf("expected zero bucket, got %+v", got)
	}
}

func TestCanceledContextFailsFast(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetSession(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("GetSession err = %v", err)
	}
	if err := s.SaveSession(ctx, testSession("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveSession err = %v", err)
	}
	if err := s.ArchiveEvent(ctx, &pipeline.EnrichedEvent{EventID: "e"}); !errors.Is(err, context.Canceled) {
		t.Errorf("ArchiveEvent err = %v", err)
	}
	if err := s.MergeMetrics(ctx, "b", &pipeline.MetricsDelta{PageViews: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("MergeMetrics err = %v", err)
	}
}
