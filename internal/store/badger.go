// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Package store implements the pipeline's state-store boundary on
// BadgerDB: session records with native TTL expiry, a date-partitioned
// event archive, and additively merged metrics buckets.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/clickforge/internal/metrics"
	"github.com/tomtom215/clickforge/internal/pipeline"
)

// Key prefixes for BadgerDB storage.
const (
	sessionKeyPrefix = "session:"
	eventKeyPrefix   = "events/"
	metricsKeyPrefix = "metrics:"
)

// mergeMaxAttempts bounds conflict retries for metrics merges. Badger
// transactions are serializable, so a conflicting concurrent merge shows
// up as ErrConflict and the read-add-write is simply replayed.
const mergeMaxAttempts = 10

// MetricsBucket is the stored aggregate for one 5-minute window. All
// fields are running totals built exclusively from additive deltas.
type MetricsBucket struct {
	TotalPageViews   int64            `json:"total_page_views"`
	TotalConversions int64            `json:"total_conversions"`
	TotalRevenue     float64          `json:"total_revenue"`
	TopPages         map[string]int64 `json:"top_pages,omitempty"`
}

// BadgerStore implements pipeline.StateStore on a BadgerDB instance.
// Badger operations carry no context of their own, so every method checks
// the caller's context first and fails promptly once it is canceled.
type BadgerStore struct {
	db *badger.DB
}

// New creates a store on an already-opened BadgerDB.
func New(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Open opens (or creates) a BadgerDB at path and wraps it in a store.
// An empty path opens an in-memory database, used by tests and by
// ephemeral deployments.
func Open(path string) (*BadgerStore, *badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return New(db), db, nil
}

// GetSession retrieves a session by ID. Missing keys and sessions whose
// TTL elapsed both surface as pipeline.ErrSessionNotFound.
func (s *BadgerStore) GetSession(ctx context.Context, sessionID string) (*pipeline.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session pipeline.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return pipeline.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	metrics.RecordStoreOperation("get_session", ignoreNotFound(err))
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// SaveSession writes a session with full-overwrite semantics. The entry
// TTL is derived from the session's expiry so the store reclaims expired
// sessions without any sweeper in this process.
func (s *BadgerStore) SaveSession(ctx context.Context, session *pipeline.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+session.SessionID), data)
		if ttl := time.Until(time.Unix(session.ExpiresAt, 0)); ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	metrics.RecordStoreOperation("save_session", err)
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.SessionID, err)
	}
	return nil
}

// ArchiveEvent durably stores an enriched event, content-addressed by
// event ID and date: events/{yyyy}/{MM}/{dd}/{eventId}.
func (s *BadgerStore) ArchiveEvent(ctx context.Context, event *pipeline.EnrichedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := ArchiveKey(event)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	metrics.RecordStoreOperation("archive_event", err)
	if err != nil {
		return fmt.Errorf("archive event %s: %w", event.EventID, err)
	}
	return nil
}

// ArchiveKey returns the archive key for an enriched event.
func ArchiveKey(event *pipeline.EnrichedEvent) string {
	day := time.Unix(event.Timestamp, 0).UTC().Format("2006/01/02")
	return eventKeyPrefix + day + "/" + event.EventID
}

// MergeMetrics additively merges a delta into its bucket. The
// read-add-write runs inside one serializable transaction; a concurrent
// merge to the same bucket surfaces as ErrConflict and is retried, so no
// increment is ever lost to a stale read.
func (s *BadgerStore) MergeMetrics(ctx context.Context, bucket string, delta *pipeline.MetricsDelta) error {
	key := []byte(metricsKeyPrefix + bucket)

	var err error
	for attempt := 0; attempt < mergeMaxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			current := MetricsBucket{}
			item, getErr := txn.Get(key)
			switch {
			case getErr == nil:
				if valErr := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &current)
				}); valErr != nil {
					return fmt.Errorf("decode bucket: %w", valErr)
				}
			case !errors.Is(getErr, badger.ErrKeyNotFound):
				return fmt.Errorf("get bucket: %w", getErr)
			}

			applyDelta(&current, delta)

			data, marshalErr := json.Marshal(&current)
			if marshalErr != nil {
				return fmt.Errorf("encode bucket: %w", marshalErr)
			}
			return txn.Set(key, data)
		})

		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		metrics.RecordMergeConflict()
	}

	metrics.RecordStoreOperation("merge_metrics", err)
	if err != nil {
		return fmt.Errorf("merge metrics bucket %s: %w", bucket, err)
	}
	return nil
}

// ReadMetrics returns the current aggregate for a bucket, or a zero
// bucket when nothing has been merged yet.
func (s *BadgerStore) ReadMetrics(ctx context.Context, bucket string) (*MetricsBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &MetricsBucket{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metricsKeyPrefix + bucket))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, result)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read metrics bucket %s: %w", bucket, err)
	}
	return result, nil
}

func applyDelta(bucket *MetricsBucket, delta *pipeline.MetricsDelta) {
	bucket.TotalPageViews += delta.PageViews
	bucket.TotalConversions += delta.Conversions
	bucket.TotalRevenue += delta.Revenue

	if len(delta.PageCounts) > 0 && bucket.TopPages == nil {
		bucket.TopPages = make(map[string]int64, len(delta.PageCounts))
	}
	for page, count := range delta.PageCounts {
		bucket.TopPages[page] += count
	}
}

// ignoreNotFound strips the not-found sentinel so metrics only count real
// store failures.
func ignoreNotFound(err error) error {
	if errors.Is(err, pipeline.ErrSessionNotFound) {
		return nil
	}
	return err
}
