// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"context"
	"fmt"
	"time"
)

// BucketInterval is the metrics window width.
const BucketInterval = 5 * time.Minute

// Aggregator computes windowed metric deltas from enriched events and
// merges them into the metrics store. It holds no cross-call state.
type Aggregator struct {
	metrics MetricsStore
}

// NewAggregator creates an aggregator backed by the given metrics store.
func NewAggregator(metrics MetricsStore) *Aggregator {
	return &Aggregator{metrics: metrics}
}

// BucketKey formats the 5-minute UTC window containing ts (epoch seconds)
// as yyyy-MM-dd-HH:mm.
func BucketKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Truncate(BucketInterval).Format("2006-01-02-15:04")
}

// Delta computes a single event's metrics contribution. Only page_view and
// conversion events contribute; everything else yields a zero delta.
func Delta(event *EnrichedEvent) *MetricsDelta {
	delta := &MetricsDelta{}

	switch event.EventType {
	case EventTypePageView:
		if event.PagePath != nil {
			delta.PageViews = 1
			delta.PageCounts = map[string]int64{*event.PagePath: 1}
		}
	case EventTypeConversion:
		delta.Conversions = 1
		if v, ok := numericValue(event.Properties["value"]); ok {
			delta.Revenue = v
		}
	}

	return delta
}

// Aggregate merges the event's delta into its time bucket. Zero deltas are
// skipped without touching the store.
func (a *Aggregator) Aggregate(ctx context.Context, event *EnrichedEvent) error {
	delta := Delta(event)
	if delta.IsZero() {
		return nil
	}

	bucket := BucketKey(event.Timestamp)
	if err := a.metrics.MergeMetrics(ctx, bucket, delta); err != nil {
		return fmt.Errorf("merge metrics bucket %s: %w", bucket, err)
	}
	return nil
}
