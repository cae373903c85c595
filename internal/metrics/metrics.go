// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Package metrics provides Prometheus instrumentation for the batch
// pipeline, the state store, the JetStream consumer, and the ingest API.
// All collectors are registered via promauto and exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch pipeline metrics
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_batches_total",
			Help: "Total number of batches processed to completion",
		},
	)

	BatchesAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_batches_aborted_total",
			Help: "Total number of batches aborted by a transient failure",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_batch_duration_seconds",
			Help:    "Duration of batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_batch_size",
			Help:    "Number of records per processed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_total",
			Help: "Total number of records by processing outcome",
		},
		[]string{"outcome"}, // "succeeded", "permanent_failure"
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_validation_failures_total",
			Help: "Total number of records rejected by validation",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_sessions_created_total",
			Help: "Total number of sessions synthesized during enrichment",
		},
	)

	SessionsResumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_sessions_resumed_total",
			Help: "Total number of existing sessions reused during enrichment",
		},
	)

	// State store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of state store operations",
		},
		[]string{"operation"}, // "get_session", "save_session", "archive_event", "merge_metrics"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of failed state store operations",
		},
		[]string{"operation"},
	)

	MergeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_merge_conflicts_total",
			Help: "Total number of metrics merges retried after a transaction conflict",
		},
	)

	// Consumer metrics
	ConsumerFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_fetches_total",
			Help: "Total number of JetStream batch fetches",
		},
	)

	ConsumerFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_fetch_errors_total",
			Help: "Total number of failed JetStream batch fetches",
		},
	)

	ConsumerAcks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_acks_total",
			Help: "Total number of message acknowledgements by kind",
		},
		[]string{"kind"}, // "ack", "term", "nak"
	)

	// Ingest API metrics
	IngestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total number of ingest API requests by status",
		},
		[]string{"status"}, // "accepted", "rejected", "error"
	)

	IngestEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of events accepted by the ingest API",
		},
	)
)

// RecordBatch records a completed batch with its size and duration.
func RecordBatch(size int, elapsed time.Duration) {
	BatchesTotal.Inc()
	BatchSize.Observe(float64(size))
	BatchDuration.Observe(elapsed.Seconds())
}

// RecordBatchAborted counts a batch aborted by a transient failure.
func RecordBatchAborted() {
	BatchesAborted.Inc()
}

// RecordRecordProcessed counts one record with its outcome.
func RecordRecordProcessed(outcome string) {
	RecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationFailure counts a record rejected by validation.
func RecordValidationFailure() {
	ValidationFailures.Inc()
}

// RecordSessionCreated counts a session synthesized during enrichment.
func RecordSessionCreated() {
	SessionsCreated.Inc()
}

// RecordSessionResumed counts an existing session reused during enrichment.
func RecordSessionResumed() {
	SessionsResumed.Inc()
}

// RecordStoreOperation counts a state store operation and, when it failed,
// the corresponding error.
func RecordStoreOperation(operation string, err error) {
	StoreOperations.WithLabelValues(operation).Inc()
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordMergeConflict counts a metrics merge retried after a conflict.
func RecordMergeConflict() {
	MergeConflicts.Inc()
}

// RecordFetch counts a JetStream fetch attempt.
func RecordFetch(err error) {
	ConsumerFetches.Inc()
	if err != nil {
		ConsumerFetchErrors.Inc()
	}
}

// RecordAck counts a message acknowledgement by kind.
func RecordAck(kind string) {
	ConsumerAcks.WithLabelValues(kind).Inc()
}

// RecordIngest counts an ingest API request and the events it carried.
func RecordIngest(status string, events int) {
	IngestRequests.WithLabelValues(status).Inc()
	if events > 0 {
		IngestEvents.Add(float64(events))
	}
}
