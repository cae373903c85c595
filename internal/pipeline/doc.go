// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Package pipeline implements the clickstream batch processing core:
// per-record validation, session-state enrichment, windowed metrics
// aggregation, and partial-failure accumulation.
//
// One batch flows through a Processor as:
//
//	parse → validate → enrich → {archive ∥ aggregate}
//
// Records are processed sequentially; the archive write and the metrics
// merge for a single record run concurrently. Failures come in exactly two
// kinds: PermanentError (malformed payload or failed validation) isolates
// the offending record and lands in the batch Report, while any error
// downstream of successful validation is a RetryableError that aborts the
// whole batch call so the transport can redeliver the remainder.
//
// The pipeline talks to persistence only through the narrow SessionStore,
// EventArchiver, and MetricsStore interfaces; collaborators are injected,
// never resolved from process-wide state.
package pipeline
