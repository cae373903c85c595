// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clickforge/internal/logging"
	"github.com/tomtom215/clickforge/internal/metrics"
)

// Record is one raw batch entry: an opaque transport identifier and a
// payload expected to decode into a RawEvent.
type Record struct {
	ID      string
	Payload []byte
}

// Report lists the records that failed permanently, in batch order. These
// are the only records the caller should consider unhandled; everything
// else in the batch was fully processed.
type Report struct {
	FailedRecordIDs []string
}

// Failed reports whether the given record ID is in the failure list.
func (r *Report) Failed(id string) bool {
	for _, failed := range r.FailedRecordIDs {
		if failed == id {
			return true
		}
	}
	return false
}

// Processor drives one batch through parse → validate → enrich →
// {archive ∥ aggregate}. All collaborators are injected; the processor
// never reaches into process-wide configuration.
type Processor struct {
	validator  *Validator
	enricher   *Enricher
	aggregator *Aggregator
	archiver   EventArchiver
}

// NewProcessor wires a batch processor from its collaborators.
func NewProcessor(validator *Validator, enricher *Enricher, aggregator *Aggregator, archiver EventArchiver) *Processor {
	return &Processor{
		validator:  validator,
		enricher:   enricher,
		aggregator: aggregator,
		archiver:   archiver,
	}
}

// ProcessBatch processes records sequentially and returns the permanent
// failure report. The first transient failure aborts the call with a
// RetryableError; the caller then owns redelivery of the unprocessed
// remainder. Cancelling ctx aborts the batch the same way and is
// propagated into every store call in flight.
func (p *Processor) ProcessBatch(ctx context.Context, records []Record) (*Report, error) {
	start := time.Now()
	report := &Report{}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			metrics.RecordBatchAborted()
			return nil, NewRetryableError("batch canceled", err)
		}

		if err := p.processRecord(ctx, record); err != nil {
			// Retryable takes precedence: a transient wrapper can carry a
			// permanent-typed cause from a store, and unwrapping must not
			// downgrade a batch abort to a record failure.
			if IsRetryableError(err) {
				metrics.RecordBatchAborted()
				logging.Error().
					Str("record_id", record.ID).
					Err(err).
					Msg("Transient failure, aborting batch")
				return nil, err
			}

			metrics.RecordRecordProcessed("permanent_failure")
			logging.Warn().
				Str("record_id", record.ID).
				Err(err).
				Msg("Record failed permanently")
			report.FailedRecordIDs = append(report.FailedRecordIDs, record.ID)
			continue
		}

		metrics.RecordRecordProcessed("succeeded")
	}

	metrics.RecordBatch(len(records), time.Since(start))
	logging.Debug().
		Int("records", len(records)).
		Int("failed", len(report.FailedRecordIDs)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch processed")

	return report, nil
}

// processRecord runs one record through the full pipeline. It returns a
// PermanentError for parse/validation defects and a RetryableError for
// anything that fails after validation succeeded.
func (p *Processor) processRecord(ctx context.Context, record Record) error {
	var event RawEvent
	if err := json.Unmarshal(record.Payload, &event); err != nil {
		return NewPermanentError("malformed payload", err)
	}

	if err := p.validator.Validate(&event); err != nil {
		metrics.RecordValidationFailure()
		return err
	}

	enriched, err := p.enricher.Enrich(ctx, &event)
	if err != nil {
		// Everything downstream of successful validation is transient by
		// contract, regardless of the underlying error type.
		return NewRetryableError("enrich event", err)
	}

	// Archive and aggregate concurrently; wait for both before the next
	// record. No lock spans the two writes.
	var wg sync.WaitGroup
	var archiveErr, aggregateErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		archiveErr = p.archiver.ArchiveEvent(ctx, enriched)
	}()
	go func() {
		defer wg.Done()
		aggregateErr = p.aggregator.Aggregate(ctx, enriched)
	}()
	wg.Wait()

	if archiveErr != nil {
		return NewRetryableError("archive event", archiveErr)
	}
	if aggregateErr != nil {
		return NewRetryableError("aggregate metrics", aggregateErr)
	}

	return nil
}
