// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"

	"github.com/tomtom215/clickforge/internal/logging"
	"github.com/tomtom215/clickforge/internal/metrics"
	"github.com/tomtom215/clickforge/internal/pipeline"
)

// fetchRetryDelay spaces out fetch attempts after a failure so a broken
// connection does not spin the loop.
const fetchRetryDelay = time.Second

// BatchProcessor processes one batch of records. A returned error means
// the whole batch must be redelivered; per-record permanent failures are
// reported in the Report instead.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []pipeline.Record) (*pipeline.Report, error)
}

// Config configures the pull consumer.
type Config struct {
	Stream      string
	DurableName string
	MaxDeliver  int
	AckWait     time.Duration

	BatchSize    int
	FetchMaxWait time.Duration

	// FetchPerSecond paces fetch attempts. Zero disables pacing.
	FetchPerSecond float64
}

// Consumer fetches event batches from JetStream and drives them through
// the pipeline, translating the batch outcome into acknowledgements:
//
//   - successfully processed records are Ack'd
//   - permanently failed records are Term'd, so the server never
//     redelivers a record that cannot succeed
//   - a transient batch failure Nak's every message, so the server
//     redelivers the whole batch
type Consumer struct {
	consumer  jetstream.Consumer
	processor BatchProcessor
	config    Config
	limiter   *rate.Limiter
}

// New provisions the durable pull consumer on the stream and returns a
// Consumer ready to Run.
func New(ctx context.Context, js jetstream.JetStream, processor BatchProcessor, cfg Config) (*Consumer, error) {
	consumerCfg := jetstream.ConsumerConfig{
		Durable:    cfg.DurableName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    cfg.AckWait,
		MaxDeliver: cfg.MaxDeliver,
		// At most one batch's worth of messages in flight; the pipeline
		// processes records strictly sequentially anyway.
		MaxAckPending: cfg.BatchSize,
	}

	jsConsumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s on stream %s: %w", cfg.DurableName, cfg.Stream, err)
	}

	var limiter *rate.Limiter
	if cfg.FetchPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FetchPerSecond), 1)
	}

	return &Consumer{
		consumer:  jsConsumer,
		processor: processor,
		config:    cfg,
		limiter:   limiter,
	}, nil
}

// Run fetches and processes batches until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	logging.Info().
		Str("stream", c.config.Stream).
		Str("durable", c.config.DurableName).
		Int("batch_size", c.config.BatchSize).
		Msg("Consumer started")

	for {
		if err := ctx.Err(); err != nil {
			logging.Info().Msg("Consumer stopped")
			return err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		msgs, err := c.fetch()
		if err != nil {
			logging.Error().Err(err).Msg("Batch fetch failed")
			select {
			case <-ctx.Done():
			case <-time.After(fetchRetryDelay):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		c.processBatch(ctx, msgs)
	}
}

// fetch pulls up to BatchSize messages, blocking at most FetchMaxWait.
func (c *Consumer) fetch() ([]jetstream.Msg, error) {
	batch, err := c.consumer.Fetch(c.config.BatchSize,
		jetstream.FetchMaxWait(c.config.FetchMaxWait))
	metrics.RecordFetch(err)
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}

	msgs := make([]jetstream.Msg, 0, c.config.BatchSize)
	for msg := range batch.Messages() {
		msgs = append(msgs, msg)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		// Keep whatever arrived before the error; the remainder will be
		// redelivered once its ack wait elapses.
		logging.Warn().Err(err).Int("received", len(msgs)).Msg("Batch fetch ended early")
	}

	return msgs, nil
}

// processBatch runs one fetched batch through the pipeline and
// acknowledges every message according to the outcome.
func (c *Consumer) processBatch(ctx context.Context, msgs []jetstream.Msg) {
	records := make([]pipeline.Record, len(msgs))
	for i, msg := range msgs {
		records[i] = pipeline.Record{
			ID:      recordID(msg, i),
			Payload: msg.Data(),
		}
	}

	report, err := c.processor.ProcessBatch(ctx, records)
	if err != nil {
		logging.Warn().Err(err).Int("batch_size", len(msgs)).
			Msg("Batch aborted, requesting redelivery")
		c.nakAll(msgs)
		return
	}

	c.acknowledge(msgs, records, report)
}

// acknowledge Ack's processed messages and Term's permanently failed
// ones so the server never redelivers records that cannot succeed.
func (c *Consumer) acknowledge(msgs []jetstream.Msg, records []pipeline.Record, report *pipeline.Report) {
	for i, msg := range msgs {
		if report.Failed(records[i].ID) {
			if err := msg.Term(); err != nil {
				logging.Warn().Err(err).Str("record", records[i].ID).Msg("Term failed")
			}
			metrics.RecordAck("term")
			continue
		}
		if err := msg.Ack(); err != nil {
			logging.Warn().Err(err).Str("record", records[i].ID).Msg("Ack failed")
		}
		metrics.RecordAck("ack")
	}
}

// nakAll negatively acknowledges every message in an aborted batch for
// immediate redelivery.
func (c *Consumer) nakAll(msgs []jetstream.Msg) {
	for _, msg := range msgs {
		if err := msg.Nak(); err != nil {
			logging.Warn().Err(err).Msg("Nak failed")
		}
		metrics.RecordAck("nak")
	}
}

// recordID derives a stable record identifier from the message's stream
// sequence, so the same message keeps the same ID across redeliveries.
// The positional fallback only applies when metadata is unreadable.
func recordID(msg jetstream.Msg, index int) string {
	meta, err := msg.Metadata()
	if err != nil {
		return fmt.Sprintf("msg-%d", index)
	}
	return fmt.Sprintf("%s-%d", meta.Stream, meta.Sequence.Stream)
}
