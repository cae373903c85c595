// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package consumer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/clickforge/internal/pipeline"
)

// Publisher publishes raw clickstream events to the event stream, one
// subject per event type: clicks.page_view, clicks.conversion, and so on.
type Publisher struct {
	js         jetstream.JetStream
	serializer *pipeline.Serializer
	prefix     string
}

// NewPublisher creates a publisher for the given stream subject prefix
// (for the default stream config, "clicks").
func NewPublisher(js jetstream.JetStream, prefix string) *Publisher {
	return &Publisher{
		js:         js,
		serializer: pipeline.NewSerializer(),
		prefix:     prefix,
	}
}

// Publish validates the structural wire contract and publishes the event.
// Unknown event types are rejected here rather than parked in the stream
// until the pipeline terminates them.
func (p *Publisher) Publish(ctx context.Context, event *pipeline.RawEvent) error {
	if !pipeline.IsValidEventType(event.EventType) {
		return pipeline.NewPermanentError(
			fmt.Sprintf("unknown event type %q", event.EventType), nil)
	}

	data, err := p.serializer.Marshal(event)
	if err != nil {
		return err
	}

	subject := p.prefix + "." + strings.ToLower(event.EventType)
	_, err = p.js.Publish(ctx, subject, data,
		jetstream.WithMsgID(messageID(data)))
	if err != nil {
		return pipeline.NewRetryableError("publish event", err)
	}

	return nil
}

// messageID derives a content-addressed Nats-Msg-Id so byte-identical
// submissions within the stream's duplicate window collapse to one
// message. Client retries of the same event are the common case.
func messageID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
