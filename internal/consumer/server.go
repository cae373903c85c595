// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Package consumer implements the JetStream transport: an optional
// embedded NATS server, stream provisioning, the event publisher used by
// the ingest API, and the pull consumer that feeds batches to the
// processing pipeline.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServerConfig configures the in-process NATS server.
type EmbeddedServerConfig struct {
	StoreDir  string
	MaxMemory int64
	MaxStore  int64
}

// EmbeddedServer wraps an in-process NATS JetStream server, giving
// single-instance deployments a self-contained transport with no
// external broker to operate.
type EmbeddedServer struct {
	server *server.Server
}

// NewEmbeddedServer creates and starts an embedded NATS server with
// JetStream enabled. Returns an error if the server is not ready within
// 30 seconds.
func NewEmbeddedServer(cfg EmbeddedServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "clickforge-events",
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		// In-process only: external producers go through the ingest API,
		// so no TCP listener is needed.
		DontListen: true,
		NoLog:      true,
		MaxPayload: 1 << 20, // 1MB, far above any single event
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns}, nil
}

// InProcessConn returns the server handle used for in-process client
// connections via nats.InProcessServer.
func (s *EmbeddedServer) InProcessConn() *server.Server {
	return s.server
}

// Shutdown stops the server, waiting for completion or context
// cancellation, whichever comes first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
