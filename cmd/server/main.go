// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

// Command server runs the Clickforge clickstream pipeline: the HTTP
// ingest API publishing into an embedded (or external) NATS JetStream
// stream, and the batch consumer that validates, enriches, archives,
// and aggregates events into the BadgerDB state store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tomtom215/clickforge/internal/api"
	"github.com/tomtom215/clickforge/internal/config"
	"github.com/tomtom215/clickforge/internal/consumer"
	"github.com/tomtom215/clickforge/internal/logging"
	"github.com/tomtom215/clickforge/internal/pipeline"
	"github.com/tomtom215/clickforge/internal/store"
	"github.com/tomtom215/clickforge/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Clickforge starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// State store
	badgerStore, db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Badger close failed")
		}
	}()

	breakerCfg := store.DefaultBreakerConfig()
	breakerCfg.FailureThreshold = cfg.Store.BreakerFailureThreshold
	breakerCfg.Timeout = cfg.Store.BreakerTimeout
	stateStore := store.NewBreakerStore(badgerStore, breakerCfg)

	// Transport
	nc, embedded, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()
	if embedded != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS shutdown incomplete")
			}
		}()
	}

	streams, err := consumer.NewStreamManager(nc, consumer.StreamConfig{
		Name:     cfg.NATS.Stream,
		Subjects: []string{cfg.NATS.Subjects},
		MaxAge:   time.Duration(cfg.NATS.RetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		return err
	}
	if _, err := streams.EnsureStream(ctx); err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}
	logging.Info().Str("stream", cfg.NATS.Stream).Str("subjects", cfg.NATS.Subjects).Msg("Stream ready")

	// Pipeline
	processor := pipeline.NewProcessor(
		pipeline.NewValidatorWithLimits(cfg.Pipeline.MaxFutureSkew, cfg.Pipeline.MaxEventAge),
		pipeline.NewEnricherWithLifetimes(stateStore, cfg.Pipeline.SessionIdleTimeout, cfg.Pipeline.SessionTTL),
		pipeline.NewAggregator(stateStore),
		stateStore,
	)

	jsConsumer, err := consumer.New(ctx, streams.JetStream(), processor, consumer.Config{
		Stream:         cfg.NATS.Stream,
		DurableName:    cfg.NATS.DurableName,
		MaxDeliver:     cfg.NATS.MaxDeliver,
		AckWait:        cfg.NATS.AckWait,
		BatchSize:      cfg.NATS.BatchSize,
		FetchMaxWait:   cfg.NATS.FetchMaxWait,
		FetchPerSecond: cfg.NATS.FetchPerSecond,
	})
	if err != nil {
		return err
	}

	// HTTP API
	publisher := consumer.NewPublisher(streams.JetStream(), subjectPrefix(cfg.NATS.Subjects))
	handler := api.NewHandler(publisher, map[string]api.ReadyCheck{
		"nats": func(ctx context.Context) error {
			_, err := streams.GetStreamInfo(ctx)
			return err
		},
		"store": func(ctx context.Context) error {
			if state := stateStore.State(); state == "open" {
				return fmt.Errorf("store circuit breaker is open")
			}
			return nil
		},
	})
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	tree.AddPipelineService(&supervisor.RunnerService{Name: "jetstream-consumer", Runner: jsConsumer})
	tree.AddPipelineService(&supervisor.BadgerGCService{DB: db, Interval: cfg.Store.GCInterval})
	tree.AddAPIService(&supervisor.HTTPService{Server: httpServer, ShutdownTimeout: cfg.Server.ShutdownTimeout})

	logging.Info().Str("addr", httpServer.Addr).Msg("Clickforge running")
	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Clickforge stopped")
	return nil
}

// connectNATS starts the embedded server when configured and connects to
// it in-process; otherwise it dials the configured external URL with
// unlimited reconnects.
func connectNATS(cfg *config.Config) (*nats.Conn, *consumer.EmbeddedServer, error) {
	if cfg.NATS.Embedded {
		embedded, err := consumer.NewEmbeddedServer(consumer.EmbeddedServerConfig{
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			return nil, nil, err
		}

		nc, err := nats.Connect("", nats.InProcessServer(embedded.InProcessConn()))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}
		return nc, embedded, nil
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	return nc, nil, nil
}

// subjectPrefix derives the publish prefix from the stream subject
// filter: "clicks.>" publishes under "clicks".
func subjectPrefix(subjects string) string {
	for i := 0; i < len(subjects); i++ {
		if subjects[i] == '.' {
			return subjects[:i]
		}
	}
	return subjects
}
