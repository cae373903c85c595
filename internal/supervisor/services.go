// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/clickforge/internal/logging"
)

// Runner is anything with a blocking, context-canceled run loop. The
// JetStream consumer implements it.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a Runner to suture.Service.
type RunnerService struct {
	Name   string
	Runner Runner
}

// Serve runs the runner until it stops. A context-canceled exit means
// shutdown, not failure, and is not restarted.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.Runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *RunnerService) String() string { return s.Name }

// HTTPService runs an http.Server under supervision with graceful
// shutdown on context cancellation.
type HTTPService struct {
	Server          *http.Server
	ShutdownTimeout time.Duration
}

// Serve listens until the context is canceled, then shuts down
// gracefully within ShutdownTimeout.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return suture.ErrDoNotRestart
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := s.Server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP shutdown incomplete, closing")
		_ = s.Server.Close()
	}
	return suture.ErrDoNotRestart
}

func (s *HTTPService) String() string { return "http-server" }

// BadgerGCService periodically runs Badger value-log garbage collection.
// Badger never reclaims value-log space on its own, so an embedded
// deployment has to drive GC itself.
type BadgerGCService struct {
	DB       *badger.DB
	Interval time.Duration
}

// Serve runs GC on each tick until the context is canceled.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return suture.ErrDoNotRestart
		case <-ticker.C:
			// Repeat while GC finds garbage; ErrNoRewrite ends the round.
			for {
				if err := s.DB.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Warn().Err(err).Msg("Badger value log GC failed")
					}
					break
				}
			}
		}
	}
}

func (s *BadgerGCService) String() string { return "badger-gc" }
