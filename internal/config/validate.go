// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is complete and internally
// consistent. Struct tags carry the per-field rules; cross-field rules
// that tags cannot express are checked by hand afterwards.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q rule", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateNATS() error {
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("nats.url must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.NATS.Embedded && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required when nats.embedded is true")
	}
	if c.NATS.AckWait <= c.NATS.FetchMaxWait {
		return fmt.Errorf("nats.ack_wait (%s) must exceed nats.fetch_max_wait (%s)",
			c.NATS.AckWait, c.NATS.FetchMaxWait)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	if c.Pipeline.SessionTTL <= c.Pipeline.SessionIdleTimeout {
		return fmt.Errorf("pipeline.session_ttl (%s) must exceed pipeline.session_idle_timeout (%s)",
			c.Pipeline.SessionTTL, c.Pipeline.SessionIdleTimeout)
	}
	return nil
}
