// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/logging"
)

func invalid(field string, value any, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		With("value", value).
		Errorf(format, args...)
}

// Validate checks ranges and cross-field requirements. It reports the
// first problem found.
func (c *Config) Validate() error {
	if c.Gateway.Addr == "" {
		return invalid("gateway.addr", c.Gateway.Addr, "gateway.addr is required")
	}
	if c.Gateway.WriteTimeout < 0 {
		return invalid("gateway.write_timeout", c.Gateway.WriteTimeout.String(), "gateway.write_timeout must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", c.Database.MaxConns, "database.max_conns must not be negative")
	}
	if c.Auth.ThrottleDelay <= 0 {
		return invalid("auth.throttle_delay", c.Auth.ThrottleDelay.String(), "auth.throttle_delay must be positive")
	}
	if c.Reset.TokenBytes < auth.MinResetTokenBytes || c.Reset.TokenBytes > auth.MaxResetTokenBytes {
		return invalid("reset.token_bytes", c.Reset.TokenBytes,
			"reset.token_bytes must be between %d and %d", auth.MinResetTokenBytes, auth.MaxResetTokenBytes)
	}
	if c.Reset.TokenTTL <= 0 {
		return invalid("reset.token_ttl", c.Reset.TokenTTL.String(), "reset.token_ttl must be positive")
	}
	if c.Reset.PurgeInterval < 0 {
		return invalid("reset.purge_interval", c.Reset.PurgeInterval.String(), "reset.purge_interval must not be negative")
	}
	return c.Mail.validate()
}

func (m *MailConfig) validate() error {
	switch m.Transport {
	case TransportLog:
	case TransportSMTP:
		if m.SMTP.Addr == "" {
			return invalid("mail.smtp.addr", m.SMTP.Addr, "mail.smtp.addr is required for the smtp transport")
		}
		if m.From == "" {
			return invalid("mail.from", m.From, "mail.from is required for the smtp transport")
		}
	default:
		return invalid("mail.transport", m.Transport, "mail.transport must be 'log' or 'smtp', got %q", m.Transport)
	}

	switch m.Backlog {
	case BacklogMemory:
	case BacklogRedis:
		if m.Redis.Addr == "" {
			return invalid("mail.redis.addr", m.Redis.Addr, "mail.redis.addr is required for the redis backlog")
		}
	default:
		return invalid("mail.backlog", m.Backlog, "mail.backlog must be 'memory' or 'redis', got %q", m.Backlog)
	}

	if m.QueueSize <= 0 {
		return invalid("mail.queue_size", m.QueueSize, "mail.queue_size must be positive")
	}
	if m.Workers <= 0 {
		return invalid("mail.workers", m.Workers, "mail.workers must be positive")
	}
	if m.RetryBase <= 0 {
		return invalid("mail.retry_base", m.RetryBase.String(), "mail.retry_base must be positive")
	}
	return nil
}
