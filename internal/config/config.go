// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads gatekeeper configuration from a YAML file and
// command-line flags.
package config

import (
	"time"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/mail"
)

// Mail transports.
const (
	TransportLog  = "log"
	TransportSMTP = "smtp"
)

// Mail backlogs.
const (
	BacklogMemory = "memory"
	BacklogRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	Gateway  GatewayConfig  `koanf:"gateway"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Reset    ResetConfig    `koanf:"reset"`
	Mail     MailConfig     `koanf:"mail"`
}

// GatewayConfig configures the client listener.
type GatewayConfig struct {
	Addr         string        `koanf:"addr"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MetricsConfig configures the metrics and health endpoint. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	RetryBase      time.Duration `koanf:"retry_base"`
}

// AuthConfig configures credential verification.
type AuthConfig struct {
	ThrottleDelay time.Duration `koanf:"throttle_delay"`
}

// ResetConfig configures the password reset workflow. A zero purge
// interval disables the periodic purge.
type ResetConfig struct {
	TokenBytes    int           `koanf:"token_bytes"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// MailConfig configures outbound mail.
type MailConfig struct {
	Transport  string        `koanf:"transport"`
	From       string        `koanf:"from"`
	Backlog    string        `koanf:"backlog"`
	QueueSize  int           `koanf:"queue_size"`
	Workers    int           `koanf:"workers"`
	MaxRetries uint64        `koanf:"max_retries"`
	RetryBase  time.Duration `koanf:"retry_base"`
	SMTP       SMTPConfig    `koanf:"smtp"`
	Redis      RedisConfig   `koanf:"redis"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// RedisConfig configures the Redis mail backlog.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Key      string `koanf:"key"`
}

// Default returns the built-in configuration.
func Default() Config {
	q := mail.DefaultQueueConfig()
	return Config{
		Gateway: GatewayConfig{
			Addr:         "127.0.0.1:4201",
			WriteTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectRetries: 5,
			RetryBase:      250 * time.Millisecond,
		},
		Auth: AuthConfig{
			ThrottleDelay: auth.DefaultThrottleDelay,
		},
		Reset: ResetConfig{
			TokenBytes:    auth.DefaultResetTokenBytes,
			TokenTTL:      auth.DefaultResetTokenTTL,
			PurgeInterval: 10 * time.Minute,
		},
		Mail: MailConfig{
			Transport:  TransportLog,
			From:       "gatekeeper@localhost",
			Backlog:    BacklogMemory,
			QueueSize:  256,
			Workers:    q.Workers,
			MaxRetries: q.MaxRetries,
			RetryBase:  q.RetryBase,
			Redis: RedisConfig{
				Key: mail.DefaultRedisKey,
			},
		},
	}
}
