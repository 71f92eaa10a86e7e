// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls connection pool construction.
type PoolConfig struct {
	URL          string
	MaxConns     int32
	ConnectTries uint64
	RetryBase    time.Duration
}

// NewPool opens a pgx pool and waits until the database answers a ping.
// The ping is retried with exponential backoff, ConnectTries times at most.
func NewPool(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	base := cfg.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(cfg.ConnectTries, retry.NewExponential(base))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
