// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/gateway"
	"github.com/holomush/gatekeeper/internal/mail"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of servers and the mail queue.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and auth service",
		Long: `Connects to PostgreSQL, starts the mail workers, the client gateway and
the metrics/health endpoint, and periodically purges expired password
reset requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, logger, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func poolConfig(cfg *config.Config) store.PoolConfig {
	return store.PoolConfig{
		URL:          cfg.Database.URL,
		MaxConns:     cfg.Database.MaxConns,
		ConnectTries: cfg.Database.ConnectRetries,
		RetryBase:    cfg.Database.RetryBase,
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, autoMigrate bool) error {
	url, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}

	if err := prepareSchema(url, logger, autoMigrate); err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, poolConfig(cfg), logger)
	if err != nil {
		return err //nolint:wrapcheck // pool errors carry codes
	}
	defer pool.Close()
	logger.Info("connected to database")

	ms, err := newMailQueue(cfg.Mail, logger)
	if err != nil {
		return err
	}
	defer ms.release()
	queue := ms.queue

	svc, err := auth.NewService(
		postgres.NewMemberRepository(pool),
		postgres.NewRoleRepository(pool),
		postgres.NewPasswordResetRepository(pool),
		postgres.NewTransactor(pool),
		queue,
		serviceOptions(cfg, logger)...,
	)
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	gw, err := gateway.NewServer(cfg.Gateway.Addr, svc,
		gateway.WithLogger(logger),
		gateway.WithWriteTimeout(cfg.Gateway.WriteTimeout))
	if err != nil {
		return err //nolint:wrapcheck // gateway errors carry codes
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue.Start(ctx)

	var obs *observability.Server
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr,
			observability.WithLogger(logger),
			observability.WithReadinessCheck("database", pool.Ping),
			observability.WithReadinessCheck("mail_backlog", ms.ready),
			observability.WithMetrics(auth.RegisterMetrics, mail.RegisterMetrics, gateway.RegisterMetrics))
		obsErrCh, startErr := obs.Start()
		if startErr != nil {
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, logger, obsErrCh, "observability")
	}

	if cfg.Reset.PurgeInterval > 0 {
		go runPurgeLoop(ctx, svc, cfg.Reset.PurgeInterval, logger)
	}

	gwErrCh := make(chan error, 1)
	go func() { gwErrCh <- gw.Run(ctx) }()

	cmd.Println("Gatekeeper started")
	logger.Info("gatekeeper ready", "gateway_addr", cfg.Gateway.Addr, "metrics_addr", cfg.Metrics.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-gwErrCh:
		if runErr != nil {
			errutil.LogError(ctx, logger, "gateway failed", runErr)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if runErr == nil {
		// Run returns after open connections finish.
		select {
		case runErr = <-gwErrCh:
		case <-shutdownCtx.Done():
			logger.Warn("gateway did not stop in time")
		}
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	if err := queue.Close(shutdownCtx); err != nil {
		errutil.LogWarn(shutdownCtx, logger, "mail queue did not drain", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// prepareSchema applies migrations when autoMigrate is set, and otherwise
// warns about pending ones.
func prepareSchema(url string, logger *slog.Logger, autoMigrate bool) error {
	m, err := newMigrator(url, logger)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Debug("closing migrator failed", "error", closeErr)
		}
	}()

	if autoMigrate {
		if err := m.Up(); err != nil {
			return err //nolint:wrapcheck // migrator errors carry codes
		}
	}
	st, err := m.Status()
	if err != nil {
		return err //nolint:wrapcheck // migrator errors carry codes
	}
	if st.Dirty {
		return oops.Code("SCHEMA_DIRTY").With("version", st.Version).
			Errorf("schema is dirty; repair it and run 'gatekeeper migrate force'")
	}
	if len(st.Pending) > 0 {
		logger.Warn("database schema has pending migrations", "version", st.Version, "pending", st.Pending)
	}
	return nil
}

func serviceOptions(cfg *config.Config, logger *slog.Logger) []auth.Option {
	return []auth.Option{
		auth.WithLogger(logger),
		auth.WithThrottle(auth.NewFixedThrottle(cfg.Auth.ThrottleDelay)),
		auth.WithResetTokenBytes(cfg.Reset.TokenBytes),
		auth.WithResetTokenTTL(cfg.Reset.TokenTTL),
	}
}

// newRedisClient creates the client for the Redis mail backlog. Tests
// replace it.
var newRedisClient = func(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// mailStack is the configured mail queue with the backlog's readiness
// check and cleanup.
type mailStack struct {
	queue *mail.Queue
	// ready is nil for the in-memory backlog.
	ready   observability.ReadinessFunc
	release func()
}

// newMailQueue builds the mail queue from config. release frees backlog
// resources and must run after the queue is closed.
func newMailQueue(cfg config.MailConfig, logger *slog.Logger) (*mailStack, error) {
	transport, err := newTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	ms := &mailStack{release: func() {}}
	var backlog mail.Backlog
	switch cfg.Backlog {
	case config.BacklogRedis:
		client := newRedisClient(cfg.Redis)
		rb, rbErr := mail.NewRedisBacklog(client, mail.RedisConfig{
			Key:      cfg.Redis.Key,
			Capacity: int64(cfg.QueueSize),
		})
		if rbErr != nil {
			_ = client.Close()
			return nil, rbErr //nolint:wrapcheck // mail errors carry codes
		}
		backlog = rb
		ms.ready = rb.Ping
		ms.release = func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Debug("closing redis client failed", "error", closeErr)
			}
		}
	default:
		backlog = mail.NewMemoryBacklog(cfg.QueueSize)
	}

	ms.queue, err = mail.NewQueue(mail.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryBase:  cfg.RetryBase,
	}, backlog, transport, logger)
	if err != nil {
		ms.release()
		return nil, err //nolint:wrapcheck // mail errors carry codes
	}
	return ms, nil
}

func newTransport(cfg config.MailConfig, logger *slog.Logger) (mail.Transport, error) {
	if cfg.Transport == config.TransportSMTP {
		t, err := mail.NewSMTPTransport(mail.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // mail errors carry codes
		}
		return t, nil
	}
	return mail.NewLogTransport(logger), nil
}

// resetPurger is the part of auth.Service the purge loop needs.
type resetPurger interface {
	PurgeExpiredResets(ctx context.Context) (int64, error)
}

// runPurgeLoop deletes expired reset requests every interval until ctx is
// done. Failures are logged and retried on the next tick.
func runPurgeLoop(ctx context.Context, p resetPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PurgeExpiredResets(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(ctx, logger, "purging expired reset requests failed", err)
			}
		}
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, errCh <-chan error, name string) {
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed, shutting down", "server", name, "error", err)
			cancel()
		}
	}
}
