// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/gatekeeper/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain starts a PostgreSQL testcontainer and applies the schema.
func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("gatekeeper_test"),
		postgres.WithUsername("gatekeeper"),
		postgres.WithPassword("gatekeeper"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}
	defer func() { _ = container.Terminate(ctx) }()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr, nil)
	if err != nil {
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.NewPool(ctx, store.PoolConfig{URL: connStr, ConnectTries: 5}, nil)
	if err != nil {
		panic("failed to create pool: " + err.Error())
	}
	defer pool.Close()
	testPool = pool

	return m.Run()
}
