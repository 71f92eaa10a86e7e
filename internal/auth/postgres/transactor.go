// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// Transactor implements auth.Transactor on a connection pool.
// It stores the active pgx.Tx in the context so that repository calls made
// inside fn run in the same transaction.
type Transactor struct {
	pool poolIface
}

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(pool poolIface) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil, the transaction is committed. Otherwise it is rolled back.
// Nested calls join the outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
