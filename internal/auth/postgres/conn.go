// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the statement surface shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// poolIface is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type poolIface interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// conn returns the transaction carried by ctx, or pool when there is none.
func conn(ctx context.Context, pool poolIface) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, pgerrcode.UniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgerrcode.ForeignKeyViolation)
}
