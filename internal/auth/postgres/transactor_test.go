// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestTransactor_InTransaction(t *testing.T) {
	memberID := ulid.Make()
	now := time.Now()

	t.Run("commits and routes repository calls through the transaction", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE member m`).
			WithArgs("a@x.com", "tokenhash", "H2", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(memberID.String()))
		mock.ExpectExec(`DELETE FROM password_reset_request`).
			WithArgs(memberID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		members := NewMemberRepository(mock)
		resets := NewPasswordResetRepository(mock)
		err := NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
			id, err := members.ReplacePasswordWithToken(ctx, "a@x.com", "tokenhash", "H2", now)
			if err != nil {
				return err
			}
			_, err = resets.DeleteByMember(ctx, id)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("cleanup failed")
		err := NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		errutil.AssertErrorCode(t, err, "TX_BEGIN_FAILED")
		assert.False(t, called)
	})

	t.Run("commit failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
			return nil
		})
		errutil.AssertErrorCode(t, err, "TX_COMMIT_FAILED")
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		tx := NewTransactor(mock)
		err := tx.InTransaction(context.Background(), func(ctx context.Context) error {
			return tx.InTransaction(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
