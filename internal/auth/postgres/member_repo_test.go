// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var memberColumns = []string{"id", "handle", "email", "password", "created_at", "updated_at", "roles"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestMemberRepository_GetByEmail(t *testing.T) {
	id := ulid.Make()
	now := time.Now().UTC()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantRoles auth.RoleSet
		wantErr   error
		wantCode  string
	}{
		{
			name: "member with roles",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM member m\s+LEFT JOIN member_role`).
					WithArgs("A@x.com").
					WillReturnRows(pgxmock.NewRows(memberColumns).
						AddRow(id.String(), "alice", "a@x.com", "H", now, now, "Banned,Operator"))
			},
			wantRoles: auth.NewRoleSet(auth.RoleOperator, auth.RoleBanned),
		},
		{
			name: "member without roles",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM member m`).
					WithArgs("A@x.com").
					WillReturnRows(pgxmock.NewRows(memberColumns).
						AddRow(id.String(), "alice", "a@x.com", "H", now, now, ""))
			},
			wantRoles: auth.RoleSet{},
		},
		{
			name: "unknown email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM member m`).
					WithArgs("A@x.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "MEMBER_NOT_FOUND",
		},
		{
			name: "query failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM member m`).
					WithArgs("A@x.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "MEMBER_QUERY_FAILED",
		},
		{
			name: "corrupt id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM member m`).
					WithArgs("A@x.com").
					WillReturnRows(pgxmock.NewRows(memberColumns).
						AddRow("not-a-ulid", "alice", "a@x.com", "H", now, now, ""))
			},
			wantCode: "MEMBER_INVALID_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)
			repo := NewMemberRepository(mock)

			member, err := repo.GetByEmail(context.Background(), "A@x.com")
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, member.ID)
				assert.Equal(t, "alice", member.Handle)
				assert.Equal(t, "H", member.PasswordHash)
				assert.True(t, tt.wantRoles.Equal(member.Roles), "roles %v", member.Roles.Sorted())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMemberRepository_Create(t *testing.T) {
	member, err := auth.NewMember("alice", "a@x.com", "H")
	require.NoError(t, err)

	t.Run("inserts member", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO member`).
			WithArgs(member.ID.String(), "alice", "a@x.com", "H", member.CreatedAt, member.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewMemberRepository(mock).Create(context.Background(), member))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO member`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "member_handle_key"})

		err := NewMemberRepository(mock).Create(context.Background(), member)
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorCode(t, err, "MEMBER_CONFLICT")
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO member`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		err := NewMemberRepository(mock).Create(context.Background(), member)
		assert.NotErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorCode(t, err, "MEMBER_CREATE_FAILED")
	})
}

func TestMemberRepository_ReplacePasswordWithToken(t *testing.T) {
	id := ulid.Make()
	now := time.Now()

	t.Run("updates when token matches", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE member m\s+SET password = \$3`).
			WithArgs("a@x.com", "tokenhash", "H2", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id.String()))

		got, err := NewMemberRepository(mock).ReplacePasswordWithToken(context.Background(), "a@x.com", "tokenhash", "H2", now)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching request", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE member m`).
			WithArgs("a@x.com", "tokenhash", "H2", now).
			WillReturnError(pgx.ErrNoRows)

		_, err := NewMemberRepository(mock).ReplacePasswordWithToken(context.Background(), "a@x.com", "tokenhash", "H2", now)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "RESET_NOT_FOUND")
	})

	t.Run("update failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE member m`).
			WithArgs("a@x.com", "tokenhash", "H2", now).
			WillReturnError(errors.New("deadlock detected"))

		_, err := NewMemberRepository(mock).ReplacePasswordWithToken(context.Background(), "a@x.com", "tokenhash", "H2", now)
		errutil.AssertErrorCode(t, err, "MEMBER_PASSWORD_UPDATE_FAILED")
	})
}
