// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool poolIface
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool poolIface) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// CreateForEmail stores reset for the member with email and fills in
// reset.MemberID. The member lookup and insert are one statement.
func (r *PasswordResetRepository) CreateForEmail(ctx context.Context, email string, reset *auth.PasswordReset) error {
	var memberIDStr string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO password_reset_request (id, member_id, token_hash, expires_at, created_at)
		SELECT $1, id, $2, $3, $4 FROM member WHERE lower(email) = lower($5)
		RETURNING member_id
	`, reset.ID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt, email).Scan(&memberIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("MEMBER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_request").
			With("reset_id", reset.ID.String()).
			Wrap(err)
	}

	memberID, err := ulid.Parse(memberIDStr)
	if err != nil {
		return oops.Code("RESET_INVALID_MEMBER_ID").
			With("operation", "parse member id").
			With("member_id", memberIDStr).
			Wrap(err)
	}
	reset.MemberID = memberID
	return nil
}

// DeleteByMember removes all reset requests for a member.
func (r *PasswordResetRepository) DeleteByMember(ctx context.Context, memberID ulid.ULID) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM password_reset_request WHERE member_id = $1
	`, memberID.String())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_BY_MEMBER_FAILED").
			With("operation", "delete password_reset_request by member").
			With("member_id", memberID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes all reset requests expired at now and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM password_reset_request WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_reset_request").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
