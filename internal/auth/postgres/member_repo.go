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

// MemberRepository implements auth.MemberRepository using PostgreSQL.
type MemberRepository struct {
	pool poolIface
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(pool poolIface) *MemberRepository {
	return &MemberRepository{pool: pool}
}

const selectMemberByEmail = `
	SELECT m.id, m.handle, m.email, m.password, m.created_at, m.updated_at,
	       COALESCE(string_agg(r.name, ',' ORDER BY r.name), '') AS roles
	FROM member m
	LEFT JOIN member_role mr ON mr.member_id = m.id
	LEFT JOIN role r ON r.id = mr.role_id
	WHERE lower(m.email) = lower($1)
	GROUP BY m.id`

// GetByEmail retrieves a member and its roles by email (case-insensitive).
// A member without roles is returned with an empty role set.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*auth.Member, error) {
	var (
		idStr     string
		member    auth.Member
		roleList  string
		createdAt time.Time
		updatedAt time.Time
	)
	err := conn(ctx, r.pool).QueryRow(ctx, selectMemberByEmail, email).Scan(
		&idStr, &member.Handle, &member.Email, &member.PasswordHash, &createdAt, &updatedAt, &roleList)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MEMBER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("MEMBER_QUERY_FAILED").
			With("operation", "select member by email").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("MEMBER_INVALID_ID").
			With("operation", "parse member id").
			With("id", idStr).
			Wrap(err)
	}
	member.ID = id
	member.Roles = auth.ParseRoleList(roleList)
	member.CreatedAt = createdAt
	member.UpdatedAt = updatedAt
	return &member, nil
}

// Create stores a new member. Duplicate handle or email yields auth.ErrConflict.
func (r *MemberRepository) Create(ctx context.Context, member *auth.Member) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO member (id, handle, email, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, member.ID.String(), member.Handle, member.Email, member.PasswordHash, member.CreatedAt, member.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("MEMBER_CONFLICT").
				With("handle", member.Handle).
				Wrap(auth.ErrConflict)
		}
		return oops.Code("MEMBER_CREATE_FAILED").
			With("operation", "insert member").
			With("member_id", member.ID.String()).
			Wrap(err)
	}
	return nil
}

// ReplacePasswordWithToken sets a new password on the member with email if
// one of its reset requests carries tokenHash and is unexpired at now.
func (r *MemberRepository) ReplacePasswordWithToken(
	ctx context.Context,
	email, tokenHash, passwordHash string,
	now time.Time,
) (ulid.ULID, error) {
	var idStr string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE member m
		SET password = $3, updated_at = $4
		WHERE lower(m.email) = lower($1)
		  AND EXISTS (
		      SELECT 1 FROM password_reset_request p
		      WHERE p.member_id = m.id AND p.token_hash = $2 AND p.expires_at > $4
		  )
		RETURNING m.id
	`, email, tokenHash, passwordHash, now).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("MEMBER_PASSWORD_UPDATE_FAILED").
			With("operation", "update member password").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("MEMBER_INVALID_ID").
			With("operation", "parse member id").
			With("id", idStr).
			Wrap(err)
	}
	return id, nil
}

var _ auth.MemberRepository = (*MemberRepository)(nil)
