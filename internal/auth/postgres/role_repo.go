// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// RoleRepository implements auth.RoleRepository using PostgreSQL.
type RoleRepository struct {
	pool poolIface
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool poolIface) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// Grant associates role with a member. Existing grants are left alone.
func (r *RoleRepository) Grant(ctx context.Context, memberID ulid.ULID, role auth.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO member_role (member_id, role_id)
		SELECT $1, id FROM role WHERE name = $2
		ON CONFLICT DO NOTHING
	`, memberID.String(), string(role))
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("MEMBER_NOT_FOUND").
				With("member_id", memberID.String()).
				Wrap(auth.ErrNotFound)
		}
		return oops.Code("ROLE_GRANT_FAILED").
			With("operation", "insert member_role").
			With("member_id", memberID.String()).
			With("role", string(role)).
			Wrap(err)
	}
	return nil
}

// Revoke removes role from a member.
func (r *RoleRepository) Revoke(ctx context.Context, memberID ulid.ULID, role auth.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM member_role
		WHERE member_id = $1 AND role_id = (SELECT id FROM role WHERE name = $2)
	`, memberID.String(), string(role))
	if err != nil {
		return oops.Code("ROLE_REVOKE_FAILED").
			With("operation", "delete member_role").
			With("member_id", memberID.String()).
			With("role", string(role)).
			Wrap(err)
	}
	return nil
}

// ListByMember returns the roles granted to a member.
func (r *RoleRepository) ListByMember(ctx context.Context, memberID ulid.ULID) (auth.RoleSet, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT r.name
		FROM member_role mr
		JOIN role r ON r.id = mr.role_id
		WHERE mr.member_id = $1
	`, memberID.String())
	if err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").
			With("operation", "list member roles").
			With("member_id", memberID.String()).
			Wrap(err)
	}
	defer rows.Close()

	set := auth.RoleSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.Code("ROLE_SCAN_FAILED").
				With("member_id", memberID.String()).
				Wrap(err)
		}
		set[auth.Role(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_QUERY_FAILED").
			With("operation", "iterate member roles").
			With("member_id", memberID.String()).
			Wrap(err)
	}
	return set, nil
}

// Ensure creates role if it does not exist yet.
func (r *RoleRepository) Ensure(ctx context.Context, role auth.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO role (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, ulid.Make().String(), string(role))
	if err != nil {
		return oops.Code("ROLE_ENSURE_FAILED").
			With("operation", "insert role").
			With("role", string(role)).
			Wrap(err)
	}
	return nil
}

var _ auth.RoleRepository = (*RoleRepository)(nil)
