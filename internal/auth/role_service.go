// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// Role change actions.
const (
	actionBan   = "ban"
	actionUnban = "unban"
)

// Ban grants the Banned role to memberID. The caller session must be an
// authenticated Operator. Banning an already banned member succeeds.
// Sessions the target already holds are not affected.
func (s *Service) Ban(ctx context.Context, caller ClientSession, memberID ulid.ULID) error {
	return s.changeRole(ctx, actionBan, caller, memberID, func(ctx context.Context) error {
		return s.roles.Grant(ctx, memberID, RoleBanned)
	})
}

// Unban removes the Banned role from memberID. The caller session must be an
// authenticated Operator. Unbanning a member who is not banned succeeds.
func (s *Service) Unban(ctx context.Context, caller ClientSession, memberID ulid.ULID) error {
	return s.changeRole(ctx, actionUnban, caller, memberID, func(ctx context.Context) error {
		return s.roles.Revoke(ctx, memberID, RoleBanned)
	})
}

func (s *Service) changeRole(
	ctx context.Context,
	action string,
	caller ClientSession,
	target ulid.ULID,
	apply func(ctx context.Context) error,
) error {
	ctx, span := tracer.Start(ctx, "auth."+action)
	defer span.End()
	span.SetAttributes(attribute.String("member.target", target.String()))

	if !caller.HasRole(RoleOperator) {
		err := oops.Code(CodeForbidden).
			With("action", action).
			With("caller_member_id", caller.MemberID.String()).
			With("target_member_id", target.String()).
			Wrap(ErrForbidden)
		errutil.LogWarn(ctx, s.logger, "role change refused", err)
		span.SetStatus(codes.Error, "forbidden")
		recordRoleChange(action, RoleChangeForbidden)
		return err
	}

	if err := apply(ctx); err != nil {
		wrapped := oops.Code(CodeRoleChangeFailed).
			With("action", action).
			With("target_member_id", target.String()).
			Wrap(err)
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "role change target not found",
				"action", action, "target_member_id", target.String())
		} else {
			errutil.LogError(ctx, s.logger, "role change failed", wrapped)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordRoleChange(action, RoleChangeError)
		return wrapped
	}

	s.logger.InfoContext(ctx, "role changed",
		"action", action,
		"caller_member_id", caller.MemberID.String(),
		"target_member_id", target.String())
	recordRoleChange(action, RoleChangeApplied)
	return nil
}
