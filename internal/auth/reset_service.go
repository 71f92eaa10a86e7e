// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// RequestPasswordReset issues a reset token for the member with email and
// mails it to that address.
//
// The client receives exactly one auth.password_reset_request event. It is
// false when no member has the email, the store fails or the mail cannot be
// queued.
func (s *Service) RequestPasswordReset(ctx context.Context, client Client, email string) bool {
	ctx, span := tracer.Start(ctx, "auth.password_reset_request")
	defer span.End()

	result := s.requestReset(ctx, email)
	ok := result == ResetResultIssued

	span.SetAttributes(attribute.String("auth.result", result))
	recordPasswordReset(ResetPhaseRequest, result)
	s.send(ctx, client, EventPasswordResetRequest, ok)
	return ok
}

func (s *Service) requestReset(ctx context.Context, email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ResetResultRejected
	}

	token, tokenHash, err := GenerateResetToken(s.resetTokenBytes)
	if err != nil {
		errutil.LogError(ctx, s.logger, "reset token generation failed", err)
		return ResetResultError
	}

	reset, err := NewPasswordReset(tokenHash, s.now().Add(s.resetTokenTTL))
	if err != nil {
		errutil.LogError(ctx, s.logger, "reset request invalid", err)
		return ResetResultError
	}

	if err := s.resets.CreateForEmail(ctx, email, reset); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "reset requested for unknown email")
			return ResetResultRejected
		}
		errutil.LogError(ctx, s.logger, "reset request failed",
			oops.Code("RESET_CREATE_FAILED").With("operation", "create reset request").Wrap(err))
		return ResetResultError
	}

	if !s.mail(ctx, email, resetRequestSubject, "Code: "+token) {
		return ResetResultError
	}

	s.logger.InfoContext(ctx, "password reset issued",
		"member_id", reset.MemberID.String(),
		"expires_at", reset.ExpiresAt)
	return ResetResultIssued
}

// ResetPassword replaces the password of the member with email when token
// belongs to one of the member's unexpired reset requests.
//
// The password update and the removal of every reset request of the member
// happen in one transaction. The boolean is the answer to the caller;
// no event is sent.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPasswordHash string) bool {
	ctx, span := tracer.Start(ctx, "auth.password_reset")
	defer span.End()

	result := s.redeemReset(ctx, email, token, newPasswordHash)
	span.SetAttributes(attribute.String("auth.result", result))
	recordPasswordReset(ResetPhaseRedeem, result)
	return result == ResetResultRedeemed
}

func (s *Service) redeemReset(ctx context.Context, email, token, newPasswordHash string) string {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(token) == "" || newPasswordHash == "" {
		return ResetResultRejected
	}

	tokenHash := HashResetToken(token)
	var memberID ulid.ULID
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		id, err := s.members.ReplacePasswordWithToken(ctx, email, tokenHash, newPasswordHash, s.now())
		if err != nil {
			return err
		}
		n, err := s.resets.DeleteByMember(ctx, id)
		if err != nil {
			return oops.Code("RESET_CLEANUP_FAILED").
				With("member_id", id.String()).
				Wrap(err)
		}
		if n == 0 {
			// A concurrent redemption consumed the token first.
			return oops.Code("RESET_CONSUMED").
				With("member_id", id.String()).
				Wrap(ErrNotFound)
		}
		memberID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset rejected: no matching request")
			return ResetResultRejected
		}
		errutil.LogError(ctx, s.logger, "password reset failed", err)
		return ResetResultError
	}

	s.logger.InfoContext(ctx, "password reset redeemed", "member_id", memberID.String())
	s.mail(ctx, email, resetDoneSubject, resetDoneBody)
	return ResetResultRedeemed
}

// PurgeExpiredResets deletes reset requests that have expired and returns
// how many were removed.
func (s *Service) PurgeExpiredResets(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth.purge_expired_resets")
	defer span.End()

	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").
			With("operation", "delete expired reset requests").
			Wrap(err)
	}
	span.SetAttributes(attribute.Int64("auth.purged", n))
	if n > 0 {
		s.logger.InfoContext(ctx, "expired reset requests purged", "count", n)
	}
	return n, nil
}
