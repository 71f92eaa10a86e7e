// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/gateway")

// Authority is the set of auth operations the gateway routes to.
// *auth.Service satisfies it.
type Authority interface {
	Authenticate(ctx context.Context, client auth.Client, session auth.ClientSession, email, digest string) (auth.ClientSession, bool)
	Register(ctx context.Context, client auth.Client, session auth.ClientSession, handle, email, passwordHash string) (auth.ClientSession, bool)
	RequestPasswordReset(ctx context.Context, client auth.Client, email string) bool
	ResetPassword(ctx context.Context, email, token, newPasswordHash string) bool
	Ban(ctx context.Context, caller auth.ClientSession, memberID ulid.ULID) error
	Unban(ctx context.Context, caller auth.ClientSession, memberID ulid.ULID) error
}

var _ Authority = (*auth.Service)(nil)

// handlerFunc runs one op. It returns the status label for metrics.
type handlerFunc func(c *conn, ctx context.Context, req request) string

var handlers = map[string]handlerFunc{
	OpAuthenticate:         (*conn).handleAuthenticate,
	OpRegister:             (*conn).handleRegister,
	OpPasswordResetRequest: (*conn).handleResetRequest,
	OpPasswordReset:        (*conn).handleReset,
	OpBan:                  (*conn).handleBan,
	OpUnban:                (*conn).handleUnban,
}

func (c *conn) dispatch(ctx context.Context, req request) {
	h, ok := handlers[req.Op]
	if !ok {
		Requests.WithLabelValues("unknown", StatusInvalid).Inc()
		c.logger.DebugContext(ctx, "unknown op", "op", req.Op)
		c.reply(reply{ID: req.ID, Error: errUnknownOp})
		return
	}

	ctx, span := tracer.Start(ctx, "gateway."+req.Op)
	defer span.End()
	span.SetAttributes(attribute.String("gateway.op", req.Op))

	status := h(c, ctx, req)
	span.SetAttributes(attribute.String("gateway.status", status))
	if status == StatusError {
		span.SetStatus(codes.Error, "request failed")
	}
	Requests.WithLabelValues(req.Op, status).Inc()
}

// decodeArgs unmarshals req.Args into dst, replying with an error on failure.
func (c *conn) decodeArgs(req request, dst any) bool {
	if len(req.Args) == 0 {
		c.reply(reply{ID: req.ID, Error: errBadArgs})
		return false
	}
	if err := json.Unmarshal(req.Args, dst); err != nil {
		c.reply(reply{ID: req.ID, Error: errBadArgs})
		return false
	}
	return true
}

func (c *conn) handleAuthenticate(ctx context.Context, req request) string {
	var args authenticateArgs
	if !c.decodeArgs(req, &args) {
		return StatusInvalid
	}
	session, _ := c.authority.Authenticate(ctx, c, c.session, args.Email, args.Password)
	c.session = session
	return StatusOK
}

func (c *conn) handleRegister(ctx context.Context, req request) string {
	var args registerArgs
	if !c.decodeArgs(req, &args) {
		return StatusInvalid
	}
	session, _ := c.authority.Register(ctx, c, c.session, args.Handle, args.Email, args.Password)
	c.session = session
	return StatusOK
}

func (c *conn) handleResetRequest(ctx context.Context, req request) string {
	var args resetRequestArgs
	if !c.decodeArgs(req, &args) {
		return StatusInvalid
	}
	c.authority.RequestPasswordReset(ctx, c, args.Email)
	return StatusOK
}

func (c *conn) handleReset(ctx context.Context, req request) string {
	var args resetArgs
	if !c.decodeArgs(req, &args) {
		return StatusInvalid
	}
	ok := c.authority.ResetPassword(ctx, args.Email, args.Token, args.Password)
	c.reply(reply{ID: req.ID, Result: ok})
	return StatusOK
}

func (c *conn) handleBan(ctx context.Context, req request) string {
	return c.handleRoleChange(ctx, req, c.authority.Ban)
}

func (c *conn) handleUnban(ctx context.Context, req request) string {
	return c.handleRoleChange(ctx, req, c.authority.Unban)
}

func (c *conn) handleRoleChange(
	ctx context.Context,
	req request,
	apply func(context.Context, auth.ClientSession, ulid.ULID) error,
) string {
	// Callers without Operator are refused before their arguments are
	// looked at; the authority records the refusal.
	if !c.session.HasRole(auth.RoleOperator) {
		var args memberArgs
		_ = json.Unmarshal(req.Args, &args)
		// A malformed target is refused the same way, as the zero id.
		id, _ := ulid.Parse(args.MemberID)
		return c.applyRoleChange(ctx, req, apply, id)
	}

	var args memberArgs
	if !c.decodeArgs(req, &args) {
		return StatusInvalid
	}
	id, err := ulid.Parse(args.MemberID)
	if err != nil {
		c.reply(reply{ID: req.ID, Error: errBadArgs})
		return StatusInvalid
	}
	return c.applyRoleChange(ctx, req, apply, id)
}

func (c *conn) applyRoleChange(
	ctx context.Context,
	req request,
	apply func(context.Context, auth.ClientSession, ulid.ULID) error,
	id ulid.ULID,
) string {
	if err := apply(ctx, c.session, id); err != nil {
		switch {
		case errors.Is(err, auth.ErrForbidden):
			c.reply(reply{ID: req.ID, Error: errForbidden})
		case errors.Is(err, auth.ErrNotFound):
			c.reply(reply{ID: req.ID, Error: errNotFound})
		default:
			errutil.LogError(ctx, c.logger, "role change request failed", err, "op", req.Op)
			c.reply(reply{ID: req.ID, Error: errInternal})
		}
		return StatusError
	}
	c.reply(reply{ID: req.ID, Result: true})
	return StatusOK
}
