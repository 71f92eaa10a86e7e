// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Outbound event names.
const (
	EventWelcome              = "auth.welcome"
	EventBanned               = "auth.banned"
	EventAuthenticate         = "auth.authenticate"
	EventInfo                 = "auth.info"
	EventRegister             = "auth.register"
	EventPasswordResetRequest = "auth.password_reset_request"
)

// Client is the originating connection of a request.
type Client interface {
	// Send delivers a named event with a JSON-encodable payload.
	Send(ctx context.Context, event string, payload any) error
}

// Mailer queues outbound mail. Send only enqueues; delivery is not confirmed.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
