// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import "encoding/json"

// Operation names accepted in requests.
const (
	OpAuthenticate         = "authenticate"
	OpRegister             = "register"
	OpPasswordResetRequest = "password_reset_request"
	OpPasswordReset        = "password_reset"
	OpBan                  = "ban"
	OpUnban                = "unban"
)

// Error strings sent to clients. Internal detail never leaves the server.
const (
	errMalformed    = "malformed request"
	errBadArgs      = "invalid arguments"
	errUnknownOp    = "unknown op"
	errForbidden    = "forbidden"
	errNotFound     = "not found"
	errInternal     = "internal error"
	errLineTooLong  = "request too large"
	maxRequestBytes = 64 * 1024
)

// request is one inbound line.
type request struct {
	ID   json.RawMessage `json:"id,omitempty"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// reply answers a request by id.
type reply struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// event is an unsolicited message.
type event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type welcomePayload struct {
	UID string `json:"uid"`
}

type authenticateArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerArgs struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequestArgs struct {
	Email string `json:"email"`
}

type resetArgs struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type memberArgs struct {
	MemberID string `json:"member_id"`
}
