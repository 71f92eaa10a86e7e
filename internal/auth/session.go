// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionUIDBytes is the number of random bytes in a connection uid (32 hex chars).
const SessionUIDBytes = 16

// ClientSession is the authentication state of one client connection.
//
// The zero value is an anonymous session without a uid. Fields are exported
// for reading; state changes go through the With* methods, which return a new
// value and leave the receiver untouched.
type ClientSession struct {
	// UID is issued to the client when it connects and is the server half
	// of the challenge digest.
	UID string

	// MemberID is set after registration or successful authentication.
	MemberID ulid.ULID

	// Roles is a snapshot of the member's roles at verification time.
	Roles RoleSet

	// Authenticated is true only after a successful Authenticate.
	Authenticated bool
}

// NewSessionUID returns a fresh unpredictable connection uid.
func NewSessionUID() (string, error) {
	b := make([]byte, SessionUIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code(CodeSessionUID).
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionUIDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// NewClientSession creates an anonymous session for a connection that was
// issued uid.
func NewClientSession(uid string) ClientSession {
	return ClientSession{UID: uid}
}

// WithAuthenticated returns the session after a successful verification of p.
// The role set is copied so later changes to p do not leak into the session.
func (s ClientSession) WithAuthenticated(p Profile) ClientSession {
	return ClientSession{
		UID:           s.UID,
		MemberID:      p.ID,
		Roles:         p.Roles.Clone(),
		Authenticated: true,
	}
}

// WithMember returns the session with a newly registered member attached.
// Registration does not authenticate the connection.
func (s ClientSession) WithMember(id ulid.ULID) ClientSession {
	return ClientSession{
		UID:      s.UID,
		MemberID: id,
	}
}

// WithoutAuthentication returns the session after a failed verification.
// Any previous authentication and role snapshot is dropped.
func (s ClientSession) WithoutAuthentication() ClientSession {
	return ClientSession{
		UID:      s.UID,
		MemberID: s.MemberID,
	}
}

// HasRole reports whether the session is authenticated and holds r.
func (s ClientSession) HasRole(r Role) bool {
	return s.Authenticated && s.Roles.Has(r)
}
