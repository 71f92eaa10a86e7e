// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Member represents an account record.
type Member struct {
	ID           ulid.ULID
	Handle       string
	Email        string
	PasswordHash string
	Roles        RoleSet
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMember creates a validated Member ready to be stored.
// passwordHash is an opaque pre-hashed value; cleartext never reaches this package.
func NewMember(handle, email, passwordHash string) (*Member, error) {
	handle = strings.TrimSpace(handle)
	email = strings.TrimSpace(email)
	if handle == "" {
		return nil, oops.Code(CodeInvalidMember).Errorf("handle cannot be empty")
	}
	if email == "" {
		return nil, oops.Code(CodeInvalidMember).Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidMember).Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Member{
		ID:           ulid.Make(),
		Handle:       handle,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        RoleSet{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile returns the public view of the member sent to an authenticated client.
func (m *Member) Profile() Profile {
	return Profile{
		ID:     m.ID,
		Handle: m.Handle,
		Roles:  m.Roles.Clone(),
	}
}

// Profile is the member information reported on successful authentication.
type Profile struct {
	ID     ulid.ULID `json:"id"`
	Handle string    `json:"handle"`
	Roles  RoleSet   `json:"roles"`
}

// MemberRepository manages member persistence.
type MemberRepository interface {
	// GetByEmail retrieves a member by email (case-insensitive) together
	// with every role granted to it.
	// Returns ErrNotFound if no member has the given email.
	GetByEmail(ctx context.Context, email string) (*Member, error)

	// Create stores a new member.
	// Returns ErrConflict if the handle or email is already taken.
	Create(ctx context.Context, member *Member) error

	// ReplacePasswordWithToken sets a new password hash on the member whose
	// email matches (case-insensitive) and who holds a reset request with
	// tokenHash that has not expired at now. Returns the member's ID.
	// Returns ErrNotFound if no such member and request exist.
	ReplacePasswordWithToken(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error)
}
