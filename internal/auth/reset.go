// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	DefaultResetTokenBytes = 16        // 16 bytes = 32 hex chars
	MinResetTokenBytes     = 4         // floor for human-typable codes
	MaxResetTokenBytes     = 64        // ceiling to keep mail bodies sane
	DefaultResetTokenTTL   = time.Hour // 1 hour expiry
)

// PasswordReset represents an outstanding password reset request.
// Only the hash of the token is kept; the token itself goes out by mail.
type PasswordReset struct {
	ID        ulid.ULID
	MemberID  ulid.ULID // filled in by the repository on create
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset for the given token hash.
func NewPasswordReset(tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	if tokenHash == "" {
		return nil, oops.Code(CodeInvalidReset).Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code(CodeInvalidReset).Errorf("expiry time cannot be zero")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt returns true if the request is expired at t.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// GenerateResetToken creates a random token of n bytes and its hash.
// Returns (plaintext_token, sha256_hash, error). The token is lowercase hex.
func GenerateResetToken(n int) (token, hash string, err error) {
	if n < MinResetTokenBytes || n > MaxResetTokenBytes {
		return "", "", oops.Code(CodeTokenGenerate).
			With("requested_bytes", n).
			Errorf("token size must be between %d and %d bytes", MinResetTokenBytes, MaxResetTokenBytes)
	}

	tokenBytes := make([]byte, n)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code(CodeTokenGenerate).
			With("operation", "crypto/rand.Read").
			With("requested_bytes", n).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the stored form of a token. Tokens are matched
// case-insensitively, so the token is lower-cased before hashing.
func HashResetToken(token string) string {
	normalized := strings.ToLower(strings.TrimSpace(token))
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
func VerifyResetToken(token, hash string) bool {
	if strings.TrimSpace(token) == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(token)), []byte(hash)) == 1
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// CreateForEmail stores reset for the member whose email matches
	// (case-insensitive) and sets reset.MemberID.
	// Returns ErrNotFound if no member has the email.
	CreateForEmail(ctx context.Context, email string, reset *PasswordReset) error

	// DeleteByMember removes every reset request of a member and returns
	// the number removed.
	DeleteByMember(ctx context.Context, memberID ulid.ULID) (int64, error)

	// DeleteExpired removes requests that expired before now and returns
	// the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs fn inside a store transaction. Repository calls made with
// the context passed to fn take part in the transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
