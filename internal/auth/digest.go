// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// ChallengeDigest computes hex(SHA256(uid || passwordHash)).
//
// The client computes the same value from the uid it received on connect and
// its own hash of the password, so neither the password nor its stored hash
// crosses the wire.
func ChallengeDigest(uid, passwordHash string) string {
	sum := sha256.Sum256([]byte(uid + passwordHash))
	return hex.EncodeToString(sum[:])
}

// VerifyChallenge reports whether digest matches the challenge for uid and
// the stored password hash. Hex case is ignored. The comparison is constant time.
func VerifyChallenge(uid, passwordHash, digest string) bool {
	if uid == "" || passwordHash == "" || digest == "" {
		return false
	}
	expected := ChallengeDigest(uid, passwordHash)
	submitted := strings.ToLower(strings.TrimSpace(digest))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}
