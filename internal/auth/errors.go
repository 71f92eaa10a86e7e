// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors returned (wrapped) by repositories and services.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the caller lacks a required role.
	ErrForbidden = errors.New("forbidden")
)

// Error codes attached to oops errors created by this package.
const (
	CodeInvalidMember    = "AUTH_INVALID_MEMBER"
	CodeInvalidReset     = "AUTH_INVALID_RESET"
	CodeForbidden        = "AUTH_FORBIDDEN"
	CodeRoleChangeFailed = "AUTH_ROLE_CHANGE_FAILED"
	CodeTokenGenerate    = "RESET_TOKEN_GENERATE_FAILED"
	CodeSessionUID       = "SESSION_UID_GENERATE_FAILED"
)
