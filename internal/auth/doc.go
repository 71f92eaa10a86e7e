// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth is the credential and session authority for Gatekeeper.
//
// # Domain Types
//
//   - Member - an account record with its granted roles
//   - RoleSet - the set of role names granted to a member
//   - ClientSession - per-connection session state, changed only through its
//     With* transition methods
//   - PasswordReset - an outstanding reset request, stored by token hash
//
// # Operations
//
// Service implements the operations exposed to connected clients:
//   - Authenticate - challenge-response verification against the stored hash
//   - Register - create a member from a pre-hashed password
//   - RequestPasswordReset / ResetPassword - the two reset phases
//   - Ban / Unban - Operator-gated role changes
//
// Client-facing operations always resolve to a boolean outcome. Store and
// delivery failures are logged but never returned to the client, so unknown
// accounts, wrong credentials and infrastructure errors look the same from the
// outside.
package auth
