// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories.
//
// Repositories run each call as a single statement on the pool, or on the
// transaction stored in the context by Transactor.InTransaction.
package postgres
