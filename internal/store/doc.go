// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the credential store schema and connection setup.
//
// The schema ships as embedded golang-migrate migrations. NewPool opens the
// pgx connection pool used by the auth/postgres repositories.
package store
