// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gateway exposes the auth service over TCP.
//
// The protocol is newline-delimited JSON. On connect the server sends an
// auth.welcome event carrying the connection uid. Each request names an op
// and its args; handler ops answer with events, callable ops reply to the
// request id.
package gateway
