// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mail queues outbound mail and delivers it in the background.
//
// Queue implements auth.Mailer: Send only enqueues. A fixed pool of workers
// takes messages off the backlog (an in-process channel or a Redis list)
// and hands them to a Transport, retrying failed deliveries with
// exponential backoff.
package mail
