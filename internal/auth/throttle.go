// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultThrottleDelay is the pause applied to every failed authentication.
const DefaultThrottleDelay = 3 * time.Second

// Throttle slows down the failure path of authentication.
type Throttle interface {
	// Wait blocks for the throttle period. Implementations must not return
	// early when ctx is cancelled.
	Wait(ctx context.Context)
}

// FixedThrottle waits a constant delay on every call. It keeps no state
// between calls, so there is no lockout counter to reset or exhaust.
type FixedThrottle struct {
	delay time.Duration
}

// NewFixedThrottle creates a FixedThrottle. A non-positive delay disables waiting.
func NewFixedThrottle(delay time.Duration) *FixedThrottle {
	return &FixedThrottle{delay: delay}
}

// Delay returns the configured delay.
func (t *FixedThrottle) Delay() time.Duration {
	return t.delay
}

// Wait sleeps for the full delay regardless of ctx cancellation.
func (t *FixedThrottle) Wait(ctx context.Context) {
	if t.delay <= 0 {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("auth.throttle",
		trace.WithAttributes(attribute.String("delay", t.delay.String())))

	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	<-timer.C
}
