// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for authentication attempts.
const (
	AuthResultSuccess = "success"
	AuthResultFailure = "failure"
	AuthResultBanned  = "banned"
	AuthResultError   = "error"
)

// Outcome labels for registrations.
const (
	RegisterResultCreated  = "created"
	RegisterResultConflict = "conflict"
	RegisterResultInvalid  = "invalid"
	RegisterResultError    = "error"
)

// Outcome labels for the password reset phases.
const (
	ResetPhaseRequest = "request"
	ResetPhaseRedeem  = "redeem"

	ResetResultIssued   = "issued"
	ResetResultRedeemed = "redeemed"
	ResetResultRejected = "rejected"
	ResetResultError    = "error"
)

// Outcome labels for role changes.
const (
	RoleChangeApplied   = "applied"
	RoleChangeForbidden = "forbidden"
	RoleChangeError     = "error"
)

// AuthAttempts counts authentication attempts by result.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_auth_attempts_total",
		Help: "Total number of authentication attempts by result",
	},
	[]string{"result"},
)

// AuthDuration observes authentication latency, throttle delay included.
var AuthDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gatekeeper_auth_duration_seconds",
		Help:    "Authentication duration in seconds, including throttling",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"result"},
)

// Registrations counts registration attempts by result.
var Registrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_registrations_total",
		Help: "Total number of registration attempts by result",
	},
	[]string{"result"},
)

// PasswordResets counts password reset operations by phase and result.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_password_resets_total",
		Help: "Total number of password reset operations by phase and result",
	},
	[]string{"phase", "result"},
)

// RoleChanges counts ban/unban operations by action and result.
var RoleChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_role_changes_total",
		Help: "Total number of role changes by action and result",
	},
	[]string{"action", "result"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(AuthDuration)
	reg.MustRegister(Registrations)
	reg.MustRegister(PasswordResets)
	reg.MustRegister(RoleChanges)
}

func recordAuthAttempt(result string, d time.Duration) {
	AuthAttempts.WithLabelValues(result).Inc()
	AuthDuration.WithLabelValues(result).Observe(d.Seconds())
}

func recordRegistration(result string) {
	Registrations.WithLabelValues(result).Inc()
}

func recordPasswordReset(phase, result string) {
	PasswordResets.WithLabelValues(phase, result).Inc()
}

func recordRoleChange(action, result string) {
	RoleChanges.WithLabelValues(action, result).Inc()
}
