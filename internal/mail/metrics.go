// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import "github.com/prometheus/client_golang/prometheus"

// Message outcome labels.
const (
	ResultQueued    = "queued"
	ResultRejected  = "rejected"
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultRequeued  = "requeued"
	ResultAbandoned = "abandoned"
)

// Messages counts mail by outcome.
var Messages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_mail_messages_total",
		Help: "Total number of mail messages by outcome",
	},
	[]string{"result"},
)

// DeliveryAttempts counts transport calls, retries included.
var DeliveryAttempts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gatekeeper_mail_delivery_attempts_total",
		Help: "Total number of mail transport delivery attempts",
	},
)

// RegisterMetrics registers mail metrics with the given registerer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Messages)
	reg.MustRegister(DeliveryAttempts)
}
