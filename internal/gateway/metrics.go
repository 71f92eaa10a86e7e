// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import "github.com/prometheus/client_golang/prometheus"

// Request status labels.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusInvalid = "invalid"
)

// Requests counts dispatched requests by op and status. Unknown ops are
// counted under op "unknown".
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_gateway_requests_total",
		Help: "Total number of gateway requests by op and status",
	},
	[]string{"op", "status"},
)

// Connections tracks open gateway connections.
var Connections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "gatekeeper_gateway_connections",
		Help: "Number of open gateway connections",
	},
)

// RegisterMetrics registers gateway metrics with the given registerer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(Connections)
}
