// Package metrics exposes Prometheus instrumentation for the MCP server:
// tool invocation counts and latencies, task polling volume and the number
// of waits currently in flight.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxmoxmcp_tool_invocations_total",
			Help: "Total tool invocations by tool name and outcome",
		},
		[]string{"tool", "outcome"}, // outcome: "success" or the error kind
	)

	ToolDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxmoxmcp_tool_duration_seconds",
			Help:    "Wall-clock duration of tool invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"tool"},
	)

	TaskPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxmoxmcp_task_polls_total",
			Help: "Total task status polls issued against the Proxmox API",
		},
	)

	ActiveWaits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proxmoxmcp_active_waits",
			Help: "Number of task waits currently polling",
		},
	)
)

// RecordInvocation records one completed tool invocation.
func RecordInvocation(tool, outcome string, seconds float64) {
	ToolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
	ToolDurationSeconds.WithLabelValues(tool).Observe(seconds)
}
