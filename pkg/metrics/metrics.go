// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus metrics for the interrupt engine and
// the MCP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
)

var (
	// DispatchTotal counts dispatched records by route.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_irq_dispatch_total",
			Help: "Admitted interrupt records dispatched, by route",
		},
		[]string{"route"},
	)

	// DispatchDuration tracks the time spent dispatching one record.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gpu_irq_dispatch_duration_seconds",
			Help: "Interrupt dispatch duration in seconds",
			// Dispatch runs in-process; most routes finish in microseconds,
			// poison escalation waits on the RAS collaborator.
			Buckets: []float64{
				0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
			},
		},
		[]string{"route"},
	)

	// PoisonEscalations counts poison escalation attempts by block, reset
	// severity and result.
	PoisonEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_irq_poison_escalations_total",
			Help: "Poison consumption escalations by RAS block, reset severity and result",
		},
		[]string{"block", "severity", "result"},
	)

	// CollaboratorErrors counts failures reported by driver collaborators.
	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_irq_collaborator_errors_total",
			Help: "Errors returned by driver collaborators",
		},
		[]string{"collaborator"},
	)

	// RequestsTotal counts total MCP requests by tool and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Total MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	// RequestDuration tracks MCP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// RecordRequest records metrics for a completed MCP request.
func RecordRequest(tool, status string, durationSeconds float64) {
	RequestsTotal.WithLabelValues(tool, status).Inc()
	RequestDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordCollaboratorError counts one failure of the named collaborator.
func RecordCollaboratorError(collaborator string) {
	CollaboratorErrors.WithLabelValues(collaborator).Inc()
}

// DispatchObserver records dispatch outcomes. It implements kfd.Observer.
type DispatchObserver struct{}

var _ kfd.Observer = DispatchObserver{}

// ObserveDispatch records one dispatched record.
func (DispatchObserver) ObserveDispatch(out kfd.Outcome, elapsed time.Duration) {
	if out.Dropped {
		return
	}
	route := out.Route.String()
	DispatchTotal.WithLabelValues(route).Inc()
	DispatchDuration.WithLabelValues(route).Observe(elapsed.Seconds())

	if out.Poison == nil {
		return
	}
	p := out.Poison
	block, severity := "unknown", "none"
	if p.Result != poison.NoProcess && p.Result != poison.AlreadyEscalating &&
		p.Result != poison.UnsupportedClient {
		block = p.Policy.Block.String()
		severity = p.Policy.Reset.String()
	}
	PoisonEscalations.WithLabelValues(block, severity, p.Result.String()).Inc()
	if p.Result == poison.RecoveryFailed {
		RecordCollaboratorError("ras")
	}
}
