// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/k8s"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
)

// EngineStats is implemented by the interrupt engine.
type EngineStats interface {
	Stats() kfd.Stats
}

// EventStats is implemented by the node event reporter.
type EventStats interface {
	Stats() k8s.ReporterStats
}

// InterruptStatsHandler reports the live engine counters.
type InterruptStatsHandler struct {
	engine EngineStats
	events EventStats
}

// NewInterruptStatsHandler creates a handler for engine. events is
// optional.
func NewInterruptStatsHandler(engine EngineStats, events EventStats) *InterruptStatsHandler {
	return &InterruptStatsHandler{engine: engine, events: events}
}

// InterruptStatsResponse is the get_interrupt_stats result.
type InterruptStatsResponse struct {
	Status string             `json:"status"`
	Engine kfd.Stats          `json:"engine"`
	Events *k8s.ReporterStats `json:"events,omitempty"`
}

// Handle processes the get_interrupt_stats tool request.
func (h *InterruptStatsHandler) Handle(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	klog.InfoS("get_interrupt_stats invoked")

	if h.engine == nil {
		return mcp.NewToolResultError("interrupt engine not running"), nil
	}

	resp := InterruptStatsResponse{Engine: h.engine.Stats()}
	if h.events != nil {
		ev := h.events.Stats()
		resp.Events = &ev
	}
	resp.Status = statsStatus(resp.Engine)

	return marshalResponse(resp)
}

// statsStatus is "degraded" once records were lost or poison was seen,
// "ok" otherwise.
func statsStatus(s kfd.Stats) string {
	switch {
	case s.QueueFull > 0:
		return "degraded"
	case s.Dispatched[kfd.RoutePoison.String()] > 0:
		return "degraded"
	default:
		return "ok"
	}
}

// GetInterruptStatsTool returns the MCP tool definition for
// get_interrupt_stats.
func GetInterruptStatsTool() mcp.Tool {
	return mcp.NewTool("get_interrupt_stats",
		mcp.WithDescription(
			"Report the GPU interrupt engine counters: records received, "+
				"admitted and patched, rejections by reason, dispatches by route, "+
				"queue depth and records lost to a full queue. When the agent "+
				"posts Kubernetes events, their counters are included.",
		),
	)
}
