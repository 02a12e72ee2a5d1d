// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/metrics"
)

// Request status labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// instrument records the count and latency of every call to handler.
// A tool result flagged as an error counts as a failed request.
func instrument(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, request)

		status := statusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = statusError
		}
		metrics.RecordRequest(tool, status, time.Since(start).Seconds())
		return result, err
	}
}
