// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
)

// testConfig describes an MI200-class device running the hardware
// scheduler with compute VMIDs 8-15.
func testConfig() kfd.Config {
	return kfd.Config{
		GPUID:       0x4e21,
		FirstVMID:   8,
		LastVMID:    15,
		SchedPolicy: kfd.SchedPolicyHWS,
		GC:          device.IP(9, 4, 2),
		SDMA:        device.IP(4, 4, 0),
		MECFirmware: 0x200,
		PMFirmware:  0x00557300,
		ContextIDs:  kfd.DefaultContextIDTable(),
		ResetPolicy: poison.DefaultTable(),
		QueueSize:   16,
	}
}

func record(client ih.ClientID, source ih.SourceID, vmid uint8, pasid uint16) *ih.Builder {
	return ih.NewBuilder().Client(client).Source(source).VMID(vmid).PASID(pasid)
}

type handler interface {
	Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func callTool(t *testing.T, h handler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	result, err := h.Handle(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "content should be TextContent")
	return textContent.Text
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &v))
	return v
}
