// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ihlog"
)

// mockEntrySource is a test double for ihlog.Parser.
type mockEntrySource struct {
	entries []ihlog.Entry
	err     error
	path    string
	kernel  bool
}

func (m *mockEntrySource) ParseFile(path string) ([]ihlog.Entry, error) {
	m.path = path
	return m.entries, m.err
}

func (m *mockEntrySource) ParseKernelLogs(_ context.Context) ([]ihlog.Entry, error) {
	m.kernel = true
	return m.entries, m.err
}

func replayRecords() []ih.Record {
	return []ih.Record{
		record(ih.ClientSE0SH, ih.SourceCPEndOfPipe, 8, 7).Context(0, 0x1234).Record(),
		record(ih.ClientSDMA0, ih.SourceSDMAECC, 8, 9).Record(),
		record(ih.ClientVMC, ih.SourceVMCFault, 8, 7).Context(0, 0x12345).Context(1, 0xf3).Record(),
		record(ih.ClientGRBMCP, ih.SourceCPEndOfPipe, 3, 7).Context(0, 0x1234).Record(),
		record(ih.ClientFence, ih.SourceFence, 0, 7).Record(),
	}
}

func toEntries(recs []ih.Record) []ihlog.Entry {
	entries := make([]ihlog.Entry, 0, len(recs))
	for i := range recs {
		entries = append(entries, ihlog.Entry{Line: i + 1, Record: recs[i], Raw: recs[i].String()})
	}
	return entries
}

func TestAnalyzeIHLogHandler_Replay(t *testing.T) {
	src := &mockEntrySource{entries: toEntries(replayRecords())}
	h := NewAnalyzeIHLogHandler(testConfig())
	h.parser = src

	result := callTool(t, h, map[string]interface{}{})
	resp := decodeResult[AnalyzeIHLogResponse](t, result)

	assert.True(t, src.kernel, "no path reads the kernel log")
	assert.Equal(t, "kernel", resp.Source)
	assert.Equal(t, 5, resp.EntryCount)
	assert.Equal(t, uint64(5), resp.Stats.Received)
	assert.Equal(t, uint64(4), resp.Stats.Admitted)
	assert.Equal(t, uint64(1), resp.Stats.Rejected["vmid_range"])
	assert.Equal(t, uint64(1), resp.Stats.Dispatched["event_wake"])
	assert.Equal(t, uint64(1), resp.Stats.Dispatched["poison"])
	assert.Equal(t, uint64(1), resp.Stats.Dispatched["vm_fault"])
	assert.Equal(t, uint64(1), resp.Stats.Dispatched["fence_drain"])
	assert.Equal(t, uint64(0), resp.Stats.QueueFull)

	assert.Equal(t, 1, resp.Signals)
	assert.Equal(t, 1, resp.DebugNotices, "vm fault notifies the debugger")
	assert.Equal(t, 1, resp.Drains)

	require.Len(t, resp.Poison, 1)
	assert.Equal(t, PoisonEvent{
		PASID:  9,
		Client: ih.ClientSDMA0.String(),
		Result: "escalated",
		Block:  "sdma",
		Reset:  "mode2",
	}, resp.Poison[0])

	require.Len(t, resp.Faults, 1)
	assert.Equal(t, uint16(7), resp.Faults[0].PASID)
	assert.Equal(t, "0x300012345000", resp.Faults[0].VA)

	assert.Equal(t, "critical", resp.Status)
	assert.Contains(t, resp.Recommendation, "URGENT")
	assert.Contains(t, resp.Recommendation, "VM fault")
	assert.Contains(t, resp.Recommendation, "rejected")
	assert.Empty(t, resp.Outcomes)
	assert.Equal(t, uint64(1), resp.Clients[ih.ClientFence.String()])
}

func TestAnalyzeIHLogHandler_File(t *testing.T) {
	var b strings.Builder
	for i, rec := range replayRecords()[:1] {
		fmt.Fprintf(&b, "[  812.%06d] amdgpu 0000:c1:00.0: client id 0xa, source id 181. raw data:\n", i)
		fmt.Fprintf(&b, "[  812.%06d] amdgpu 0000:c1:00.0: %s\n", i+1, rec.String())
	}
	path := filepath.Join(t.TempDir(), "dmesg.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	h := NewAnalyzeIHLogHandler(testConfig())
	result := callTool(t, h, map[string]interface{}{
		"path":             path,
		"include_outcomes": true,
	})
	resp := decodeResult[map[string]interface{}](t, result)

	assert.Equal(t, path, resp["source"])
	assert.Equal(t, float64(1), resp["entry_count"])
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "Interrupt traffic looks healthy.", resp["recommendation"])

	outcomes, ok := resp["outcomes"].([]interface{})
	require.True(t, ok)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "event_wake", outcomes[0].(map[string]interface{})["route"])
}

func TestAnalyzeIHLogHandler_Empty(t *testing.T) {
	h := NewAnalyzeIHLogHandler(testConfig())
	h.parser = &mockEntrySource{}

	result := callTool(t, h, map[string]interface{}{"path": "/var/log/empty"})
	resp := decodeResult[AnalyzeIHLogResponse](t, result)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.EntryCount)
	assert.Empty(t, resp.Poison)
	assert.Empty(t, resp.Faults)
	assert.Contains(t, resp.Recommendation, "No interrupt ring entries")
}

func TestAnalyzeIHLogHandler_Errors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		h := NewAnalyzeIHLogHandler(testConfig())
		h.parser = &mockEntrySource{err: errors.New("permission denied")}

		result := callTool(t, h, map[string]interface{}{})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "permission denied")
	})

	t.Run("invalid device config", func(t *testing.T) {
		cfg := testConfig()
		cfg.FirstVMID = 12
		cfg.LastVMID = 4
		h := NewAnalyzeIHLogHandler(cfg)
		h.parser = &mockEntrySource{entries: toEntries(replayRecords())}

		result := callTool(t, h, map[string]interface{}{})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "replay failed")
	})
}

func TestAnalyzeIHLogHandler_DegradedOnFaultOnly(t *testing.T) {
	h := NewAnalyzeIHLogHandler(testConfig())
	h.parser = &mockEntrySource{entries: toEntries(replayRecords()[2:3])}

	resp := decodeResult[AnalyzeIHLogResponse](t, callTool(t, h, map[string]interface{}{}))

	assert.Equal(t, "degraded", resp.Status)
	assert.NotContains(t, resp.Recommendation, "URGENT")
}

func TestGetAnalyzeIHLogTool(t *testing.T) {
	tool := GetAnalyzeIHLogTool()

	assert.Equal(t, "analyze_ih_log", tool.Name)
	assert.NotEmpty(t, tool.Description)
	assert.Empty(t, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "path")
	assert.Contains(t, tool.InputSchema.Properties, "include_outcomes")
}
