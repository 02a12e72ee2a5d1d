// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ihlog"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/sq"
)

// entrySource recovers ring entries from logs. *ihlog.Parser implements it.
type entrySource interface {
	ParseFile(path string) ([]ihlog.Entry, error)
	ParseKernelLogs(ctx context.Context) ([]ihlog.Entry, error)
}

// AnalyzeIHLogHandler replays ring entries found in a log through a
// private engine backed by simulated collaborators and summarizes what
// the driver would have done.
type AnalyzeIHLogHandler struct {
	cfg    kfd.Config
	parser entrySource
}

// NewAnalyzeIHLogHandler creates a handler replaying against the device
// described by cfg.
func NewAnalyzeIHLogHandler(cfg kfd.Config) *AnalyzeIHLogHandler {
	return &AnalyzeIHLogHandler{
		cfg:    cfg,
		parser: ihlog.NewParser(),
	}
}

// AnalyzeIHLogResponse is the analyze_ih_log result.
type AnalyzeIHLogResponse struct {
	Status         string            `json:"status"`
	Source         string            `json:"source"`
	EntryCount     int               `json:"entry_count"`
	Stats          kfd.Stats         `json:"stats"`
	Signals        int               `json:"signals"`
	DebugNotices   int               `json:"debug_notices"`
	Drains         int               `json:"drains"`
	Poison         []PoisonEvent     `json:"poison"`
	Faults         []FaultEvent      `json:"faults"`
	SQErrors       map[string]int    `json:"sq_errors,omitempty"`
	Recommendation string            `json:"recommendation"`
	Outcomes       []kfd.Outcome     `json:"outcomes,omitempty"`
	Clients        map[string]uint64 `json:"clients,omitempty"`
}

// PoisonEvent is one poison escalation attempt seen during replay.
type PoisonEvent struct {
	PASID  uint16 `json:"pasid"`
	Client string `json:"client"`
	Result string `json:"result"`
	Block  string `json:"block"`
	Reset  string `json:"reset"`
}

// FaultEvent is one VM fault seen during replay.
type FaultEvent struct {
	PASID uint16           `json:"pasid"`
	Fault device.FaultInfo `json:"fault"`
	VA    string           `json:"va"`
}

// outcomeRecorder collects dispatch outcomes in order.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []kfd.Outcome
}

func (r *outcomeRecorder) ObserveDispatch(out kfd.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
}

// Handle processes the analyze_ih_log tool request.
func (h *AnalyzeIHLogHandler) Handle(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	klog.InfoS("analyze_ih_log invoked")

	args := request.GetArguments()
	path, _ := args["path"].(string)
	verbose, _ := args["include_outcomes"].(bool)

	source := path
	var entries []ihlog.Entry
	var err error
	if path == "" {
		source = "kernel"
		entries, err = h.parser.ParseKernelLogs(ctx)
	} else {
		entries, err = h.parser.ParseFile(path)
	}
	if err != nil {
		klog.ErrorS(err, "failed to read ring entries", "source", source)
		return mcp.NewToolResultError(
			fmt.Sprintf("failed to read ring entries from %s: %s", source, err)), nil
	}

	klog.V(4).InfoS("replaying ring entries", "source", source, "count", len(entries))

	resp, err := h.replay(ctx, entries)
	if err != nil {
		klog.ErrorS(err, "replay failed")
		return mcp.NewToolResultError(fmt.Sprintf("replay failed: %s", err)), nil
	}
	resp.Source = source
	if verbose {
		resp.Outcomes = resp.outcomes
	}

	return marshalResponse(resp.AnalyzeIHLogResponse)
}

type replayResult struct {
	AnalyzeIHLogResponse
	outcomes []kfd.Outcome
}

// replay runs entries through a fresh engine whose queue holds all of
// them, so none are lost to back-pressure.
func (h *AnalyzeIHLogHandler) replay(ctx context.Context, entries []ihlog.Entry) (*replayResult, error) {
	cfg := h.cfg
	cfg.QueueSize = len(entries) + 1

	sim := device.NewMock()
	sim.SetAutoAttach(true)
	rec := &outcomeRecorder{}

	engine, err := kfd.NewEngine(cfg, sim.Collaborators(), kfd.WithObserver(rec))
	if err != nil {
		return nil, err
	}

	clients := make(map[string]uint64)
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during replay: %w", err)
		}
		clients[entries[i].Record.ClientID().String()]++
		engine.Submit(&entries[i].Record)
	}

	// Run returns once the queue is drained.
	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := engine.Run(runCtx); err != nil {
		return nil, err
	}

	res := &replayResult{outcomes: rec.outcomes}
	res.EntryCount = len(entries)
	res.Stats = engine.Stats()
	res.Clients = clients
	res.Signals = len(sim.Signals())
	res.DebugNotices = len(sim.DebugCalls())
	res.Drains = len(sim.Drains())
	res.Poison = []PoisonEvent{}
	res.Faults = []FaultEvent{}

	for _, out := range rec.outcomes {
		switch {
		case out.Poison != nil:
			res.Poison = append(res.Poison, PoisonEvent{
				PASID:  out.Header.PASID,
				Client: out.Header.ClientID.String(),
				Result: out.Poison.Result.String(),
				Block:  out.Poison.Policy.Block.String(),
				Reset:  out.Poison.Policy.Reset.String(),
			})
		case out.Fault != nil:
			res.Faults = append(res.Faults, FaultEvent{
				PASID: out.Header.PASID,
				Fault: *out.Fault,
				VA:    fmt.Sprintf("0x%x", out.Fault.PageAddr<<device.PageShift),
			})
		}
		if out.SQ != nil && out.SQ.Encoding == sq.EncodingError {
			if res.SQErrors == nil {
				res.SQErrors = make(map[string]int)
			}
			res.SQErrors[out.SQ.ErrorType.String()]++
		}
	}

	res.Status = replayStatus(res.AnalyzeIHLogResponse)
	res.Recommendation = replayRecommendation(res.AnalyzeIHLogResponse)
	return res, nil
}

// replayStatus determines overall status from what the replay triggered.
func replayStatus(r AnalyzeIHLogResponse) string {
	if resets(r.Poison) > 0 {
		return "critical"
	}
	if len(r.Faults) > 0 || len(r.Poison) > 0 {
		return "degraded"
	}
	return "ok"
}

// resets counts the escalations that reached the RAS recovery flow.
func resets(events []PoisonEvent) int {
	n := 0
	for _, p := range events {
		if p.Result == poison.Escalated.String() || p.Result == poison.RecoveryFailed.String() {
			n++
		}
	}
	return n
}

// replayRecommendation creates an actionable recommendation from the
// replay summary.
func replayRecommendation(r AnalyzeIHLogResponse) string {
	if r.EntryCount == 0 {
		return "No interrupt ring entries found in the log."
	}

	var recommendations []string

	if escalated := resets(r.Poison); escalated > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("URGENT: %d poison consumption(s) would trigger a GPU reset. "+
				"Drain workloads and check RAS error counts.", escalated))
		for _, p := range r.Poison {
			if p.Result == poison.Escalated.String() {
				recommendations = append(recommendations,
					fmt.Sprintf("- PASID %d: %s poison, %s reset", p.PASID, p.Block, p.Reset))
			}
		}
	}

	if len(r.Faults) > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d VM fault(s) detected. Check the faulting processes "+
				"for invalid GPU memory accesses.", len(r.Faults)))
	}

	rejected := uint64(0)
	for _, n := range r.Stats.Rejected {
		rejected += n
	}
	if rejected > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d record(s) were rejected by the admission filter. "+
				"Verify the VMID range and partition bitmap match this device.", rejected))
	}

	if len(recommendations) > 0 {
		return strings.Join(recommendations, " ")
	}
	return "Interrupt traffic looks healthy."
}

// GetAnalyzeIHLogTool returns the MCP tool definition for analyze_ih_log.
func GetAnalyzeIHLogTool() mcp.Tool {
	return mcp.NewTool("analyze_ih_log",
		mcp.WithDescription(
			"Replay AMD GPU interrupt ring entries found in a log through the "+
				"interrupt pipeline against simulated driver state. Summarizes "+
				"admissions, routes, poison escalations and VM faults with "+
				"SRE-actionable recommendations. Without a path the kernel log "+
				"is read, which may require elevated permissions.",
		),
		mcp.WithString("path",
			mcp.Description("Log or trace file to read (optional, default: kernel log)"),
		),
		mcp.WithBoolean("include_outcomes",
			mcp.Description("Include the per-entry dispatch outcomes (default: false)"),
		),
	)
}
