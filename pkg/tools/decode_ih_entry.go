// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ihlog"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/sq"
)

// DecodeIHEntryHandler decodes and classifies a single ring entry. It has
// no side effects on any device.
type DecodeIHEntryHandler struct {
	filter *kfd.Filter
}

// NewDecodeIHEntryHandler creates a handler that judges entries against
// the device described by cfg. vmids may be nil, in which case every VMID
// maps to PASID 0.
func NewDecodeIHEntryHandler(cfg kfd.Config, vmids device.VMIDPASIDTable) *DecodeIHEntryHandler {
	if vmids == nil {
		vmids = device.UnimplementedVMIDPASIDTable{}
	}
	return &DecodeIHEntryHandler{filter: kfd.NewFilter(cfg, vmids)}
}

// DecodeIHEntryResponse is the decoded view of one entry.
type DecodeIHEntryResponse struct {
	Words   []string      `json:"words"`
	Header  ih.Header     `json:"header"`
	Client  string        `json:"client"`
	Source  string        `json:"source"`
	Fence   bool          `json:"fence"`
	Verdict VerdictInfo   `json:"verdict"`
	Route   string        `json:"route"`
	SQ      *SQInfo       `json:"sq,omitempty"`
	BadOp   *BadOpInfo    `json:"bad_opcode,omitempty"`
	Fault   *FaultSummary `json:"fault,omitempty"`
}

// VerdictInfo is the admission decision for an entry.
type VerdictInfo struct {
	Admit   bool   `json:"admit"`
	Patched bool   `json:"patched"`
	Reason  string `json:"reason"`
	// PatchedPASID is the PASID the entry would carry after patching.
	PatchedPASID uint16 `json:"patched_pasid,omitempty"`
}

// SQInfo is a decoded SQ interrupt message.
type SQInfo struct {
	Encoding   string     `json:"encoding"`
	ErrorType  string     `json:"error_type,omitempty"`
	Decision   string     `json:"decision"`
	DoorbellID uint32     `json:"doorbell_id"`
	TrapCode   uint32     `json:"trap_code"`
	Payload    sq.Payload `json:"payload"`
}

// BadOpInfo is a decoded command processor bad-opcode interrupt.
type BadOpInfo struct {
	ErrorCode uint32 `json:"error_code"`
	Doorbell  uint32 `json:"doorbell"`
	Packet    bool   `json:"packet_exception"`
}

// FaultSummary describes the page a VM fault entry refers to.
type FaultSummary struct {
	PageAddr uint64 `json:"page_addr"`
	VA       string `json:"va"`
}

// Handle processes the decode_ih_entry tool request.
func (h *DecodeIHEntryHandler) Handle(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	klog.InfoS("decode_ih_entry invoked")

	args := request.GetArguments()
	entry, ok := args["entry"].(string)
	if !ok || entry == "" {
		return mcp.NewToolResultError("entry is required"), nil
	}

	rec, err := ihlog.ParseWords(entry)
	if err != nil {
		klog.V(4).InfoS("rejected entry", "entry", entry, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("invalid entry: %s", err)), nil
	}

	return marshalResponse(h.decode(&rec))
}

func (h *DecodeIHEntryHandler) decode(rec *ih.Record) DecodeIHEntryResponse {
	hdr := ih.Decode(rec)
	route := kfd.Classify(hdr)
	resp := DecodeIHEntryResponse{
		Words:  make([]string, 0, ih.EntryWords),
		Header: hdr,
		Client: hdr.ClientID.String(),
		Source: hdr.SourceID.String(),
		Fence:  ih.IsFence(hdr.ClientID, hdr.SourceID),
		Route:  route.String(),
	}
	for _, w := range rec {
		resp.Words = append(resp.Words, fmt.Sprintf("%08X", w))
	}

	var scratch ih.Record
	v := h.filter.Admit(rec, &scratch)
	resp.Verdict = VerdictInfo{
		Admit:   v.Admit,
		Patched: v.Patched,
		Reason:  v.Reason.String(),
	}
	if v.Patched {
		resp.Verdict.PatchedPASID = scratch.PASID()
	}

	switch route {
	case kfd.RouteSQMessage:
		p := sq.Decode(hdr.ContextID0, hdr.ContextID1)
		resp.SQ = &SQInfo{
			Encoding:   p.Encoding.String(),
			Decision:   p.Decision().String(),
			DoorbellID: p.DoorbellID(),
			TrapCode:   p.TrapCode(),
			Payload:    p,
		}
		if p.Encoding == sq.EncodingError {
			resp.SQ.ErrorType = p.ErrorType.String()
		}
	case kfd.RouteBadOpcode:
		code := sq.BadOpcodeErrorCode(hdr.ContextID0)
		resp.BadOp = &BadOpInfo{
			ErrorCode: code,
			Doorbell:  sq.BadOpcodeDoorbell(hdr.ContextID0),
			Packet:    kfd.ExceptionCode(code).IsPacket(),
		}
	case kfd.RouteVMFault:
		page := rec.PageAddress()
		resp.Fault = &FaultSummary{
			PageAddr: page,
			VA:       fmt.Sprintf("0x%x", page<<device.PageShift),
		}
	}
	return resp
}

// GetDecodeIHEntryTool returns the MCP tool definition for decode_ih_entry.
func GetDecodeIHEntryTool() mcp.Tool {
	return mcp.NewTool("decode_ih_entry",
		mcp.WithDescription(
			"Decode one AMD SOC15 interrupt handler ring entry given as eight "+
				"hex words. Returns the header fields, client and source names, "+
				"the admission verdict for this device, the dispatch route and "+
				"the decoded SQ, bad-opcode or VM fault payload. "+
				"Read-only: nothing is signaled or escalated.",
		),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Eight 32-bit hex words separated by commas or spaces, "+
				"as printed by the driver's ring dump"),
		),
	)
}
