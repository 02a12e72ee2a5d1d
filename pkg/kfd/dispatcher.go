// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/sq"
)

// Payload widths of the event keys, in bits.
const (
	EventWakeWidth = 32
	SDMATrapWidth  = 28
)

const sdmaTrapMask = 1<<SDMATrapWidth - 1

// Memory hub ring id bits describing a fault.
const (
	faultProtValid = 0x08
	faultProtRead  = 0x10
	faultProtWrite = 0x20
)

// Signal is an event wake issued for a record.
type Signal struct {
	Payload uint32 `json:"payload"`
	Width   uint   `json:"width"`
}

// DebugNotice is a debugger notification issued for a record.
type DebugNotice struct {
	DoorbellID int32                   `json:"doorbell_id"`
	Mask       uint64                  `json:"mask"`
	Exception  *device.MemoryException `json:"exception,omitempty"`
	Handled    bool                    `json:"handled"`
}

// Outcome describes what dispatching one record did.
type Outcome struct {
	Header ih.Header `json:"header"`
	Route  Route     `json:"route"`
	// Dropped is set when the record had no PASID.
	Dropped bool              `json:"dropped,omitempty"`
	Signal  *Signal           `json:"signal,omitempty"`
	Debug   *DebugNotice      `json:"debug,omitempty"`
	SQ      *sq.Payload       `json:"sq,omitempty"`
	Poison  *poison.Outcome   `json:"poison,omitempty"`
	Fault   *device.FaultInfo `json:"fault,omitempty"`
	Drained bool              `json:"drained,omitempty"`
}

// Dispatcher executes the route of admitted records against the driver
// collaborators. It runs in worker context, one record at a time.
type Dispatcher struct {
	gpuID     uint32
	collab    device.Collaborators
	escalator *poison.Escalator
	sqLog     *rate.Limiter

	warnedNoPASID atomic.Bool
}

// SQ diagnostics are limited to a burst of 10 every 5 seconds.
const (
	sqLogBurst    = 10
	sqLogInterval = 5 * time.Second
)

// NewDispatcher creates a dispatcher for the device described by cfg.
func NewDispatcher(cfg Config, collab device.Collaborators) *Dispatcher {
	return &Dispatcher{
		gpuID:  cfg.GPUID,
		collab: collab,
		escalator: poison.NewEscalator(cfg.hardware(), cfg.ResetPolicy,
			collab.Processes, collab.Events, collab.RAS),
		sqLog: rate.NewLimiter(rate.Every(sqLogInterval/sqLogBurst), sqLogBurst),
	}
}

// Dispatch handles one admitted record.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *ih.Record) Outcome {
	h := ih.Decode(rec)
	out := Outcome{Header: h, Route: Classify(h)}

	if klog.V(4).Enabled() {
		klog.V(4).InfoS("dispatching interrupt", "entry", rec.String(), "route", out.Route)
	}

	if h.PASID == 0 {
		if d.warnedNoPASID.CompareAndSwap(false, true) {
			klog.Warningf("bug: no PASID in KFD interrupt (client %s, source %s)",
				h.ClientID, h.SourceID)
		}
		out.Dropped = true
		return out
	}

	switch out.Route {
	case RouteEventWake:
		d.signal(ctx, &out, h.ContextID0, EventWakeWidth)
	case RouteSQMessage:
		d.dispatchSQ(ctx, &out)
	case RouteBadOpcode:
		d.dispatchBadOpcode(ctx, &out)
	case RouteSDMATrap:
		d.signal(ctx, &out, h.ContextID0&sdmaTrapMask, SDMATrapWidth)
	case RoutePoison:
		d.escalate(ctx, &out)
	case RouteVMFault:
		d.dispatchVMFault(ctx, &out)
	case RouteFenceDrain:
		d.collab.Drainer.CloseInterruptDrain(ctx, h.PASID)
		out.Drained = true
	}
	return out
}

func (d *Dispatcher) signal(ctx context.Context, out *Outcome, payload uint32, width uint) {
	d.collab.Events.SignalEvent(ctx, out.Header.PASID, payload, width)
	out.Signal = &Signal{Payload: payload, Width: width}
}

func (d *Dispatcher) notify(ctx context.Context, out *Outcome, doorbell int32, mask uint64,
	exc *device.MemoryException) bool {
	handled := d.collab.Debugger.NotifyDebugger(ctx, out.Header.PASID, doorbell, mask, exc)
	out.Debug = &DebugNotice{DoorbellID: doorbell, Mask: mask, Exception: exc, Handled: handled}
	return handled
}

func (d *Dispatcher) escalate(ctx context.Context, out *Outcome) {
	res := d.escalator.Escalate(ctx, out.Header.PASID, out.Header.ClientID)
	out.Poison = &res
}

func (d *Dispatcher) dispatchSQ(ctx context.Context, out *Outcome) {
	h := out.Header
	p := sq.Decode(h.ContextID0, h.ContextID1)
	out.SQ = &p
	d.logSQ(h, p)

	switch p.Decision() {
	case sq.DebugNotify:
		if d.notify(ctx, out, int32(p.DoorbellID()), uint64(p.TrapCode()), nil) {
			return
		}
	case sq.Poison:
		d.escalate(ctx, out)
		return
	}
	d.signal(ctx, out, p.Data, sq.DataWidth)
}

func (d *Dispatcher) logSQ(h ih.Header, p sq.Payload) {
	switch p.Encoding {
	case sq.EncodingAuto:
		if klog.V(4).Enabled() && d.sqLog.Allow() {
			klog.V(4).InfoS("SQ interrupt auto",
				"pasid", h.PASID,
				"se", p.Auto.SE,
				"threadTrace", p.Auto.ThreadTrace,
				"wlt", p.Auto.WLT,
				"threadTraceBufFull", p.Auto.ThreadTraceBufFull,
				"regTimestamp", p.Auto.RegTimestamp,
				"cmdTimestamp", p.Auto.CmdTimestamp,
				"hostCmdOverflow", p.Auto.HostCmdOverflow,
				"hostRegOverflow", p.Auto.HostRegOverflow,
				"immedOverflow", p.Auto.ImmedOverflow,
				"threadTraceUTCError", p.Auto.ThreadTraceUTCErr)
		}
	case sq.EncodingWave:
		if klog.V(4).Enabled() && d.sqLog.Allow() {
			klog.V(4).InfoS("SQ interrupt wave",
				"pasid", h.PASID,
				"se", p.Coords.SE, "data", p.WaveData, "sh", p.Coords.SH,
				"priv", p.Priv, "wave", p.Coords.Wave, "simd", p.Coords.SIMD,
				"cu", p.Coords.CU)
		}
	case sq.EncodingError:
		if d.sqLog.Allow() {
			klog.InfoS("SQ interrupt error",
				"pasid", h.PASID,
				"errType", p.ErrorType,
				"se", p.Coords.SE, "data", p.WaveData, "sh", p.Coords.SH,
				"priv", p.Priv, "wave", p.Coords.Wave, "simd", p.Coords.SIMD,
				"cu", p.Coords.CU)
		}
	}
}

func (d *Dispatcher) dispatchBadOpcode(ctx context.Context, out *Outcome) {
	ctx0 := out.Header.ContextID0
	code := ExceptionCode(sq.BadOpcodeErrorCode(ctx0))
	if !code.IsPacket() {
		klog.V(2).InfoS("bad opcode without packet exception", "pasid", out.Header.PASID,
			"code", uint32(code))
		return
	}
	d.notify(ctx, out, int32(sq.BadOpcodeDoorbell(ctx0)), code.Mask(), nil)
}

func (d *Dispatcher) dispatchVMFault(ctx context.Context, out *Outcome) {
	h := out.Header
	info := device.FaultInfo{
		VMID:      h.VMID,
		MCID:      uint16(h.ClientID),
		PageAddr:  uint64(h.ContextID0) | uint64(h.ContextID1&0xf)<<32,
		ProtValid: h.RingID&faultProtValid != 0,
		ProtRead:  h.RingID&faultProtRead != 0,
		ProtWrite: h.RingID&faultProtWrite != 0,
	}
	out.Fault = &info

	exc := device.NewMemoryException(d.gpuID, info)
	d.notify(ctx, out, -1, ECDeviceMemoryViolation.Mask(), &exc)
	d.collab.Telemetry.UpdateVMFault(ctx, h.PASID, info)
}
