// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
)

// RejectReason says why a record was not admitted.
type RejectReason uint8

const (
	// RejectNone is the reason of an admitted record.
	RejectNone RejectReason = iota
	RejectPartition
	RejectVMID
	RejectClient
	RejectNoPASID
	RejectBogusSignal
	RejectSource

	numRejectReasons
)

var rejectNames = [numRejectReasons]string{
	RejectNone:        "none",
	RejectPartition:   "partition",
	RejectVMID:        "vmid_range",
	RejectClient:      "client",
	RejectNoPASID:     "no_pasid",
	RejectBogusSignal: "bogus_signal",
	RejectSource:      "source",
}

// String returns the reason label used in logs and metrics.
func (r RejectReason) String() string {
	if r < numRejectReasons {
		return rejectNames[r]
	}
	return "unknown"
}

// Verdict is the admission decision for one record.
type Verdict struct {
	Admit bool
	// Patched means the PASID was filled in from the VMID table and the
	// scratch record holds the copy to queue.
	Patched bool
	Reason  RejectReason
}

// Filter runs in interrupt context and decides which records are
// interesting for the compute driver. It does not allocate and does not
// block.
type Filter struct {
	cfg               Config
	gate              *PartitionGate
	vmids             device.VMIDPASIDTable
	contextIDExpected bool

	warnedNoPASID atomic.Bool
}

// NewFilter creates a filter for the device described by cfg.
func NewFilter(cfg Config, vmids device.VMIDPASIDTable) *Filter {
	f := &Filter{
		cfg:               cfg,
		vmids:             vmids,
		contextIDExpected: cfg.ContextIDs.Expected(cfg.GC, cfg.MECFirmware),
	}
	if cfg.Partitioned {
		f.gate = &PartitionGate{Bitmap: cfg.InterruptBitmap}
	}
	return f
}

// ContextIDExpected reports whether end-of-pipe signals with a zero
// context id are treated as spurious on this device.
func (f *Filter) ContextIDExpected() bool {
	return f.contextIDExpected
}

// Admit decides whether rec must be queued for dispatch. When the PASID
// has to be recovered from the VMID table, rec is left untouched and the
// patched copy is written to scratch.
func (f *Filter) Admit(rec, scratch *ih.Record) Verdict {
	source := rec.SourceID()
	client := rec.ClientID()
	vmid := rec.VMID()

	if f.gate != nil && !f.gate.Allows(rec.NodeID(), vmid) {
		return Verdict{Reason: RejectPartition}
	}

	fence := ih.IsFence(client, source)
	if !fence {
		if vmid < f.cfg.FirstVMID || vmid > f.cfg.LastVMID {
			return Verdict{Reason: RejectVMID}
		}
		if !admittedClient(client) {
			return Verdict{Reason: RejectClient}
		}
	}

	pasid := rec.PASID()
	patched := false
	if pasid == 0 && f.cfg.SchedPolicy == SchedPolicyNoHWS {
		// Without the hardware scheduler the PASID is not filled in.
		*scratch = *rec
		pasid = f.vmids.PASIDForVMID(vmid)
		scratch.SetPASID(pasid)
		patched = true
	}

	if pasid == 0 {
		if f.warnedNoPASID.CompareAndSwap(false, true) {
			klog.Warningf("bug: no PASID in KFD interrupt (client %s, source %s, vmid %d)",
				client, source, vmid)
		}
		return Verdict{Patched: patched, Reason: RejectNoPASID}
	}

	if source == ih.SourceCPEndOfPipe && rec.ContextID0() == 0 && f.contextIDExpected {
		return Verdict{Patched: patched, Reason: RejectBogusSignal}
	}

	if fence || admittedSource(source) ||
		(client.IsMemoryHub() && !f.cfg.NoEvictionOnVMFault) {
		return Verdict{Admit: true, Patched: patched}
	}
	return Verdict{Patched: patched, Reason: RejectSource}
}

func admittedClient(c ih.ClientID) bool {
	return c == ih.ClientGRBMCP || c.IsSDMA() || c.IsMemoryHub() || c.IsShaderEngine()
}

func admittedSource(s ih.SourceID) bool {
	switch s {
	case ih.SourceCPEndOfPipe,
		ih.SourceSDMATrap,
		ih.SourceSDMAECC,
		ih.SourceSQInterruptMsg,
		ih.SourceCPBadOpcode:
		return true
	}
	return false
}
