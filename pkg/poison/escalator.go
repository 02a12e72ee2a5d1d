// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package poison escalates consumed hardware data poisoning to the RAS
// subsystem, at most once per process.
package poison

import (
	"context"
	"errors"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"k8s.io/klog/v2"
)

// Result describes how an escalation attempt ended.
type Result int

const (
	// Escalated means the RAS recovery flow was started.
	Escalated Result = iota
	// NoProcess means no process is attached to the PASID.
	NoProcess
	// AlreadyEscalating means another record won the race for the process.
	AlreadyEscalating
	// UnsupportedClient means the client cannot report poison consumption.
	UnsupportedClient
	// AlreadyMarked means the RAS event was recorded by another path.
	AlreadyMarked
	// RecoveryFailed means the RAS collaborator rejected the reset request.
	RecoveryFailed
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Escalated:
		return "escalated"
	case NoProcess:
		return "no_process"
	case AlreadyEscalating:
		return "already_escalating"
	case UnsupportedClient:
		return "unsupported_client"
	case AlreadyMarked:
		return "already_marked"
	case RecoveryFailed:
		return "recovery_failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the result as its name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Outcome is the result of one Escalate call.
type Outcome struct {
	Result  Result
	Policy  Policy
	EventID uint64
	Err     error `json:"-"`
}

// Escalator runs the poison consumption flow.
type Escalator struct {
	hw        Hardware
	table     Table
	processes device.ProcessTable
	events    device.EventSignaler
	ras       device.RAS
}

// NewEscalator creates an escalator for one device.
func NewEscalator(hw Hardware, table Table, processes device.ProcessTable,
	events device.EventSignaler, ras device.RAS) *Escalator {
	return &Escalator{
		hw:        hw,
		table:     table,
		processes: processes,
		events:    events,
		ras:       ras,
	}
}

// Escalate handles poison consumed by the process bound to pasid, reported
// by client. Only the first caller for a process proceeds; every later
// caller returns AlreadyEscalating until the process is torn down.
func (e *Escalator) Escalate(ctx context.Context, pasid uint16, client ih.ClientID) Outcome {
	p, ok := e.processes.LookupProcess(ctx, pasid)
	if !ok {
		klog.V(2).InfoS("poison consumed by unknown process", "pasid", pasid, "client", client)
		return Outcome{Result: NoProcess}
	}

	// All queues of a process are unmapped at once.
	if !p.Poison.TryEscalate() {
		return Outcome{Result: AlreadyEscalating}
	}

	policy, ok := e.table.Select(client, e.hw)
	if !ok {
		klog.InfoS("client does not support poison consumption", "client", client)
		return Outcome{Result: UnsupportedClient}
	}

	if policy.Block != device.RASBlockMMHUB {
		e.ras.SetErrPoison(ctx, policy.Block)
	}

	const typ = device.RASEventPoisonConsumption
	if err := e.ras.MarkEvent(ctx, typ); err != nil {
		if !errors.Is(err, device.ErrEventAlreadyMarked) {
			klog.V(2).InfoS("RAS event not marked", "pasid", pasid, "error", err)
		}
		return Outcome{Result: AlreadyMarked, Policy: policy, Err: err}
	}

	e.events.SignalPoisonConsumed(ctx, pasid)

	eventID := e.ras.AcquireEventID(ctx, typ)
	klog.InfoS("poison is consumed, kick off gpu reset flow",
		"eventID", eventID,
		"client", client,
		"pasid", pasid,
		"block", policy.Block,
		"reset", policy.Reset)

	if err := e.ras.HandlePoisonConsumption(ctx, policy.Block, pasid, policy.Reset); err != nil {
		klog.ErrorS(err, "RAS poison consumption handler failed",
			"eventID", eventID, "pasid", pasid, "block", policy.Block)
		return Outcome{Result: RecoveryFailed, Policy: policy, EventID: eventID, Err: err}
	}

	return Outcome{Result: Escalated, Policy: policy, EventID: eventID}
}
