// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package device defines the collaborators the interrupt engine calls
// into: the process table, the queue manager's VMID to PASID map, the
// event and debugger paths, the RAS subsystem and fault telemetry.
//
// The engine only depends on these interfaces. Mock records every call
// for tests and for the replay agent; Unimplemented* types give forward
// compatible defaults for partial implementations.
package device

import (
	"context"
	"fmt"
)

// ProcessTable resolves a PASID to the attached compute process.
type ProcessTable interface {
	// LookupProcess returns the process bound to pasid, or false if no
	// process is attached.
	LookupProcess(ctx context.Context, pasid uint16) (*Process, bool)
}

// VMIDPASIDTable is the queue manager's VMID to PASID map used when the
// hardware scheduler is not running. It is read from interrupt context and
// must not block or allocate.
type VMIDPASIDTable interface {
	PASIDForVMID(vmid uint8) uint16
}

// EventSignaler wakes compute events waited on by user processes.
type EventSignaler interface {
	// SignalEvent signals the event whose id matches the low width bits
	// of payload.
	SignalEvent(ctx context.Context, pasid uint16, payload uint32, width uint)

	// SignalPoisonConsumed notifies the process that it consumed poisoned
	// data.
	SignalPoisonConsumed(ctx context.Context, pasid uint16)
}

// DebugBridge delivers exceptions to an attached debugger.
type DebugBridge interface {
	// NotifyDebugger raises the exceptions in mask on the queue addressed
	// by doorbellID (-1 for device-wide). exc is nil unless the event is a
	// memory violation. It reports whether the debugger took the event.
	NotifyDebugger(ctx context.Context, pasid uint16, doorbellID int32,
		mask uint64, exc *MemoryException) bool
}

// RAS is the reliability subsystem that owns poison bookkeeping and
// reset execution.
type RAS interface {
	// SetErrPoison flags the block as having seen poisoned data.
	SetErrPoison(ctx context.Context, block RASBlock)

	// MarkEvent records an event of the given type. It returns
	// ErrEventAlreadyMarked when another path recorded it first.
	MarkEvent(ctx context.Context, t RASEventType) error

	// AcquireEventID returns a monotonic id for logging the event.
	AcquireEventID(ctx context.Context, t RASEventType) uint64

	// HandlePoisonConsumption unmaps the process queues and kicks off the
	// reset flow with the requested severity.
	HandlePoisonConsumption(ctx context.Context, block RASBlock, pasid uint16,
		reset ResetMode) error
}

// FaultTelemetry publishes fault notifications to system management
// listeners.
type FaultTelemetry interface {
	UpdateVMFault(ctx context.Context, pasid uint16, info FaultInfo)
}

// ProcessDrainer is told when a process-close fence has drained.
type ProcessDrainer interface {
	CloseInterruptDrain(ctx context.Context, pasid uint16)
}

// Collaborators bundles every collaborator the engine needs.
type Collaborators struct {
	Processes ProcessTable
	VMIDs     VMIDPASIDTable
	Events    EventSignaler
	Debugger  DebugBridge
	RAS       RAS
	Telemetry FaultTelemetry
	Drainer   ProcessDrainer
}

// Validate reports the first missing collaborator.
func (c Collaborators) Validate() error {
	switch {
	case c.Processes == nil:
		return missing("Processes")
	case c.VMIDs == nil:
		return missing("VMIDs")
	case c.Events == nil:
		return missing("Events")
	case c.Debugger == nil:
		return missing("Debugger")
	case c.RAS == nil:
		return missing("RAS")
	case c.Telemetry == nil:
		return missing("Telemetry")
	case c.Drainer == nil:
		return missing("Drainer")
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingCollaborator, name)
}
