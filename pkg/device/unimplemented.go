// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
)

// Compile-time interface satisfaction checks.
var (
	_ ProcessTable   = UnimplementedProcessTable{}
	_ VMIDPASIDTable = UnimplementedVMIDPASIDTable{}
	_ EventSignaler  = UnimplementedEventSignaler{}
	_ DebugBridge    = UnimplementedDebugBridge{}
	_ RAS            = UnimplementedRAS{}
	_ FaultTelemetry = UnimplementedFaultTelemetry{}
	_ ProcessDrainer = UnimplementedProcessDrainer{}
)

// UnimplementedProcessTable finds no processes. Embed it for forward
// compatibility when new methods are added to ProcessTable.
type UnimplementedProcessTable struct{}

// LookupProcess always reports no process.
func (UnimplementedProcessTable) LookupProcess(_ context.Context, _ uint16) (*Process, bool) {
	return nil, false
}

// UnimplementedVMIDPASIDTable maps every VMID to PASID 0.
type UnimplementedVMIDPASIDTable struct{}

// PASIDForVMID returns 0.
func (UnimplementedVMIDPASIDTable) PASIDForVMID(_ uint8) uint16 {
	return 0
}

// UnimplementedEventSignaler drops every signal.
type UnimplementedEventSignaler struct{}

// SignalEvent does nothing.
func (UnimplementedEventSignaler) SignalEvent(_ context.Context, _ uint16, _ uint32, _ uint) {}

// SignalPoisonConsumed does nothing.
func (UnimplementedEventSignaler) SignalPoisonConsumed(_ context.Context, _ uint16) {}

// UnimplementedDebugBridge reports no debugger attached.
type UnimplementedDebugBridge struct{}

// NotifyDebugger returns false.
func (UnimplementedDebugBridge) NotifyDebugger(_ context.Context, _ uint16, _ int32,
	_ uint64, _ *MemoryException) bool {
	return false
}

// UnimplementedRAS refuses every RAS operation.
//
// Example:
//
//	type myRAS struct {
//	    device.UnimplementedRAS
//	    // your fields
//	}
type UnimplementedRAS struct{}

// SetErrPoison does nothing.
func (UnimplementedRAS) SetErrPoison(_ context.Context, _ RASBlock) {}

// MarkEvent returns ErrNotImplemented.
func (UnimplementedRAS) MarkEvent(_ context.Context, _ RASEventType) error {
	return ErrNotImplemented
}

// AcquireEventID returns 0.
func (UnimplementedRAS) AcquireEventID(_ context.Context, _ RASEventType) uint64 {
	return 0
}

// HandlePoisonConsumption returns ErrNotImplemented.
func (UnimplementedRAS) HandlePoisonConsumption(_ context.Context, _ RASBlock,
	_ uint16, _ ResetMode) error {
	return ErrNotImplemented
}

// UnimplementedFaultTelemetry drops every fault.
type UnimplementedFaultTelemetry struct{}

// UpdateVMFault does nothing.
func (UnimplementedFaultTelemetry) UpdateVMFault(_ context.Context, _ uint16, _ FaultInfo) {}

// UnimplementedProcessDrainer drops drain notifications.
type UnimplementedProcessDrainer struct{}

// CloseInterruptDrain does nothing.
func (UnimplementedProcessDrainer) CloseInterruptDrain(_ context.Context, _ uint16) {}
