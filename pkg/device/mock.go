// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"sync"
	"sync/atomic"
)

// Compile-time interface satisfaction checks.
var (
	_ ProcessTable   = (*Mock)(nil)
	_ VMIDPASIDTable = (*Mock)(nil)
	_ EventSignaler  = (*Mock)(nil)
	_ DebugBridge    = (*Mock)(nil)
	_ RAS            = (*Mock)(nil)
	_ FaultTelemetry = (*Mock)(nil)
	_ ProcessDrainer = (*Mock)(nil)
)

// MaxVMIDs is the number of hardware VMID slots.
const MaxVMIDs = 16

// SignalCall is a recorded EventSignaler.SignalEvent call.
type SignalCall struct {
	PASID   uint16
	Payload uint32
	Width   uint
}

// DebugCall is a recorded DebugBridge.NotifyDebugger call.
type DebugCall struct {
	PASID      uint16
	DoorbellID int32
	Mask       uint64
	Exception  *MemoryException
}

// RecoveryCall is a recorded RAS.HandlePoisonConsumption call.
type RecoveryCall struct {
	Block RASBlock
	PASID uint16
	Reset ResetMode
}

// FaultCall is a recorded FaultTelemetry.UpdateVMFault call.
type FaultCall struct {
	PASID uint16
	Info  FaultInfo
}

// Mock implements every collaborator interface in memory and records the
// calls it receives. It is safe for concurrent use.
type Mock struct {
	// vmidPASID is read from interrupt context, so it is kept lock free.
	vmidPASID [MaxVMIDs]atomic.Uint32

	mu           sync.Mutex
	processes    map[uint16]*Process
	debugHandled bool
	autoAttach   bool
	markErr      error
	recoveryErr  error
	nextEventID  uint64

	signals        []SignalCall
	poisonSignals  []uint16
	debugCalls     []DebugCall
	errPoison      []RASBlock
	markCalls      []RASEventType
	recoveries     []RecoveryCall
	faults         []FaultCall
	drains         []uint16
	eventIDsIssued []uint64
}

// NewMock creates an empty mock with no attached processes.
func NewMock() *Mock {
	return &Mock{
		processes: make(map[uint16]*Process),
	}
}

// AttachProcess registers a process for pasid and returns it. Attaching an
// already attached PASID returns the existing process.
func (m *Mock) AttachProcess(pasid uint16) *Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[pasid]; ok {
		return p
	}
	p := NewProcess(pasid)
	m.processes[pasid] = p
	return p
}

// TeardownProcess drops the process and with it its poison state.
func (m *Mock) TeardownProcess(pasid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processes, pasid)
}

// SetVMIDPASID binds vmid to pasid in the queue manager table.
func (m *Mock) SetVMIDPASID(vmid uint8, pasid uint16) {
	m.vmidPASID[vmid%MaxVMIDs].Store(uint32(pasid))
}

// SetAutoAttach makes LookupProcess attach a process for any PASID it has
// not seen, as a replay of captured records has no process table.
func (m *Mock) SetAutoAttach(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoAttach = auto
}

// SetDebugHandled controls the NotifyDebugger return value.
func (m *Mock) SetDebugHandled(handled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugHandled = handled
}

// SetMarkEventError forces MarkEvent to fail with err.
func (m *Mock) SetMarkEventError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr = err
}

// SetRecoveryError forces HandlePoisonConsumption to fail with err.
func (m *Mock) SetRecoveryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryErr = err
}

// LookupProcess returns the attached process for pasid.
func (m *Mock) LookupProcess(_ context.Context, pasid uint16) (*Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[pasid]
	if !ok && m.autoAttach {
		p = NewProcess(pasid)
		m.processes[pasid] = p
		ok = true
	}
	return p, ok
}

// PASIDForVMID returns the PASID bound to vmid, or 0.
func (m *Mock) PASIDForVMID(vmid uint8) uint16 {
	return uint16(m.vmidPASID[vmid%MaxVMIDs].Load())
}

// SignalEvent records the call.
func (m *Mock) SignalEvent(_ context.Context, pasid uint16, payload uint32, width uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, SignalCall{PASID: pasid, Payload: payload, Width: width})
}

// SignalPoisonConsumed records the call.
func (m *Mock) SignalPoisonConsumed(_ context.Context, pasid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poisonSignals = append(m.poisonSignals, pasid)
}

// NotifyDebugger records the call and returns the configured result.
func (m *Mock) NotifyDebugger(_ context.Context, pasid uint16, doorbellID int32,
	mask uint64, exc *MemoryException) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var copied *MemoryException
	if exc != nil {
		e := *exc
		copied = &e
	}
	m.debugCalls = append(m.debugCalls, DebugCall{
		PASID:      pasid,
		DoorbellID: doorbellID,
		Mask:       mask,
		Exception:  copied,
	})
	return m.debugHandled
}

// SetErrPoison records the call.
func (m *Mock) SetErrPoison(_ context.Context, block RASBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errPoison = append(m.errPoison, block)
}

// MarkEvent records the event type and returns the configured error.
func (m *Mock) MarkEvent(_ context.Context, t RASEventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls = append(m.markCalls, t)
	return m.markErr
}

// AcquireEventID returns the next id, starting at 1.
func (m *Mock) AcquireEventID(_ context.Context, _ RASEventType) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	m.eventIDsIssued = append(m.eventIDsIssued, m.nextEventID)
	return m.nextEventID
}

// HandlePoisonConsumption records the call.
func (m *Mock) HandlePoisonConsumption(_ context.Context, block RASBlock,
	pasid uint16, reset ResetMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveries = append(m.recoveries, RecoveryCall{Block: block, PASID: pasid, Reset: reset})
	return m.recoveryErr
}

// UpdateVMFault records the call.
func (m *Mock) UpdateVMFault(_ context.Context, pasid uint16, info FaultInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, FaultCall{PASID: pasid, Info: info})
}

// CloseInterruptDrain records the call.
func (m *Mock) CloseInterruptDrain(_ context.Context, pasid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains = append(m.drains, pasid)
}

// Signals returns the recorded SignalEvent calls.
func (m *Mock) Signals() []SignalCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SignalCall(nil), m.signals...)
}

// PoisonSignals returns the PASIDs passed to SignalPoisonConsumed.
func (m *Mock) PoisonSignals() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint16(nil), m.poisonSignals...)
}

// DebugCalls returns the recorded NotifyDebugger calls.
func (m *Mock) DebugCalls() []DebugCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DebugCall(nil), m.debugCalls...)
}

// ErrPoisonBlocks returns the blocks passed to SetErrPoison.
func (m *Mock) ErrPoisonBlocks() []RASBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RASBlock(nil), m.errPoison...)
}

// MarkCalls returns the event types passed to MarkEvent.
func (m *Mock) MarkCalls() []RASEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RASEventType(nil), m.markCalls...)
}

// EventIDs returns the ids handed out by AcquireEventID.
func (m *Mock) EventIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.eventIDsIssued...)
}

// Recoveries returns the recorded HandlePoisonConsumption calls.
func (m *Mock) Recoveries() []RecoveryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecoveryCall(nil), m.recoveries...)
}

// Faults returns the recorded UpdateVMFault calls.
func (m *Mock) Faults() []FaultCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FaultCall(nil), m.faults...)
}

// Drains returns the PASIDs passed to CloseInterruptDrain.
func (m *Mock) Drains() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint16(nil), m.drains...)
}

// Collaborators returns a bundle that routes every collaborator to m.
func (m *Mock) Collaborators() Collaborators {
	return Collaborators{
		Processes: m,
		VMIDs:     m,
		Events:    m,
		Debugger:  m,
		RAS:       m,
		Telemetry: m,
		Drainer:   m,
	}
}
