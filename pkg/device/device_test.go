// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPVersion(t *testing.T) {
	tests := []struct {
		name string
		a, b IPVersion
		less bool
	}{
		{name: "major", a: IP(8, 9, 9), b: IP(9, 0, 0), less: true},
		{name: "minor", a: IP(9, 4, 0), b: IP(9, 4, 1), less: true},
		{name: "equal", a: IP(9, 4, 3), b: IP(9, 4, 3), less: false},
		{name: "newer", a: IP(9, 4, 4), b: IP(9, 4, 3), less: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.less, tt.a.Less(tt.b))
		})
	}

	v, err := ParseIPVersion("9.4.3")
	require.NoError(t, err)
	assert.Equal(t, IP(9, 4, 3), v)
	assert.Equal(t, "9.4.3", v.String())

	_, err = ParseIPVersion("gfx943")
	assert.True(t, errors.Is(err, ErrInvalidIPVersion))
}

func TestPoisonState_OneShot(t *testing.T) {
	var s PoisonState
	assert.False(t, s.Escalating())
	assert.True(t, s.TryEscalate())
	assert.True(t, s.Escalating())
	assert.False(t, s.TryEscalate(), "state must never return to clear")
}

func TestPoisonState_ConcurrentWinner(t *testing.T) {
	var (
		s       PoisonState
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryEscalate() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestNewMemoryException(t *testing.T) {
	exc := NewMemoryException(0x1234, FaultInfo{
		PageAddr:  0x3_0000_0001,
		ProtValid: true,
		ProtWrite: true,
	})
	assert.Equal(t, uint32(0x1234), exc.GPUID)
	assert.Equal(t, uint64(0x3_0000_0001)<<PageShift, exc.VA)
	assert.True(t, exc.NotPresent)
	assert.True(t, exc.ReadOnly)
	assert.False(t, exc.NoExecute)
	assert.False(t, exc.Imprecise)
}

func TestCollaborators_Validate(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Collaborators().Validate())

	c := m.Collaborators()
	c.RAS = nil
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCollaborator))
	assert.Contains(t, err.Error(), "RAS")

	assert.Error(t, Collaborators{}.Validate())
}

func TestMock_Processes(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	_, ok := m.LookupProcess(ctx, 7)
	assert.False(t, ok)

	p := m.AttachProcess(7)
	assert.Same(t, p, m.AttachProcess(7))

	got, ok := m.LookupProcess(ctx, 7)
	require.True(t, ok)
	assert.Same(t, p, got)

	m.TeardownProcess(7)
	_, ok = m.LookupProcess(ctx, 7)
	assert.False(t, ok)

	// A new attach starts with a clear poison state.
	p.Poison.TryEscalate()
	assert.False(t, m.AttachProcess(7).Poison.Escalating())
}

func TestMock_VMIDTable(t *testing.T) {
	m := NewMock()
	assert.Equal(t, uint16(0), m.PASIDForVMID(3))
	m.SetVMIDPASID(3, 42)
	assert.Equal(t, uint16(42), m.PASIDForVMID(3))
	assert.Equal(t, uint16(0), m.PASIDForVMID(4))
}

func TestMock_Records(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.SetDebugHandled(true)

	m.SignalEvent(ctx, 1, 0x1234, 32)
	m.SignalPoisonConsumed(ctx, 2)
	exc := &MemoryException{VA: 0x1000}
	assert.True(t, m.NotifyDebugger(ctx, 3, -1, 1<<32, exc))
	exc.VA = 0 // the mock keeps its own copy
	m.SetErrPoison(ctx, RASBlockSDMA)
	require.NoError(t, m.MarkEvent(ctx, RASEventPoisonConsumption))
	assert.Equal(t, uint64(1), m.AcquireEventID(ctx, RASEventPoisonConsumption))
	assert.Equal(t, uint64(2), m.AcquireEventID(ctx, RASEventPoisonConsumption))
	require.NoError(t, m.HandlePoisonConsumption(ctx, RASBlockSDMA, 2, ResetMode2))
	m.UpdateVMFault(ctx, 4, FaultInfo{VMID: 9})
	m.CloseInterruptDrain(ctx, 5)

	assert.Equal(t, []SignalCall{{PASID: 1, Payload: 0x1234, Width: 32}}, m.Signals())
	assert.Equal(t, []uint16{2}, m.PoisonSignals())
	require.Len(t, m.DebugCalls(), 1)
	assert.Equal(t, uint64(0x1000), m.DebugCalls()[0].Exception.VA)
	assert.Equal(t, []RASBlock{RASBlockSDMA}, m.ErrPoisonBlocks())
	assert.Equal(t, []RASEventType{RASEventPoisonConsumption}, m.MarkCalls())
	assert.Equal(t, []uint64{1, 2}, m.EventIDs())
	assert.Equal(t, []RecoveryCall{{Block: RASBlockSDMA, PASID: 2, Reset: ResetMode2}}, m.Recoveries())
	assert.Equal(t, []FaultCall{{PASID: 4, Info: FaultInfo{VMID: 9}}}, m.Faults())
	assert.Equal(t, []uint16{5}, m.Drains())

	m.SetMarkEventError(ErrEventAlreadyMarked)
	assert.ErrorIs(t, m.MarkEvent(ctx, RASEventPoisonConsumption), ErrEventAlreadyMarked)
}

func TestUnimplemented(t *testing.T) {
	ctx := context.Background()

	_, ok := UnimplementedProcessTable{}.LookupProcess(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, uint16(0), UnimplementedVMIDPASIDTable{}.PASIDForVMID(1))
	assert.False(t, UnimplementedDebugBridge{}.NotifyDebugger(ctx, 1, 0, 0, nil))
	assert.ErrorIs(t, UnimplementedRAS{}.MarkEvent(ctx, RASEventPoisonConsumption), ErrNotImplemented)
	assert.ErrorIs(t, UnimplementedRAS{}.HandlePoisonConsumption(ctx, RASBlockGFX, 1, ResetMode1),
		ErrNotImplemented)
	assert.NotPanics(t, func() {
		UnimplementedEventSignaler{}.SignalEvent(ctx, 1, 2, 3)
		UnimplementedFaultTelemetry{}.UpdateVMFault(ctx, 1, FaultInfo{})
		UnimplementedProcessDrainer{}.CloseInterruptDrain(ctx, 1)
	})
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "gfx", RASBlockGFX.String())
	assert.Equal(t, "mmhub", RASBlockMMHUB.String())
	assert.Equal(t, "sdma", RASBlockSDMA.String())
	assert.Equal(t, "unknown", RASBlockUnknown.String())
	assert.Equal(t, "mode1", ResetMode1.String())
	assert.Equal(t, "mode2", ResetMode2.String())
	assert.Equal(t, "reset(0x4)", ResetMode(4).String())
	assert.Equal(t, "poison_consumption", RASEventPoisonConsumption.String())
}

func TestTextEncoding(t *testing.T) {
	var v IPVersion
	require.NoError(t, v.UnmarshalText([]byte("9.4.3")))
	assert.Equal(t, IP(9, 4, 3), v)
	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "9.4.3", string(text))
	assert.ErrorIs(t, v.UnmarshalText([]byte("gfx9")), ErrInvalidIPVersion)

	var m ResetMode
	require.NoError(t, m.UnmarshalText([]byte("mode1")))
	assert.Equal(t, ResetMode1, m)
	require.NoError(t, m.UnmarshalText([]byte("mode2")))
	assert.Equal(t, ResetMode2, m)
	assert.ErrorIs(t, m.UnmarshalText([]byte("baco")), ErrInvalidResetMode)

	text, err = RASBlockSDMA.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "sdma", string(text))
}

func TestMock_AutoAttach(t *testing.T) {
	m := NewMock()
	_, ok := m.LookupProcess(context.Background(), 5)
	assert.False(t, ok)

	m.SetAutoAttach(true)
	p, ok := m.LookupProcess(context.Background(), 5)
	require.True(t, ok)
	assert.Equal(t, uint16(5), p.PASID)

	again, _ := m.LookupProcess(context.Background(), 5)
	assert.Same(t, p, again)
}
