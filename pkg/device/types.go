// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"sync/atomic"
)

// IPVersion identifies a hardware IP block revision (e.g. GC 9.4.3).
type IPVersion struct {
	Major uint8 `json:"major" yaml:"major"`
	Minor uint8 `json:"minor" yaml:"minor"`
	Rev   uint8 `json:"rev" yaml:"rev"`
}

// IP builds an IPVersion.
func IP(major, minor, rev uint8) IPVersion {
	return IPVersion{Major: major, Minor: minor, Rev: rev}
}

// Less reports whether v is an older revision than o.
func (v IPVersion) Less(o IPVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Rev < o.Rev
}

// String formats the version as major.minor.rev.
func (v IPVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Rev)
}

// ParseIPVersion parses "major.minor.rev".
func ParseIPVersion(s string) (IPVersion, error) {
	var v IPVersion
	if _, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Rev); err != nil {
		return IPVersion{}, fmt.Errorf("%w: %q", ErrInvalidIPVersion, s)
	}
	return v, nil
}

// MarshalText encodes the version as major.minor.rev.
func (v IPVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses major.minor.rev.
func (v *IPVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseIPVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// RASBlock is the hardware block category a poison event is charged to.
type RASBlock int

const (
	RASBlockUnknown RASBlock = iota
	RASBlockGFX
	RASBlockMMHUB
	RASBlockSDMA
)

// String returns the block name.
func (b RASBlock) String() string {
	switch b {
	case RASBlockGFX:
		return "gfx"
	case RASBlockMMHUB:
		return "mmhub"
	case RASBlockSDMA:
		return "sdma"
	default:
		return "unknown"
	}
}

// MarshalText encodes the block as its name.
func (b RASBlock) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// ResetMode is the GPU reset severity requested from the RAS subsystem.
type ResetMode uint32

const (
	// ResetMode2 is the lighter, in-place reset.
	ResetMode2 ResetMode = 1 << 0
	// ResetMode1 is the full device reset.
	ResetMode1 ResetMode = 1 << 1
)

// String returns the reset mode name.
func (m ResetMode) String() string {
	switch m {
	case ResetMode1:
		return "mode1"
	case ResetMode2:
		return "mode2"
	default:
		return fmt.Sprintf("reset(%#x)", uint32(m))
	}
}

// MarshalText encodes the mode as its name.
func (m ResetMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "mode1" or "mode2".
func (m *ResetMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "mode1":
		*m = ResetMode1
	case "mode2":
		*m = ResetMode2
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResetMode, text)
	}
	return nil
}

// RASEventType categorizes events marked with the RAS subsystem.
type RASEventType int

const (
	RASEventPoisonConsumption RASEventType = iota + 1
	RASEventPoisonCreation
)

// String returns the event type name.
func (t RASEventType) String() string {
	switch t {
	case RASEventPoisonConsumption:
		return "poison_consumption"
	case RASEventPoisonCreation:
		return "poison_creation"
	default:
		return "unknown"
	}
}

// PoisonState is the per-process one-shot poison flag. It moves from clear
// to escalating exactly once and never back.
type PoisonState struct {
	escalating atomic.Bool
}

// TryEscalate sets the flag and reports whether this caller won the race.
func (s *PoisonState) TryEscalate() bool {
	return s.escalating.CompareAndSwap(false, true)
}

// Escalating reports whether an escalation has started.
func (s *PoisonState) Escalating() bool {
	return s.escalating.Load()
}

// Process is the part of a compute process the interrupt path needs.
// It lives from process attach until teardown.
type Process struct {
	PASID  uint16
	Poison PoisonState
}

// NewProcess creates a process with a clear poison state.
func NewProcess(pasid uint16) *Process {
	return &Process{PASID: pasid}
}

// FaultInfo describes a GPU page fault.
type FaultInfo struct {
	VMID      uint8  `json:"vmid"`
	MCID      uint16 `json:"mc_id"`
	PageAddr  uint64 `json:"page_addr"`
	ProtValid bool   `json:"prot_valid"`
	ProtRead  bool   `json:"prot_read"`
	ProtWrite bool   `json:"prot_write"`
	ProtExec  bool   `json:"prot_exec"`
}

// PageShift converts page numbers to byte addresses.
const PageShift = 12

// MemoryException is the payload delivered to the debugger for a device
// memory violation.
type MemoryException struct {
	GPUID      uint32 `json:"gpu_id"`
	VA         uint64 `json:"va"`
	NotPresent bool   `json:"not_present"`
	ReadOnly   bool   `json:"read_only"`
	NoExecute  bool   `json:"no_execute"`
	Imprecise  bool   `json:"imprecise"`
}

// NewMemoryException derives the debugger payload from a fault.
func NewMemoryException(gpuID uint32, info FaultInfo) MemoryException {
	return MemoryException{
		GPUID:      gpuID,
		VA:         info.PageAddr << PageShift,
		NotPresent: info.ProtValid,
		NoExecute:  info.ProtExec,
		ReadOnly:   info.ProtWrite,
	}
}
