// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"fmt"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
)

// SchedPolicy is the queue manager scheduling mode.
type SchedPolicy int

const (
	// SchedPolicyHWS uses the hardware scheduler with oversubscription.
	SchedPolicyHWS SchedPolicy = iota
	// SchedPolicyHWSNoOversubscription uses the hardware scheduler without
	// oversubscription.
	SchedPolicyHWSNoOversubscription
	// SchedPolicyNoHWS maps queues directly; the hardware does not fill in
	// the PASID of interrupts.
	SchedPolicyNoHWS
)

// String returns the policy name.
func (p SchedPolicy) String() string {
	switch p {
	case SchedPolicyHWS:
		return "hws"
	case SchedPolicyHWSNoOversubscription:
		return "hws-no-oversubscription"
	case SchedPolicyNoHWS:
		return "no-hws"
	default:
		return fmt.Sprintf("sched-policy(%d)", int(p))
	}
}

// ParseSchedPolicy parses a policy name as returned by String.
func ParseSchedPolicy(s string) (SchedPolicy, error) {
	for _, p := range []SchedPolicy{SchedPolicyHWS, SchedPolicyHWSNoOversubscription, SchedPolicyNoHWS} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown scheduling policy %q", s)
}

// MarshalText encodes the policy as its name.
func (p SchedPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a policy name.
func (p *SchedPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseSchedPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Config is the read-only device configuration of the interrupt engine.
type Config struct {
	// GPUID identifies the device in debugger exception payloads.
	GPUID uint32

	// FirstVMID and LastVMID bound the VMIDs owned by compute contexts.
	FirstVMID uint8
	LastVMID  uint8

	SchedPolicy SchedPolicy

	// GC and SDMA are the graphics and DMA IP revisions.
	GC   device.IPVersion
	SDMA device.IPVersion

	// MECFirmware is the compute micro-engine firmware version.
	MECFirmware uint32
	// PMFirmware is the power management firmware version.
	PMFirmware uint32

	// NoEvictionOnVMFault disables queue eviction on memory faults, so
	// memory hub faults are not queued.
	NoEvictionOnVMFault bool

	ContextIDs  ContextIDTable
	ResetPolicy poison.Table

	// Partitioned enables the partition gate using InterruptBitmap.
	Partitioned     bool
	InterruptBitmap uint32

	// QueueSize bounds the admitted records waiting for the worker.
	QueueSize int
}

// DefaultQueueSize is used when Config.QueueSize is zero.
const DefaultQueueSize = 256

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.FirstVMID > c.LastVMID {
		return fmt.Errorf("first VMID %d is above last VMID %d", c.FirstVMID, c.LastVMID)
	}
	if c.LastVMID >= device.MaxVMIDs {
		return fmt.Errorf("last VMID %d out of range (max %d)", c.LastVMID, device.MaxVMIDs-1)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative: %d", c.QueueSize)
	}
	return nil
}

func (c Config) hardware() poison.Hardware {
	return poison.Hardware{GC: c.GC, SDMA: c.SDMA, PMFirmware: c.PMFirmware}
}

// ContextIDRule requires a minimum MEC firmware on one GC revision before
// the end-of-pipe context id can be trusted.
type ContextIDRule struct {
	GC             device.IPVersion `yaml:"gc" json:"gc"`
	MinMECFirmware uint32           `yaml:"minMecFirmware" json:"min_mec_firmware"`
}

// ContextIDTable says whether the firmware always sends a nonzero
// context id on legitimate end-of-pipe signals.
type ContextIDTable struct {
	Rules []ContextIDRule `yaml:"rules,omitempty" json:"rules,omitempty"`
	// AlwaysFrom is the first GC revision that always sends valid context
	// ids when no rule names the revision.
	AlwaysFrom device.IPVersion `yaml:"alwaysFrom" json:"always_from"`
}

// DefaultContextIDTable returns the GFX9 firmware table.
func DefaultContextIDTable() ContextIDTable {
	return ContextIDTable{
		Rules: []ContextIDRule{
			{GC: device.IP(9, 0, 1), MinMECFirmware: 0x817a},
			{GC: device.IP(9, 1, 0), MinMECFirmware: 0x17a},
			{GC: device.IP(9, 2, 1), MinMECFirmware: 0x17a},
			{GC: device.IP(9, 2, 2), MinMECFirmware: 0x17a},
			{GC: device.IP(9, 3, 0), MinMECFirmware: 0x17a},
			{GC: device.IP(9, 4, 0), MinMECFirmware: 0x17a},
		},
		AlwaysFrom: device.IP(9, 4, 1),
	}
}

// Expected reports whether gc running mecFirmware populates a nonzero
// context id on every real end-of-pipe signal.
func (t ContextIDTable) Expected(gc device.IPVersion, mecFirmware uint32) bool {
	for _, r := range t.Rules {
		if r.GC == gc {
			return mecFirmware >= r.MinMECFirmware
		}
	}
	if t.AlwaysFrom == (device.IPVersion{}) {
		return false
	}
	return !gc.Less(t.AlwaysFrom)
}
