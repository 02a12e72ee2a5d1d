// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package poison

import (
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
)

// Rule gates the lighter reset behind a minimum power-management firmware
// version for one IP revision.
type Rule struct {
	IP          device.IPVersion `yaml:"ip" json:"ip"`
	MinFirmware uint32           `yaml:"minFirmware" json:"min_firmware"`
}

// FamilyPolicy selects the reset mode for one RAS block family.
type FamilyPolicy struct {
	// Rules are matched by exact IP revision. Below MinFirmware the full
	// reset is used, at or above it the lighter one.
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	// Default applies to revisions no rule names.
	Default device.ResetMode `yaml:"default" json:"default"`
}

// Select returns the reset mode for the given IP revision and firmware.
func (f FamilyPolicy) Select(ip device.IPVersion, firmware uint32) device.ResetMode {
	for _, r := range f.Rules {
		if r.IP != ip {
			continue
		}
		if firmware < r.MinFirmware {
			return device.ResetMode1
		}
		return device.ResetMode2
	}
	return f.Default
}

// Table is the per-family reset policy. It is static configuration
// injected at construction.
type Table struct {
	GFX   FamilyPolicy `yaml:"gfx" json:"gfx"`
	SDMA  FamilyPolicy `yaml:"sdma" json:"sdma"`
	MMHUB FamilyPolicy `yaml:"mmhub" json:"mmhub"`
}

// Firmware thresholds that enable mode-2 reset for poison consumption.
const (
	MinFirmwareGC943 = 0x00557300
	MinFirmwareGC944 = 0x05550C00
)

// DefaultTable returns the policy shipped for GFX9 parts: GC 9.4.3 and
// 9.4.4 (and their SDMA 4.4.2 and 4.4.5 companions) need a minimum PM
// firmware for mode-2, everything else uses mode-2 except MMHUB which
// always takes a mode-1 reset.
func DefaultTable() Table {
	return Table{
		GFX: FamilyPolicy{
			Rules: []Rule{
				{IP: device.IP(9, 4, 3), MinFirmware: MinFirmwareGC943},
				{IP: device.IP(9, 4, 4), MinFirmware: MinFirmwareGC944},
			},
			Default: device.ResetMode2,
		},
		SDMA: FamilyPolicy{
			Rules: []Rule{
				{IP: device.IP(4, 4, 2), MinFirmware: MinFirmwareGC943},
				{IP: device.IP(4, 4, 5), MinFirmware: MinFirmwareGC944},
			},
			Default: device.ResetMode2,
		},
		MMHUB: FamilyPolicy{
			Default: device.ResetMode1,
		},
	}
}

// Hardware identifies the IP revisions and firmware the policy is keyed
// on.
type Hardware struct {
	GC         device.IPVersion
	SDMA       device.IPVersion
	PMFirmware uint32
}

// Policy is the outcome of policy selection.
type Policy struct {
	Block device.RASBlock
	Reset device.ResetMode
}

// BlockForClient maps the interrupting client to the RAS block charged
// with the poison. Only clients that can report poison consumption are
// mapped.
func BlockForClient(client ih.ClientID) (device.RASBlock, bool) {
	switch client {
	case ih.ClientSE0SH, ih.ClientSE1SH, ih.ClientSE2SH, ih.ClientSE3SH,
		ih.ClientUTCL2:
		return device.RASBlockGFX, true
	case ih.ClientVMC, ih.ClientVMC1:
		return device.RASBlockMMHUB, true
	case ih.ClientSDMA0, ih.ClientSDMA1, ih.ClientSDMA2, ih.ClientSDMA3,
		ih.ClientSDMA4:
		return device.RASBlockSDMA, true
	}
	return device.RASBlockUnknown, false
}

// Select computes the reset policy for client on hw.
func (t Table) Select(client ih.ClientID, hw Hardware) (Policy, bool) {
	block, ok := BlockForClient(client)
	if !ok {
		return Policy{}, false
	}
	var reset device.ResetMode
	switch block {
	case device.RASBlockGFX:
		reset = t.GFX.Select(hw.GC, hw.PMFirmware)
	case device.RASBlockSDMA:
		reset = t.SDMA.Select(hw.SDMA, hw.PMFirmware)
	case device.RASBlockMMHUB:
		reset = t.MMHUB.Select(hw.GC, hw.PMFirmware)
	}
	return Policy{Block: block, Reset: reset}, true
}
