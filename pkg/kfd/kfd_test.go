// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/poison"
)

// testConfig describes an MI200-class device running the hardware
// scheduler with compute VMIDs 8-15.
func testConfig() Config {
	return Config{
		GPUID:       0x4e21,
		FirstVMID:   8,
		LastVMID:    15,
		SchedPolicy: SchedPolicyHWS,
		GC:          device.IP(9, 4, 2),
		SDMA:        device.IP(4, 4, 0),
		MECFirmware: 0x200,
		PMFirmware:  0x00557300,
		ContextIDs:  DefaultContextIDTable(),
		ResetPolicy: poison.DefaultTable(),
		QueueSize:   16,
	}
}

func record(client ih.ClientID, source ih.SourceID, vmid uint8, pasid uint16) *ih.Builder {
	return ih.NewBuilder().Client(client).Source(source).VMID(vmid).PASID(pasid)
}
