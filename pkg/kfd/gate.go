// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

// PartitionGate decides whether a record belongs to this compute
// partition of a multi-partition device.
//
// The low 16 bits of Bitmap select partition node ids. The high 16 bits
// select VMIDs that are also accepted from the first node of each group
// of four (CPX mode routes those through node 0, 4, 8 and so on).
type PartitionGate struct {
	Bitmap uint32
}

// Allows reports whether a record from nodeID and vmid is for this
// partition.
func (g PartitionGate) Allows(nodeID, vmid uint8) bool {
	if nodeID < 32 && g.Bitmap&(1<<nodeID) != 0 {
		return true
	}
	return nodeID%4 == 0 && vmid < 16 && (g.Bitmap>>16)&(1<<vmid) != 0
}
