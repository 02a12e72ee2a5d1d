// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionGate_Allows(t *testing.T) {
	tests := []struct {
		name   string
		bitmap uint32
		node   uint8
		vmid   uint8
		want   bool
	}{
		{name: "own node", bitmap: 0x0000_0002, node: 1, vmid: 8, want: true},
		{name: "other node", bitmap: 0x0000_0002, node: 2, vmid: 8, want: false},
		{name: "cpx vmid on node 0", bitmap: 0x0100_0000, node: 0, vmid: 8, want: true},
		{name: "cpx vmid on node 4", bitmap: 0x0100_0000, node: 4, vmid: 8, want: true},
		{name: "cpx vmid on node 5", bitmap: 0x0100_0000, node: 5, vmid: 8, want: false},
		{name: "cpx other vmid", bitmap: 0x0100_0000, node: 0, vmid: 9, want: false},
		{name: "empty bitmap", bitmap: 0, node: 0, vmid: 0, want: false},
		{name: "node beyond bitmap", bitmap: 0xffff_ffff, node: 40, vmid: 3, want: true},
		{name: "node beyond bitmap not cpx", bitmap: 0x0000_ffff, node: 41, vmid: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := PartitionGate{Bitmap: tt.bitmap}
			assert.Equal(t, tt.want, g.Allows(tt.node, tt.vmid))
		})
	}
}
