// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package ih

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   Header
	}{
		{
			name: "end_of_pipe_from_se0",
			record: Record{
				0x0338_0ab5, 0, 0, 0x0002_0007, 0x0000_1234, 0x55, 0xaa, 0xbb,
			},
			want: Header{
				SourceID:   SourceCPEndOfPipe,
				ClientID:   ClientSE0SH,
				RingID:     0x38,
				VMID:       3,
				PASID:      7,
				NodeID:     2,
				ContextID0: 0x1234,
				ContextID1: 0x55,
				ContextID2: 0xaa,
				ContextID3: 0xbb,
			},
		},
		{
			name:   "vmid_type_bit",
			record: Record{0x8f00_12dc, 0, 0, 0xffff},
			want: Header{
				SourceID: 0xdc,
				ClientID: 0x12,
				VMID:     0xf,
				VMIDType: 1,
				PASID:    0xffff,
			},
		},
		{
			name:   "empty_record",
			record: Record{},
			want:   Header{},
		},
		{
			name:   "fence",
			record: Record{0x0000_ffff, 0, 0, 9},
			want: Header{
				SourceID: SourceFence,
				ClientID: ClientFence,
				PASID:    9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(&tt.record)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.SourceID, tt.record.SourceID())
			assert.Equal(t, tt.want.ClientID, tt.record.ClientID())
			assert.Equal(t, tt.want.VMID, tt.record.VMID())
			assert.Equal(t, tt.want.PASID, tt.record.PASID())
			assert.Equal(t, tt.want.NodeID, tt.record.NodeID())
		})
	}
}

func TestBuilder(t *testing.T) {
	rec := NewBuilder().
		Client(ClientSDMA1).
		Source(SourceSDMATrap).
		Ring(0x18).
		VMID(9).
		PASID(0x8001).
		Node(4).
		Context(0, 0xf123_4567).
		Context(1, 0x3).
		Record()

	h := Decode(&rec)
	assert.Equal(t, ClientSDMA1, h.ClientID)
	assert.Equal(t, SourceSDMATrap, h.SourceID)
	assert.Equal(t, uint8(0x18), h.RingID)
	assert.Equal(t, uint8(9), h.VMID)
	assert.Equal(t, uint16(0x8001), h.PASID)
	assert.Equal(t, uint8(4), h.NodeID)
	assert.Equal(t, uint32(0xf123_4567), h.ContextID0)
	assert.Equal(t, uint64(0x3_f123_4567), rec.PageAddress())
}

func TestRecord_SetPASID(t *testing.T) {
	orig := NewBuilder().Node(6).VMID(3).Record()
	patched := orig
	patched.SetPASID(42)

	assert.Equal(t, uint16(0), orig.PASID(), "original must stay untouched")
	assert.Equal(t, uint16(42), patched.PASID())
	assert.Equal(t, uint8(6), patched.NodeID(), "node id must survive the patch")
	assert.Equal(t, orig[0], patched[0])
}

func TestRecord_String(t *testing.T) {
	rec := Record{0x12b5, 0, 0, 7, 0x1234, 0, 0, 0}
	assert.Equal(t,
		"    12B5,        0,        0,        7,     1234,        0,        0,        0.",
		rec.String())
}

func TestClientID_Categories(t *testing.T) {
	tests := []struct {
		client   ClientID
		sdma     bool
		shader   bool
		graphics bool
		hub      bool
	}{
		{client: ClientGRBMCP, graphics: true},
		{client: ClientSE0SH, shader: true, graphics: true},
		{client: ClientSE3SH, shader: true, graphics: true},
		{client: ClientSDMA0, sdma: true},
		{client: ClientSDMA2, sdma: true},
		{client: ClientSDMA7, sdma: true},
		{client: ClientVMC, hub: true},
		{client: ClientVMC1, hub: true},
		{client: ClientUTCL2, hub: true},
		{client: ClientTHM},
		{client: ClientFence},
	}

	for _, tt := range tests {
		t.Run(tt.client.String(), func(t *testing.T) {
			assert.Equal(t, tt.sdma, tt.client.IsSDMA())
			assert.Equal(t, tt.shader, tt.client.IsShaderEngine())
			assert.Equal(t, tt.graphics, tt.client.IsGraphics())
			assert.Equal(t, tt.hub, tt.client.IsMemoryHub())
		})
	}
}

func TestIDStrings(t *testing.T) {
	assert.Equal(t, "SE2SH", ClientSE2SH.String())
	assert.Equal(t, "SDMA2", ClientACP.String())
	assert.Equal(t, "client(0x1a)", ClientID(0x1a).String())
	assert.Equal(t, "SQ_INTERRUPT_MSG", SourceSQInterruptMsg.String())
	assert.Equal(t, "source(77)", SourceID(77).String())
	require.True(t, IsFence(ClientFence, SourceFence))
	assert.False(t, IsFence(ClientFence, SourceCPEndOfPipe))
	assert.False(t, IsFence(ClientGRBMCP, SourceFence))
}
