// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"testing"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/stretchr/testify/assert"
)

func TestClassifyIDs(t *testing.T) {
	tests := []struct {
		client ih.ClientID
		source ih.SourceID
		want   Route
	}{
		{ih.ClientGRBMCP, ih.SourceCPEndOfPipe, RouteEventWake},
		{ih.ClientSE2SH, ih.SourceCPEndOfPipe, RouteEventWake},
		{ih.ClientSE1SH, ih.SourceSQInterruptMsg, RouteSQMessage},
		{ih.ClientGRBMCP, ih.SourceSQInterruptMsg, RouteSQMessage},
		{ih.ClientGRBMCP, ih.SourceCPBadOpcode, RouteBadOpcode},
		{ih.ClientGRBMCP, ih.SourceSDMATrap, RouteNone},
		{ih.ClientSDMA0, ih.SourceSDMATrap, RouteSDMATrap},
		{ih.ClientSDMA6, ih.SourceSDMATrap, RouteSDMATrap},
		{ih.ClientSDMA1, ih.SourceSDMAECC, RoutePoison},
		{ih.ClientSDMA1, ih.SourceCPEndOfPipe, RouteNone},
		{ih.ClientVMC, ih.SourceVMCFault, RouteVMFault},
		{ih.ClientVMC1, ih.SourceID(42), RouteVMFault},
		{ih.ClientUTCL2, ih.SourceVMCUTCL2Poison, RoutePoison},
		{ih.ClientVMC, ih.SourceVMCUTCL2Poison, RoutePoison},
		{ih.ClientFence, ih.SourceFence, RouteFenceDrain},
		{ih.ClientFence, ih.SourceCPEndOfPipe, RouteNone},
		{ih.ClientTHM, ih.SourceCPEndOfPipe, RouteNone},
	}

	for _, tt := range tests {
		t.Run(tt.client.String()+"/"+tt.source.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIDs(tt.client, tt.source))
		})
	}
}

func TestClassify_Header(t *testing.T) {
	rec := record(ih.ClientSE0SH, ih.SourceCPEndOfPipe, 8, 7).Record()
	assert.Equal(t, RouteEventWake, Classify(ih.Decode(&rec)))
}

func TestRoute_Names(t *testing.T) {
	routes := Routes()
	assert.Len(t, routes, 8)
	assert.Equal(t, RouteNone, routes[0])

	text, err := RouteVMFault.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "vm_fault", string(text))
	assert.Equal(t, "unknown", Route(99).String())
}
