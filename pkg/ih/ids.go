// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package ih

import "fmt"

// ClientID identifies the hardware block that raised an interrupt.
type ClientID uint16

// SOC15 interrupt handler client ids.
const (
	ClientIH       ClientID = 0x00
	ClientACP      ClientID = 0x01
	ClientATHUB    ClientID = 0x02
	ClientBIF      ClientID = 0x03
	ClientDCE      ClientID = 0x04
	ClientISP      ClientID = 0x05
	ClientPCIE0    ClientID = 0x06
	ClientRLC      ClientID = 0x07
	ClientSDMA0    ClientID = 0x08
	ClientSDMA1    ClientID = 0x09
	ClientSE0SH    ClientID = 0x0a
	ClientSE1SH    ClientID = 0x0b
	ClientSE2SH    ClientID = 0x0c
	ClientSE3SH    ClientID = 0x0d
	ClientUVD1     ClientID = 0x0e
	ClientTHM      ClientID = 0x0f
	ClientUVD      ClientID = 0x10
	ClientVCE0     ClientID = 0x11
	ClientVMC      ClientID = 0x12
	ClientXDMA     ClientID = 0x13
	ClientGRBMCP   ClientID = 0x14
	ClientATS      ClientID = 0x15
	ClientROMSMUIO ClientID = 0x16
	ClientDF       ClientID = 0x17
	ClientVCE1     ClientID = 0x18
	ClientPWR      ClientID = 0x19
	ClientUTCL2    ClientID = 0x1b
	ClientEA       ClientID = 0x1c
	ClientUTCL2LOG ClientID = 0x1d
	ClientMP0      ClientID = 0x1e
	ClientMP1      ClientID = 0x1f

	// Aliased slots reused by later SOC15 parts.
	ClientSDMA2 = ClientACP
	ClientSDMA3 = ClientDCE
	ClientSDMA4 = ClientISP
	ClientSDMA5 = ClientVCE0
	ClientSDMA6 = ClientXDMA
	ClientSDMA7 = ClientVCE1
	ClientVMC1  = ClientPCIE0

	// ClientFence is the software client id of a process-drain fence.
	ClientFence ClientID = 0xff
)

// SourceID identifies the interrupt source within a client.
type SourceID uint16

// Interrupt sources the compute driver cares about.
const (
	SourceVMCFault       SourceID = 0
	SourceVMCUTCL2Poison SourceID = 1
	SourceCPEndOfPipe    SourceID = 181
	SourceCPBadOpcode    SourceID = 183
	SourceSDMAECC        SourceID = 220
	SourceSDMATrap       SourceID = 224
	SourceSQInterruptMsg SourceID = 239
	SourceFence          SourceID = 0xff
)

// IsFence reports whether the client/source pair is the drain fence.
func IsFence(client ClientID, source SourceID) bool {
	return client == ClientFence && source == SourceFence
}

// IsSDMA reports whether the client is one of the eight DMA engines.
func (c ClientID) IsSDMA() bool {
	switch c {
	case ClientSDMA0, ClientSDMA1, ClientSDMA2, ClientSDMA3,
		ClientSDMA4, ClientSDMA5, ClientSDMA6, ClientSDMA7:
		return true
	}
	return false
}

// IsShaderEngine reports whether the client is one of the SQ blocks.
func (c ClientID) IsShaderEngine() bool {
	switch c {
	case ClientSE0SH, ClientSE1SH, ClientSE2SH, ClientSE3SH:
		return true
	}
	return false
}

// IsGraphics reports whether the client is the command processor or a
// shader engine.
func (c ClientID) IsGraphics() bool {
	return c == ClientGRBMCP || c.IsShaderEngine()
}

// IsMemoryHub reports whether the client is a memory-management block.
func (c ClientID) IsMemoryHub() bool {
	return c == ClientVMC || c == ClientVMC1 || c == ClientUTCL2
}

var clientNames = map[ClientID]string{
	ClientIH:       "IH",
	ClientSDMA2:    "SDMA2",
	ClientATHUB:    "ATHUB",
	ClientBIF:      "BIF",
	ClientSDMA3:    "SDMA3",
	ClientSDMA4:    "SDMA4",
	ClientVMC1:     "VMC1",
	ClientRLC:      "RLC",
	ClientSDMA0:    "SDMA0",
	ClientSDMA1:    "SDMA1",
	ClientSE0SH:    "SE0SH",
	ClientSE1SH:    "SE1SH",
	ClientSE2SH:    "SE2SH",
	ClientSE3SH:    "SE3SH",
	ClientUVD1:     "UVD1",
	ClientTHM:      "THM",
	ClientUVD:      "UVD",
	ClientSDMA5:    "SDMA5",
	ClientVMC:      "VMC",
	ClientSDMA6:    "SDMA6",
	ClientGRBMCP:   "GRBM_CP",
	ClientATS:      "ATS",
	ClientROMSMUIO: "ROM_SMUIO",
	ClientDF:       "DF",
	ClientSDMA7:    "SDMA7",
	ClientPWR:      "PWR",
	ClientUTCL2:    "UTCL2",
	ClientEA:       "EA",
	ClientUTCL2LOG: "UTCL2LOG",
	ClientMP0:      "MP0",
	ClientMP1:      "MP1",
	ClientFence:    "FENCE",
}

// String returns the block name, using the compute-side alias for shared
// slots (SDMA2 rather than ACP).
func (c ClientID) String() string {
	if name, ok := clientNames[c]; ok {
		return name
	}
	return fmt.Sprintf("client(%#x)", uint16(c))
}

var sourceNames = map[SourceID]string{
	SourceVMCFault:       "VMC_FAULT",
	SourceVMCUTCL2Poison: "VMC_UTCL2_POISON",
	SourceCPEndOfPipe:    "CP_END_OF_PIPE",
	SourceCPBadOpcode:    "CP_BAD_OPCODE",
	SourceSDMAECC:        "SDMA_ECC",
	SourceSDMATrap:       "SDMA_TRAP",
	SourceSQInterruptMsg: "SQ_INTERRUPT_MSG",
	SourceFence:          "FENCE",
}

// String returns the symbolic source name.
func (s SourceID) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", uint16(s))
}
