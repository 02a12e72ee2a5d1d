// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package sq decodes shader sequencer (SQ) interrupt payloads.
//
// SQ interrupts arrive as a 44-bit packet spread over context id 0, the
// low byte of context id 1 and the VMID. Bits 27:26 of context id 0 select
// one of three encodings:
//
//   - Auto: raised by the SQ itself (thread trace, timestamps, overflows).
//     Only context id 0 bits 8:0 carry data.
//   - Wave: raised by S_SENDMSG from a shader; the 24-bit data is the user
//     payload taken from m0.
//   - Error: hardware detected errors; the top nibble of the 24-bit data is
//     the error type.
//
// Wave and Error packets also carry the SE/SH/CU/SIMD/wave coordinates of
// the originating wavefront.
package sq

import (
	"fmt"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/bitfield"
)

// Encoding selects the layout of an SQ interrupt word.
type Encoding uint8

const (
	EncodingAuto Encoding = iota
	EncodingWave
	EncodingError
	EncodingReserved
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingAuto:
		return "auto"
	case EncodingWave:
		return "wave"
	case EncodingError:
		return "error"
	default:
		return "reserved"
	}
}

// ErrorType is the error class of an Error-encoded packet.
type ErrorType uint8

const (
	// ErrorEDCFUE is an uncorrectable EDC error (data poison consumed).
	ErrorEDCFUE ErrorType = iota
	ErrorIllegalInst
	ErrorMemViol
	// ErrorEDCFED is an EDC error detected on fetch.
	ErrorEDCFED
)

// String returns the error type name.
func (e ErrorType) String() string {
	switch e {
	case ErrorEDCFUE:
		return "edc_fue"
	case ErrorIllegalInst:
		return "illegal_inst"
	case ErrorMemViol:
		return "memviol"
	case ErrorEDCFED:
		return "edc_fed"
	default:
		return fmt.Sprintf("error_type(%d)", uint8(e))
	}
}

// IsPoison reports whether the error must be escalated as data poisoning.
// Everything except illegal instructions and memory violations is.
func (e ErrorType) IsPoison() bool {
	return e != ErrorIllegalInst && e != ErrorMemViol
}

// Context id 0 layout shared by the Wave and Error encodings.
var (
	fieldData     = bitfield.Field{Shift: 0, Width: 12}
	fieldSHID     = bitfield.Field{Shift: 12, Width: 1}
	fieldPriv     = bitfield.Field{Shift: 13, Width: 1}
	fieldWaveID   = bitfield.Field{Shift: 14, Width: 4}
	fieldSIMDID   = bitfield.Field{Shift: 18, Width: 2}
	fieldCUID     = bitfield.Field{Shift: 20, Width: 4}
	fieldSEID     = bitfield.Field{Shift: 24, Width: 2}
	fieldEncoding = bitfield.Field{Shift: 26, Width: 2}
)

// Context id 0 layout of the Auto encoding.
var (
	fieldThreadTrace        = bitfield.Field{Shift: 0, Width: 1}
	fieldWLT                = bitfield.Field{Shift: 1, Width: 1}
	fieldThreadTraceBufFull = bitfield.Field{Shift: 2, Width: 1}
	fieldRegTimestamp       = bitfield.Field{Shift: 3, Width: 1}
	fieldCmdTimestamp       = bitfield.Field{Shift: 4, Width: 1}
	fieldHostCmdOverflow    = bitfield.Field{Shift: 5, Width: 1}
	fieldHostRegOverflow    = bitfield.Field{Shift: 6, Width: 1}
	fieldImmedOverflow      = bitfield.Field{Shift: 7, Width: 1}
	fieldThreadTraceUTCErr  = bitfield.Field{Shift: 8, Width: 1}
)

// Layout of the reassembled 24-bit data.
var (
	fieldErrType       = bitfield.Field{Shift: 20, Width: 4}
	fieldDoorbellID    = bitfield.Field{Shift: 0, Width: 10}
	fieldTrapCode      = bitfield.Field{Shift: 10, Width: 9}
	fieldBadOpECode    = bitfield.Field{Shift: 10, Width: 16}
	fieldBadOpDoorbell = fieldDoorbellID
)

// PrivMask is the PRIV bit of context id 0.
const PrivMask = uint32(1) << 13

// DataWidth is the bit width of the reassembled SQ data.
const DataWidth = 24

// Data reassembles the 24-bit SQ interrupt data from the two context ids:
// ctx0[11:0] forms bits 11:0, ctx0[31:28] bits 15:12 and ctx1[7:0] bits
// 23:16.
func Data(ctx0, ctx1 uint32) uint32 {
	return (ctx0 & 0xfff) | ((ctx0 >> 16) & 0xf000) | ((ctx1 << 16) & 0xff0000)
}

// EncodingOf returns the encoding selector of ctx0.
func EncodingOf(ctx0 uint32) Encoding {
	return Encoding(fieldEncoding.Get(ctx0))
}

// Coordinates locate the wavefront that raised a Wave or Error packet.
type Coordinates struct {
	SE   uint8 `json:"se"`
	SH   uint8 `json:"sh"`
	CU   uint8 `json:"cu"`
	SIMD uint8 `json:"simd"`
	Wave uint8 `json:"wave"`
}

// AutoFlags are the SQG-generated conditions of an Auto packet.
type AutoFlags struct {
	SE                 uint8 `json:"se"`
	ThreadTrace        bool  `json:"thread_trace"`
	WLT                bool  `json:"wlt"`
	ThreadTraceBufFull bool  `json:"thread_trace_buf_full"`
	RegTimestamp       bool  `json:"reg_timestamp"`
	CmdTimestamp       bool  `json:"cmd_timestamp"`
	HostCmdOverflow    bool  `json:"host_cmd_overflow"`
	HostRegOverflow    bool  `json:"host_reg_overflow"`
	ImmedOverflow      bool  `json:"immed_overflow"`
	ThreadTraceUTCErr  bool  `json:"thread_trace_utc_error"`
}

// Payload is a decoded SQ interrupt.
type Payload struct {
	Encoding Encoding `json:"encoding"`
	// Data is the reassembled 24-bit data.
	Data uint32 `json:"data"`
	// WaveData is the 12-bit DATA field of context id 0.
	WaveData  uint32      `json:"wave_data"`
	Priv      bool        `json:"priv"`
	Coords    Coordinates `json:"coords"`
	ErrorType ErrorType   `json:"error_type"`
	Auto      AutoFlags   `json:"auto"`
}

// Decode splits an SQ interrupt into its encoding-specific fields. It is
// total over all inputs; a reserved encoding yields only Data.
func Decode(ctx0, ctx1 uint32) Payload {
	p := Payload{
		Encoding: EncodingOf(ctx0),
		Data:     Data(ctx0, ctx1),
	}

	switch p.Encoding {
	case EncodingAuto:
		p.Auto = AutoFlags{
			SE:                 uint8(fieldSEID.Get(ctx0)),
			ThreadTrace:        fieldThreadTrace.Flag(ctx0),
			WLT:                fieldWLT.Flag(ctx0),
			ThreadTraceBufFull: fieldThreadTraceBufFull.Flag(ctx0),
			RegTimestamp:       fieldRegTimestamp.Flag(ctx0),
			CmdTimestamp:       fieldCmdTimestamp.Flag(ctx0),
			HostCmdOverflow:    fieldHostCmdOverflow.Flag(ctx0),
			HostRegOverflow:    fieldHostRegOverflow.Flag(ctx0),
			ImmedOverflow:      fieldImmedOverflow.Flag(ctx0),
			ThreadTraceUTCErr:  fieldThreadTraceUTCErr.Flag(ctx0),
		}
	case EncodingWave, EncodingError:
		p.WaveData = fieldData.Get(ctx0)
		p.Priv = fieldPriv.Flag(ctx0)
		p.Coords = Coordinates{
			SE:   uint8(fieldSEID.Get(ctx0)),
			SH:   uint8(fieldSHID.Get(ctx0)),
			CU:   uint8(fieldCUID.Get(ctx0)),
			SIMD: uint8(fieldSIMDID.Get(ctx0)),
			Wave: uint8(fieldWaveID.Get(ctx0)),
		}
		if p.Encoding == EncodingError {
			p.ErrorType = ErrorType(fieldErrType.Get(p.Data))
		}
	}
	return p
}

// DoorbellID returns the debugger queue doorbell carried in the data.
func (p Payload) DoorbellID() uint32 {
	return fieldDoorbellID.Get(p.Data)
}

// TrapCode returns the debugger trap code carried in the data.
func (p Payload) TrapCode() uint32 {
	return fieldTrapCode.Get(p.Data)
}

// Decision is what the dispatcher must do with a decoded payload.
type Decision uint8

const (
	// Signal wakes the compute event keyed by the 24-bit data.
	Signal Decision = iota
	// DebugNotify hands the doorbell and trap code to the debugger; the
	// event is signaled only if the debugger did not take it.
	DebugNotify
	// Poison escalates the error and signals nothing.
	Poison
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Signal:
		return "signal"
	case DebugNotify:
		return "debug_notify"
	case Poison:
		return "poison"
	default:
		return "unknown"
	}
}

// Decision classifies the payload. Auto and reserved encodings always
// signal.
func (p Payload) Decision() Decision {
	switch p.Encoding {
	case EncodingWave:
		if p.Priv {
			return DebugNotify
		}
	case EncodingError:
		if p.ErrorType.IsPoison() {
			return Poison
		}
	}
	return Signal
}

// BadOpcodeErrorCode extracts the exception code that the command
// processor reports in context id 0 of a bad-opcode interrupt.
func BadOpcodeErrorCode(ctx0 uint32) uint32 {
	return fieldBadOpECode.Get(ctx0)
}

// BadOpcodeDoorbell extracts the queue doorbell of a bad-opcode interrupt.
func BadOpcodeDoorbell(ctx0 uint32) uint32 {
	return fieldBadOpDoorbell.Get(ctx0)
}
