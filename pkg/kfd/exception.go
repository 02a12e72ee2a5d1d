// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

// ExceptionCode is a debugger exception code.
type ExceptionCode uint32

// Debugger exception codes.
const (
	ECNone                                   ExceptionCode = 0
	ECQueueWaveAbort                         ExceptionCode = 1
	ECQueueWaveTrap                          ExceptionCode = 2
	ECQueueWaveMathError                     ExceptionCode = 3
	ECQueueWaveIllegalInstruction            ExceptionCode = 4
	ECQueueWaveMemoryViolation               ExceptionCode = 5
	ECQueueWaveApertureViolation             ExceptionCode = 6
	ECQueuePacketDispatchDimInvalid          ExceptionCode = 16
	ECQueuePacketDispatchGroupSegmentInvalid ExceptionCode = 17
	ECQueuePacketDispatchCodeInvalid         ExceptionCode = 18
	ECQueuePacketReserved                    ExceptionCode = 19
	ECQueuePacketUnsupported                 ExceptionCode = 20
	ECQueuePacketDispatchWorkGroupInvalid    ExceptionCode = 21
	ECQueuePacketDispatchRegisterInvalid     ExceptionCode = 22
	ECQueuePacketVendorUnsupported           ExceptionCode = 23
	ECQueuePreemptionError                   ExceptionCode = 30
	ECQueueNew                               ExceptionCode = 31
	ECDeviceQueueDelete                      ExceptionCode = 32
	ECDeviceMemoryViolation                  ExceptionCode = 33
	ECDeviceRASError                         ExceptionCode = 34
	ECDeviceFatalHalt                        ExceptionCode = 35
	ECDeviceNew                              ExceptionCode = 36
	ECProcessRuntime                         ExceptionCode = 48
	ECProcessDeviceRemove                    ExceptionCode = 49
)

// IsPacket reports whether the code is a queue packet exception.
func (c ExceptionCode) IsPacket() bool {
	return c >= ECQueuePacketDispatchDimInvalid && c <= ECQueuePacketVendorUnsupported
}

// Mask returns the single-bit exception mask for c.
func (c ExceptionCode) Mask() uint64 {
	if c == ECNone || c > 64 {
		return 0
	}
	return 1 << (c - 1)
}
