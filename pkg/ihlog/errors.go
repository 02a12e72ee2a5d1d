// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package ihlog

import "errors"

// Sentinel errors for log parsing.
// Use errors.Is() to check for these error types.
var (
	// ErrMalformedEntry indicates text that is not eight 32-bit hex words.
	ErrMalformedEntry = errors.New("malformed ring entry")

	// ErrKmsgUnavailable indicates the kernel message buffer cannot be read.
	ErrKmsgUnavailable = errors.New("kernel message buffer unavailable")

	// ErrDmesg indicates the dmesg fallback failed.
	ErrDmesg = errors.New("dmesg failed")
)
