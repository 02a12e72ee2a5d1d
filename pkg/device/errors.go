// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package device

import "errors"

// Sentinel errors for collaborator operations.
// Use errors.Is() to check for these error types.
var (
	// ErrNotImplemented indicates a method is not implemented.
	// Returned by the Unimplemented* embeddables.
	ErrNotImplemented = errors.New("method not implemented")

	// ErrEventAlreadyMarked indicates the RAS event was already recorded
	// by another path. Callers abort quietly on this error.
	ErrEventAlreadyMarked = errors.New("RAS event already marked")

	// ErrMissingCollaborator indicates a required collaborator is nil.
	ErrMissingCollaborator = errors.New("missing collaborator")

	// ErrInvalidIPVersion indicates an IP version string did not parse.
	ErrInvalidIPVersion = errors.New("invalid IP version")

	// ErrInvalidResetMode indicates a reset mode name did not parse.
	ErrInvalidResetMode = errors.New("invalid reset mode")

	// ErrUnknownProcess indicates no process is attached for a PASID.
	ErrUnknownProcess = errors.New("unknown process")
)
