// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

// Sentinel errors for profile loading.
var (
	// ErrReadProfile indicates the profile file could not be read.
	ErrReadProfile = errors.New("cannot read device profile")

	// ErrParseProfile indicates the profile is not valid YAML for the schema.
	ErrParseProfile = errors.New("cannot parse device profile")

	// ErrInvalidProfile indicates the profile failed validation.
	ErrInvalidProfile = errors.New("invalid device profile")
)
