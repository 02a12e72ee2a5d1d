// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package k8s

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNodeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "valid simple name", input: "node1", valid: true},
		{name: "valid DNS subdomain with dots", input: "node1.example.com", valid: true},
		{name: "valid name with dashes", input: "gpu-node-01", valid: true},
		{name: "max length valid", input: strings.Repeat("a", 253), valid: true},
		{name: "empty string", input: ""},
		{name: "starts with dash", input: "-invalid"},
		{name: "ends with dash", input: "invalid-"},
		{name: "contains uppercase", input: "Node1"},
		{name: "contains underscore", input: "node_1"},
		{name: "contains space", input: "node 1"},
		{name: "too long", input: strings.Repeat("a", 254)},
		{name: "path injection attempt", input: "../etc/passwd"},
		{name: "dot segment", input: "node..name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidNodeName)
		})
	}
}
