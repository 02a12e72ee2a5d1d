// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package k8s

import (
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// ErrInvalidNodeName indicates a node name that is not an RFC 1123 DNS
// subdomain.
var ErrInvalidNodeName = errors.New("invalid node name")

// ValidateNodeName checks that name is a valid Kubernetes node name
// (RFC 1123 DNS subdomain). Event names embed it, so it must be checked
// before any event is posted.
func ValidateNodeName(name string) error {
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidNodeName, name, strings.Join(errs, "; "))
	}
	return nil
}
