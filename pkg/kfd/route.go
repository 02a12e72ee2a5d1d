// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import "github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"

// Route is the action an admitted record is dispatched to.
type Route uint8

const (
	RouteNone Route = iota
	RouteEventWake
	RouteSQMessage
	RouteBadOpcode
	RouteSDMATrap
	RoutePoison
	RouteVMFault
	RouteFenceDrain

	numRoutes
)

var routeNames = [numRoutes]string{
	RouteNone:       "none",
	RouteEventWake:  "event_wake",
	RouteSQMessage:  "sq_message",
	RouteBadOpcode:  "bad_opcode",
	RouteSDMATrap:   "sdma_trap",
	RoutePoison:     "poison",
	RouteVMFault:    "vm_fault",
	RouteFenceDrain: "fence_drain",
}

// String returns the route label used in logs and metrics.
func (r Route) String() string {
	if r < numRoutes {
		return routeNames[r]
	}
	return "unknown"
}

// MarshalText encodes the route as its label.
func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Routes returns every route in declaration order.
func Routes() []Route {
	routes := make([]Route, 0, numRoutes)
	for r := RouteNone; r < numRoutes; r++ {
		routes = append(routes, r)
	}
	return routes
}

// Classify maps a decoded record to its route. The decision only depends
// on the client and source ids.
func Classify(h ih.Header) Route {
	return ClassifyIDs(h.ClientID, h.SourceID)
}

// ClassifyIDs maps a client and source pair to its route.
func ClassifyIDs(client ih.ClientID, source ih.SourceID) Route {
	switch {
	case client.IsGraphics():
		switch source {
		case ih.SourceCPEndOfPipe:
			return RouteEventWake
		case ih.SourceSQInterruptMsg:
			return RouteSQMessage
		case ih.SourceCPBadOpcode:
			return RouteBadOpcode
		}
	case client.IsSDMA():
		switch source {
		case ih.SourceSDMATrap:
			return RouteSDMATrap
		case ih.SourceSDMAECC:
			return RoutePoison
		}
	case client.IsMemoryHub():
		if source == ih.SourceVMCUTCL2Poison {
			return RoutePoison
		}
		return RouteVMFault
	case ih.IsFence(client, source):
		return RouteFenceDrain
	}
	return RouteNone
}
