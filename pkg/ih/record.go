// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package ih decodes SOC15 interrupt handler ring entries.
//
// A ring entry is eight little-endian 32-bit words. Word 0 carries the
// source, client, ring and VMID; word 3 carries the PASID and node id;
// words 4 through 7 are the class-specific context ids.
package ih

import (
	"fmt"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/bitfield"
)

// EntryWords is the number of 32-bit words in one ring entry.
const EntryWords = 8

// Record is one raw interrupt handler ring entry.
type Record [EntryWords]uint32

// Word indexes inside a Record.
const (
	wordIDs     = 0
	wordPASID   = 3
	wordContext = 4
)

// Field layout of the SOC15 ring entry.
var (
	FieldSourceID = bitfield.Field{Shift: 0, Width: 8}
	FieldClientID = bitfield.Field{Shift: 8, Width: 8}
	FieldRingID   = bitfield.Field{Shift: 16, Width: 8}
	FieldVMID     = bitfield.Field{Shift: 24, Width: 4}
	FieldVMIDType = bitfield.Field{Shift: 31, Width: 1}
	FieldPASID    = bitfield.Field{Shift: 0, Width: 16}
	FieldNodeID   = bitfield.Field{Shift: 16, Width: 8}
)

// Header is the decoded view of a Record.
type Header struct {
	SourceID   SourceID
	ClientID   ClientID
	RingID     uint8
	VMID       uint8
	VMIDType   uint8
	PASID      uint16
	NodeID     uint8
	ContextID0 uint32
	ContextID1 uint32
	ContextID2 uint32
	ContextID3 uint32
}

// Decode extracts the header fields from r. It never fails; whatever bits
// are present are reported.
func Decode(r *Record) Header {
	ids := r[wordIDs]
	pasid := r[wordPASID]
	return Header{
		SourceID:   SourceID(FieldSourceID.Get(ids)),
		ClientID:   ClientID(FieldClientID.Get(ids)),
		RingID:     uint8(FieldRingID.Get(ids)),
		VMID:       uint8(FieldVMID.Get(ids)),
		VMIDType:   uint8(FieldVMIDType.Get(ids)),
		PASID:      uint16(FieldPASID.Get(pasid)),
		NodeID:     uint8(FieldNodeID.Get(pasid)),
		ContextID0: r[wordContext],
		ContextID1: r[wordContext+1],
		ContextID2: r[wordContext+2],
		ContextID3: r[wordContext+3],
	}
}

// SourceID returns only the source id of r.
func (r *Record) SourceID() SourceID { return SourceID(FieldSourceID.Get(r[wordIDs])) }

// ClientID returns only the client id of r.
func (r *Record) ClientID() ClientID { return ClientID(FieldClientID.Get(r[wordIDs])) }

// VMID returns only the VMID of r.
func (r *Record) VMID() uint8 { return uint8(FieldVMID.Get(r[wordIDs])) }

// PASID returns only the PASID of r.
func (r *Record) PASID() uint16 { return uint16(FieldPASID.Get(r[wordPASID])) }

// NodeID returns only the node id of r.
func (r *Record) NodeID() uint8 { return uint8(FieldNodeID.Get(r[wordPASID])) }

// ContextID0 returns word 4 of r.
func (r *Record) ContextID0() uint32 { return r[wordContext] }

// SetPASID overwrites the PASID field of r, leaving the node id intact.
func (r *Record) SetPASID(pasid uint16) {
	r[wordPASID] = FieldPASID.Set(r[wordPASID], uint32(pasid))
}

// PageAddress returns the faulting page number carried by memory hub
// faults: the low 32 bits in word 4 and bits 32-35 in word 5.
func (r *Record) PageAddress() uint64 {
	return uint64(r[wordContext]) | uint64(r[wordContext+1]&0xf)<<32
}

// String formats the raw words the way the kernel driver dumps them.
func (r *Record) String() string {
	return fmt.Sprintf("%8X, %8X, %8X, %8X, %8X, %8X, %8X, %8X.",
		r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7])
}

// Builder assembles records for tests and tooling.
type Builder struct {
	rec Record
}

// NewBuilder starts an empty record.
func NewBuilder() *Builder {
	return &Builder{}
}

// Client sets the client id.
func (b *Builder) Client(c ClientID) *Builder {
	b.rec[wordIDs] = FieldClientID.Set(b.rec[wordIDs], uint32(c))
	return b
}

// Source sets the source id.
func (b *Builder) Source(s SourceID) *Builder {
	b.rec[wordIDs] = FieldSourceID.Set(b.rec[wordIDs], uint32(s))
	return b
}

// Ring sets the ring id.
func (b *Builder) Ring(id uint8) *Builder {
	b.rec[wordIDs] = FieldRingID.Set(b.rec[wordIDs], uint32(id))
	return b
}

// VMID sets the VMID.
func (b *Builder) VMID(id uint8) *Builder {
	b.rec[wordIDs] = FieldVMID.Set(b.rec[wordIDs], uint32(id))
	return b
}

// PASID sets the PASID.
func (b *Builder) PASID(id uint16) *Builder {
	b.rec.SetPASID(id)
	return b
}

// Node sets the node id.
func (b *Builder) Node(id uint8) *Builder {
	b.rec[wordPASID] = FieldNodeID.Set(b.rec[wordPASID], uint32(id))
	return b
}

// Context sets context id n (0-3).
func (b *Builder) Context(n int, v uint32) *Builder {
	b.rec[wordContext+n] = v
	return b
}

// Record returns a copy of the assembled record.
func (b *Builder) Record() Record {
	return b.rec
}
