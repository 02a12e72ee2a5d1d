// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package bitfield extracts and packs named bit-fields in fixed-width
// hardware words. Field layouts are static tables owned by the callers;
// nothing here validates them.
package bitfield

// Field describes a contiguous run of bits inside a 32-bit word.
type Field struct {
	Shift uint
	Width uint
}

// Mask returns the in-place mask of the field (already shifted).
func (f Field) Mask() uint32 {
	return mask(f.Width) << f.Shift
}

// Get extracts the field from word.
func (f Field) Get(word uint32) uint32 {
	return Extract(word, f.Shift, f.Width)
}

// Set returns word with the field replaced by value. Bits of value beyond
// the field width are discarded.
func (f Field) Set(word, value uint32) uint32 {
	return Pack(word, f.Shift, f.Width, value)
}

// Flag reports whether a single-bit field is set. For wider fields it
// reports whether any bit is set.
func (f Field) Flag(word uint32) bool {
	return f.Get(word) != 0
}

// Extract returns the width-bit value located at shift in word.
func Extract(word uint32, shift, width uint) uint32 {
	return (word >> shift) & mask(width)
}

// Pack returns word with the width-bit field at shift replaced by value.
func Pack(word uint32, shift, width uint, value uint32) uint32 {
	m := mask(width) << shift
	return (word &^ m) | ((value << shift) & m)
}

func mask(width uint) uint32 {
	if width >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << width) - 1
}
