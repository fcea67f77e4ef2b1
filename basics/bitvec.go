// Copyright (C) 2019-2025 Algorand, Inc.
// This file is part of ruleasm
//
// ruleasm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// ruleasm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with ruleasm.  If not, see <https://www.gnu.org/licenses/>.

package basics

import (
	"fmt"
)

// BitVec is a growable bit buffer addressed most significant bit first.
// Bit 0 is the highest bit of the first output byte. Reads past the end
// return zero and writes past the end grow the buffer, so sparse images
// come out zero filled.
type BitVec struct {
	bits []bool
}

// NewBitVec returns an empty bit buffer.
func NewBitVec() *BitVec {
	return &BitVec{}
}

// Len returns the current length in bits.
func (v *BitVec) Len() int {
	return len(v.bits)
}

// EnsureLen grows the buffer with zero bits until it holds at least n.
func (v *BitVec) EnsureLen(n int) {
	for len(v.bits) < n {
		v.bits = append(v.bits, false)
	}
}

// SetBit sets bit i, growing the buffer as needed.
func (v *BitVec) SetBit(i int, bit bool) {
	v.EnsureLen(i + 1)
	v.bits[i] = bit
}

// GetBit returns bit i, or false past the end.
func (v *BitVec) GetBit(i int) bool {
	if i >= len(v.bits) {
		return false
	}
	return v.bits[i]
}

// WriteBigIntAt writes val's bit pattern at position pos, most
// significant bit first. val must have a known width.
func (v *BitVec) WriteBigIntAt(pos int, val BigInt) error {
	w := val.Width()
	if w == WidthUnknown {
		return fmt.Errorf("cannot emit value of unknown size")
	}
	v.EnsureLen(pos + w)
	for i := 0; i < w; i++ {
		v.bits[pos+i] = val.Bit(w - 1 - i)
	}
	return nil
}

// Truncate shortens the buffer to n bits if it is longer.
func (v *BitVec) Truncate(n int) {
	if n < len(v.bits) {
		v.bits = v.bits[:n]
	}
}

// Bytes packs the bits into bytes, most significant bit first. A final
// partial byte is padded with zeros at the low end.
func (v *BitVec) Bytes() []byte {
	out := make([]byte, DivCeil(len(v.bits), 8))
	for i, bit := range v.bits {
		if bit {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}
