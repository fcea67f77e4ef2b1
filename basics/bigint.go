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
	"math/big"
	"strings"
)

// WidthUnknown marks a BigInt whose bit width has not been determined.
const WidthUnknown = -1

// BigInt is an arbitrary precision integer carrying an optional bit
// width. The width records how many bits the value occupies when it is
// emitted, independently of how many bits the magnitude needs. Radix
// literals fix it at parse time (one bit per binary digit, four per hex
// digit), slices and concatenations derive it structurally, and decimal
// literals leave it unknown.
//
// BigInt values are immutable. All operations return fresh values and
// never alias the receiver's storage.
type BigInt struct {
	val   *big.Int
	width int
}

// NewBigInt returns v as a BigInt of unknown width.
func NewBigInt(v int64) BigInt {
	return BigInt{val: big.NewInt(v), width: WidthUnknown}
}

// NewBigIntFromUint64 returns v as a BigInt of unknown width.
func NewBigIntFromUint64(v uint64) BigInt {
	return BigInt{val: new(big.Int).SetUint64(v), width: WidthUnknown}
}

// BigIntFromBig copies v into a BigInt with the given width, which may
// be WidthUnknown.
func BigIntFromBig(v *big.Int, width int) BigInt {
	return BigInt{val: new(big.Int).Set(v), width: width}
}

// BigIntFromBytes interprets b as an unsigned big-endian integer with a
// width of eight bits per byte.
func BigIntFromBytes(b []byte) BigInt {
	return BigInt{val: new(big.Int).SetBytes(b), width: 8 * len(b)}
}

// big returns the backing value, tolerating the zero BigInt.
func (b BigInt) big() *big.Int {
	if b.val == nil {
		return new(big.Int)
	}
	return b.val
}

// ParseBigInt parses an integer literal in the assembler's notation.
// Accepted forms are decimal, 0x hexadecimal and 0b binary, each with
// optional underscore separators. Hex and binary literals carry a width
// of four and one bits per digit respectively; decimal literals have
// unknown width.
func ParseBigInt(text string) (BigInt, error) {
	digits := strings.ReplaceAll(text, "_", "")

	base := 10
	width := WidthUnknown
	if len(digits) >= 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X':
			base = 16
			digits = digits[2:]
			width = 4 * len(digits)
		case 'b', 'B':
			base = 2
			digits = digits[2:]
			width = len(digits)
		}
	}

	if digits == "" {
		return BigInt{}, fmt.Errorf("invalid integer literal %q", text)
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return BigInt{}, fmt.Errorf("invalid integer literal %q", text)
	}
	return BigInt{val: v, width: width}, nil
}

// Width returns the bit width, or WidthUnknown.
func (b BigInt) Width() int {
	if b.val == nil {
		return WidthUnknown
	}
	return b.width
}

// HasWidth reports whether the bit width is known.
func (b BigInt) HasWidth() bool {
	return b.Width() != WidthUnknown
}

// BigValue returns a copy of the numeric value.
func (b BigInt) BigValue() *big.Int {
	return new(big.Int).Set(b.big())
}

// Sign returns -1, 0 or 1 according to the sign of the value.
func (b BigInt) Sign() int {
	return b.big().Sign()
}

// IsZero reports whether the value is zero.
func (b BigInt) IsZero() bool {
	return b.big().Sign() == 0
}

// Cmp compares b and o numerically, ignoring widths.
func (b BigInt) Cmp(o BigInt) int {
	return b.big().Cmp(o.big())
}

// Int64 returns the value as an int64 when it fits.
func (b BigInt) Int64() (int64, bool) {
	if !b.big().IsInt64() {
		return 0, false
	}
	return b.big().Int64(), true
}

// Uint64 returns the value as a uint64 when it fits.
func (b BigInt) Uint64() (uint64, bool) {
	if !b.big().IsUint64() {
		return 0, false
	}
	return b.big().Uint64(), true
}

// ModUint64 returns the value modulo m. The result is non-negative even
// for negative values, matching Euclidean division.
func (b BigInt) ModUint64(m uint64) uint64 {
	r := new(big.Int).Mod(b.big(), new(big.Int).SetUint64(m))
	return r.Uint64()
}

// Add returns b+o with unknown width.
func (b BigInt) Add(o BigInt) BigInt {
	return BigInt{val: new(big.Int).Add(b.big(), o.big()), width: WidthUnknown}
}

// AddUint64 returns b+u with unknown width.
func (b BigInt) AddUint64(u uint64) BigInt {
	return b.Add(NewBigIntFromUint64(u))
}

// Sub returns b-o with unknown width.
func (b BigInt) Sub(o BigInt) BigInt {
	return BigInt{val: new(big.Int).Sub(b.big(), o.big()), width: WidthUnknown}
}

// Mul returns b*o with unknown width.
func (b BigInt) Mul(o BigInt) BigInt {
	return BigInt{val: new(big.Int).Mul(b.big(), o.big()), width: WidthUnknown}
}

// Neg returns -b with unknown width.
func (b BigInt) Neg() BigInt {
	return BigInt{val: new(big.Int).Neg(b.big()), width: WidthUnknown}
}

// Quo returns b/o truncated towards zero. Division by zero is an error.
func (b BigInt) Quo(o BigInt) (BigInt, error) {
	if o.IsZero() {
		return BigInt{}, fmt.Errorf("division by zero")
	}
	return BigInt{val: new(big.Int).Quo(b.big(), o.big()), width: WidthUnknown}, nil
}

// Rem returns the remainder of b/o with the sign of b. Division by zero
// is an error.
func (b BigInt) Rem(o BigInt) (BigInt, error) {
	if o.IsZero() {
		return BigInt{}, fmt.Errorf("division by zero")
	}
	return BigInt{val: new(big.Int).Rem(b.big(), o.big()), width: WidthUnknown}, nil
}

// Shl returns b<<n with unknown width.
func (b BigInt) Shl(n uint) BigInt {
	return BigInt{val: new(big.Int).Lsh(b.big(), n), width: WidthUnknown}
}

// Shr returns b>>n, an arithmetic shift, with unknown width.
func (b BigInt) Shr(n uint) BigInt {
	return BigInt{val: new(big.Int).Rsh(b.big(), n), width: WidthUnknown}
}

// matchedWidth returns the common width of two operands, or WidthUnknown
// when they differ or either is unknown.
func matchedWidth(a, b BigInt) int {
	if a.HasWidth() && a.Width() == b.Width() {
		return a.Width()
	}
	return WidthUnknown
}

// BitAnd returns b&o, following two's complement semantics for negative
// values. The width survives only when both operands agree on it.
func (b BigInt) BitAnd(o BigInt) BigInt {
	return BigInt{val: new(big.Int).And(b.big(), o.big()), width: matchedWidth(b, o)}
}

// BitOr returns b|o under the same width rules as BitAnd.
func (b BigInt) BitOr(o BigInt) BigInt {
	return BigInt{val: new(big.Int).Or(b.big(), o.big()), width: matchedWidth(b, o)}
}

// BitXor returns b^o under the same width rules as BitAnd.
func (b BigInt) BitXor(o BigInt) BigInt {
	return BigInt{val: new(big.Int).Xor(b.big(), o.big()), width: matchedWidth(b, o)}
}

// BitNot returns the bitwise complement. A value of known width w is
// complemented within w bits and keeps its width; an unsized value maps
// to -b-1.
func (b BigInt) BitNot() BigInt {
	if !b.HasWidth() {
		return BigInt{val: new(big.Int).Not(b.big()), width: WidthUnknown}
	}
	pattern := b.pattern(b.Width())
	mask := widthMask(b.Width())
	return BigInt{val: pattern.Xor(pattern, mask), width: b.Width()}
}

// widthMask returns 2^w - 1.
func widthMask(w int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(w))
	return mask.Sub(mask, big.NewInt(1))
}

// pattern returns the low w bits of the two's complement representation
// as a non-negative integer.
func (b BigInt) pattern(w int) *big.Int {
	return new(big.Int).And(b.big(), widthMask(w))
}

// Slice extracts bits hi down to lo inclusive from the two's complement
// representation. The result is the raw bit pattern, non-negative, with
// width hi-lo+1. hi must not be smaller than lo.
func (b BigInt) Slice(hi, lo int) (BigInt, error) {
	if hi < lo || lo < 0 {
		return BigInt{}, fmt.Errorf("invalid bit slice [%d:%d]", hi, lo)
	}
	w := hi - lo + 1
	shifted := new(big.Int).Rsh(b.big(), uint(lo))
	return BigInt{val: shifted.And(shifted, widthMask(w)), width: w}, nil
}

// WithWidth truncates the value to its low w bits of two's complement
// and returns the resulting bit pattern with width w.
func (b BigInt) WithWidth(w int) (BigInt, error) {
	if w < 0 {
		return BigInt{}, fmt.Errorf("invalid bit width %d", w)
	}
	return BigInt{val: b.pattern(w), width: w}, nil
}

// Concat appends o to the low end of b. Both operands must have known
// widths. The result holds b's bit pattern in the upper bits and o's in
// the lower, with width equal to the sum.
func (b BigInt) Concat(o BigInt) (BigInt, error) {
	if !b.HasWidth() || !o.HasWidth() {
		return BigInt{}, fmt.Errorf("concatenation requires operands of known size")
	}
	upper := b.pattern(b.Width())
	upper.Lsh(upper, uint(o.Width()))
	upper.Or(upper, o.pattern(o.Width()))
	return BigInt{val: upper, width: b.Width() + o.Width()}, nil
}

// FitsUnsigned reports whether 0 <= b < 2^w.
func (b BigInt) FitsUnsigned(w int) bool {
	return b.Sign() >= 0 && b.big().BitLen() <= w
}

// FitsSigned reports whether -2^(w-1) <= b < 2^(w-1).
func (b BigInt) FitsSigned(w int) bool {
	if w < 1 {
		return false
	}
	half := new(big.Int).Lsh(big.NewInt(1), uint(w-1))
	if b.big().Cmp(half) >= 0 {
		return false
	}
	half.Neg(half)
	return b.big().Cmp(half) >= 0
}

// FitsEither reports whether b fits in w bits under either the signed
// or the unsigned interpretation.
func (b BigInt) FitsEither(w int) bool {
	return b.FitsUnsigned(w) || b.FitsSigned(w)
}

// Bit returns bit i of the two's complement representation. Negative
// values sign-extend indefinitely.
func (b BigInt) Bit(i int) bool {
	return b.big().Bit(i) == 1
}

func (b BigInt) String() string {
	return b.big().String()
}
