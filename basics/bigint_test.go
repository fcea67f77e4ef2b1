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
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/ruleasm/test/partitiontest"
)

func mustParse(t *testing.T, text string) BigInt {
	t.Helper()
	v, err := ParseBigInt(text)
	require.NoError(t, err)
	return v
}

func TestParseBigIntRadixWidths(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	cases := []struct {
		text  string
		value int64
		width int
	}{
		{"0", 0, WidthUnknown},
		{"42", 42, WidthUnknown},
		{"1_000_000", 1000000, WidthUnknown},
		{"0x0", 0, 4},
		{"0xff", 255, 8},
		{"0x00ff", 255, 16},
		{"0xDE_AD", 0xdead, 16},
		{"0b1", 1, 1},
		{"0b0101", 5, 4},
		{"0b1010_1010", 0xaa, 8},
	}
	for _, tc := range cases {
		v := mustParse(t, tc.text)
		got, ok := v.Int64()
		require.True(t, ok, tc.text)
		require.Equal(t, tc.value, got, tc.text)
		require.Equal(t, tc.width, v.Width(), tc.text)
	}
}

func TestParseBigIntErrors(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	for _, text := range []string{"0x", "0b", "0xzz", "0b12", "1a"} {
		_, err := ParseBigInt(text)
		require.Error(t, err, text)
	}
}

func TestBigIntZeroValue(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	var zero BigInt
	require.True(t, zero.IsZero())
	require.False(t, zero.HasWidth())
	require.Equal(t, 0, zero.Cmp(NewBigInt(0)))
	require.Equal(t, "0", zero.String())
}

func TestBigIntSlice(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	v := mustParse(t, "0x1234")

	s, err := v.Slice(11, 4)
	require.NoError(t, err)
	got, _ := s.Int64()
	require.Equal(t, int64(0x23), got)
	require.Equal(t, 8, s.Width())

	s, err = v.Slice(3, 0)
	require.NoError(t, err)
	got, _ = s.Int64()
	require.Equal(t, int64(4), got)
	require.Equal(t, 4, s.Width())

	_, err = v.Slice(0, 4)
	require.Error(t, err)
	_, err = v.Slice(4, -1)
	require.Error(t, err)

	// negative values slice their two's complement pattern
	s, err = NewBigInt(-1).Slice(7, 0)
	require.NoError(t, err)
	got, _ = s.Int64()
	require.Equal(t, int64(0xff), got)
}

func TestBigIntConcat(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	a := mustParse(t, "0x12")
	b := mustParse(t, "0x34")
	joined, err := a.Concat(b)
	require.NoError(t, err)
	got, _ := joined.Int64()
	require.Equal(t, int64(0x1234), got)
	require.Equal(t, 16, joined.Width())

	_, err = NewBigInt(1).Concat(b)
	require.Error(t, err)
	_, err = a.Concat(NewBigInt(1))
	require.Error(t, err)
}

func TestBigIntWithWidth(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	v, err := mustParse(t, "0x1234").WithWidth(8)
	require.NoError(t, err)
	got, _ := v.Int64()
	require.Equal(t, int64(0x34), got)
	require.Equal(t, 8, v.Width())

	// negative values truncate to their two's complement pattern
	v, err = NewBigInt(-1).WithWidth(4)
	require.NoError(t, err)
	got, _ = v.Int64()
	require.Equal(t, int64(0xf), got)

	_, err = NewBigInt(1).WithWidth(-1)
	require.Error(t, err)
}

func TestBigIntFits(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	require.True(t, NewBigInt(255).FitsUnsigned(8))
	require.False(t, NewBigInt(256).FitsUnsigned(8))
	require.False(t, NewBigInt(-1).FitsUnsigned(8))

	require.True(t, NewBigInt(127).FitsSigned(8))
	require.False(t, NewBigInt(128).FitsSigned(8))
	require.True(t, NewBigInt(-128).FitsSigned(8))
	require.False(t, NewBigInt(-129).FitsSigned(8))

	require.True(t, NewBigInt(255).FitsEither(8))
	require.True(t, NewBigInt(-128).FitsEither(8))
	require.False(t, NewBigInt(256).FitsEither(8))
	require.False(t, NewBigInt(-129).FitsEither(8))
}

func TestBigIntBitNot(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	v := mustParse(t, "0xf0").BitNot()
	got, _ := v.Int64()
	require.Equal(t, int64(0x0f), got)
	require.Equal(t, 8, v.Width())

	v = NewBigInt(0).BitNot()
	got, _ = v.Int64()
	require.Equal(t, int64(-1), got)
	require.False(t, v.HasWidth())
}

func TestBigIntModUint64(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	require.Equal(t, uint64(1), NewBigInt(7).ModUint64(3))
	require.Equal(t, uint64(2), NewBigInt(-7).ModUint64(3))
	require.Equal(t, uint64(0), NewBigInt(0).ModUint64(3))
}

func TestBigIntImmutability(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	a := NewBigInt(5)
	b := NewBigInt(3)
	_ = a.Add(b)
	_ = a.BitNot()
	_, _ = a.WithWidth(2)
	got, _ := a.Int64()
	require.Equal(t, int64(5), got)
}

func TestBigIntSliceConcatRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	rapid.Check(t, func(r *rapid.T) {
		value := rapid.Int64Range(0, 1<<40).Draw(r, "value")
		split := rapid.IntRange(1, 39).Draw(r, "split")

		v, err := NewBigInt(value).WithWidth(40)
		require.NoError(r, err)

		hi, err := v.Slice(39, split)
		require.NoError(r, err)
		lo, err := v.Slice(split-1, 0)
		require.NoError(r, err)

		joined, err := hi.Concat(lo)
		require.NoError(r, err)
		require.Equal(r, 40, joined.Width())
		require.Equal(r, 0, joined.Cmp(v))
	})
}

func TestBigIntFitsWidthConsistency(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	rapid.Check(t, func(r *rapid.T) {
		value := rapid.Int64Range(-1<<32, 1<<32).Draw(r, "value")
		w := rapid.IntRange(1, 40).Draw(r, "w")

		v := NewBigInt(value)
		truncated, err := v.WithWidth(w)
		require.NoError(r, err)
		require.Equal(r, w, truncated.Width())
		require.True(r, truncated.FitsUnsigned(w))

		// a value that fits unsigned survives truncation unchanged
		if v.FitsUnsigned(w) {
			require.Equal(r, 0, truncated.Cmp(v))
		}
	})
}
