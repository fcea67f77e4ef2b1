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

package asm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/test/partitiontest"
)

func parseTestExpr(t *testing.T, src string) Expr {
	t.Helper()
	report := diagn.NewReport()
	toks := tokenize(report, "test.asm", src)
	require.False(t, report.HasErrors())
	e, ok := parseExprFromTokens(toks[:len(toks)-1], "")
	require.True(t, ok, "failed to parse %q", src)
	return e
}

// testProvider resolves names from a fixed map. Unknown names defer, as
// a resolver mid-iteration would.
type testProvider struct {
	vals map[string]Value
	addr *basics.BigInt
	fns  map[string]*Function
}

func (p *testProvider) symbolValue(name string, hierarchy int, span diagn.Span) (Value, error) {
	if v, ok := p.vals[name]; ok {
		return v, nil
	}
	return Value{}, errUnresolved
}

func (p *testProvider) curAddress(span diagn.Span) (Value, error) {
	if p.addr == nil {
		return Value{}, errUnresolved
	}
	return IntValue(*p.addr), nil
}

func (p *testProvider) functionDef(name string) (*Function, bool) {
	fn, ok := p.fns[name]
	return fn, ok
}

func evalTestExpr(t *testing.T, src string, p evalProvider) (Value, error) {
	t.Helper()
	if p == nil {
		p = &testProvider{}
	}
	return evalExpr(parseTestExpr(t, src), p)
}

func requireInt(t *testing.T, src string, want int64, wantWidth int) {
	t.Helper()
	v, err := evalTestExpr(t, src, nil)
	require.NoError(t, err)
	require.Equal(t, ValueInt, v.Kind)
	got, ok := v.Int.Int64()
	require.True(t, ok)
	require.Equal(t, want, got, "value of %q", src)
	require.Equal(t, wantWidth, v.Int.Width(), "width of %q", src)
}

func requireBool(t *testing.T, src string, want bool) {
	t.Helper()
	v, err := evalTestExpr(t, src, nil)
	require.NoError(t, err)
	require.Equal(t, BoolValue(want), v, "value of %q", src)
}

func TestEvalLiteralWidths(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	requireInt(t, "42", 42, basics.WidthUnknown)
	requireInt(t, "0x1f", 31, 8)
	requireInt(t, "0b101", 5, 3)
	requireInt(t, "0x00ff", 255, 16)
	requireInt(t, "1_000", 1000, basics.WidthUnknown)
}

func TestEvalArithmetic(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	requireInt(t, "2 + 3 * 4", 14, basics.WidthUnknown)
	requireInt(t, "(2 + 3) * 4", 20, basics.WidthUnknown)
	requireInt(t, "7 / 2", 3, basics.WidthUnknown)
	requireInt(t, "7 % 2", 1, basics.WidthUnknown)
	requireInt(t, "-5 + 3", -2, basics.WidthUnknown)
	requireInt(t, "1 << 4 | 0xf", 31, basics.WidthUnknown)
	requireInt(t, "0x80 >> 3", 16, basics.WidthUnknown)
}

func TestEvalStructural(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	requireInt(t, "0x12 @ 0x34", 0x1234, 16)
	requireInt(t, "0x1234[11:4]", 0x23, 8)
	requireInt(t, "0x1234`8", 0x34, 8)
	requireInt(t, "0x1234[3:0] @ 0b01", 0b010001, 6)
	requireInt(t, "~0xf0", 0x0f, 8)
	requireInt(t, "(-1)`4", 0xf, 4)
}

func TestEvalComparisons(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	requireBool(t, "1 < 2", true)
	requireBool(t, "2 <= 2", true)
	requireBool(t, "3 > 4", false)
	requireBool(t, "1 == 1", true)
	requireBool(t, "1 != 1", false)
	requireBool(t, "!(1 == 2)", true)
	requireBool(t, "1 < 2 && 2 < 3", true)
	requireBool(t, "1 < 2 || 5 < 3", true)
}

func TestEvalConcatUnknownWidth(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	_, err := evalTestExpr(t, "1 @ 0x34", nil)
	require.Error(t, err)
	require.True(t, isHardError(err))
}

func TestEvalDivisionByZero(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	_, err := evalTestExpr(t, "1 / 0", nil)
	require.Error(t, err)
	require.True(t, isHardError(err))
	var ee *evalError
	require.True(t, errors.As(err, &ee))
	require.Contains(t, ee.msg, "division by zero")
}

func TestEvalDeferredSymbol(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	_, err := evalTestExpr(t, "missing + 1", nil)
	require.ErrorIs(t, err, errUnresolved)
	require.False(t, isHardError(err))
}

func TestEvalLogicalDominance(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// a dominant known operand decides the result while the other side
	// is still deferred
	v, err := evalTestExpr(t, "u == 1 || 1 == 1", nil)
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)

	v, err = evalTestExpr(t, "u == 1 && 1 == 2", nil)
	require.NoError(t, err)
	require.Equal(t, BoolValue(false), v)

	_, err = evalTestExpr(t, "u == 1 && 1 == 1", nil)
	require.ErrorIs(t, err, errUnresolved)

	_, err = evalTestExpr(t, "u == 1 || 1 == 2", nil)
	require.ErrorIs(t, err, errUnresolved)
}

func TestEvalAssert(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	v, err := evalTestExpr(t, "{\n assert(1 == 1) \n 5 \n}", nil)
	require.NoError(t, err)
	require.Equal(t, ValueInt, v.Kind)

	_, err = evalTestExpr(t, "{\n assert(1 == 2) \n 5 \n}", nil)
	var af *assertFailedError
	require.True(t, errors.As(err, &af))
}

func TestEvalBlockTrailingAssert(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// a passing assert yields void and must not displace the block's
	// value when it comes last
	v, err := evalTestExpr(t, "{\n 5 \n assert(1 == 1) \n}", nil)
	require.NoError(t, err)
	require.Equal(t, ValueInt, v.Kind)
	got, ok := v.Int.Int64()
	require.True(t, ok)
	require.Equal(t, int64(5), got)

	_, err = evalTestExpr(t, "{\n 5 \n assert(1 == 2) \n}", nil)
	var af *assertFailedError
	require.True(t, errors.As(err, &af))
}

func TestEvalAssertAfterDeferred(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// a deferred statement must not mask a later assert whose inputs
	// are known, so candidates get pruned as early as possible
	_, err := evalTestExpr(t, "{\n assert(u == 1) \n assert(1 == 2) \n 5 \n}", nil)
	var af *assertFailedError
	require.True(t, errors.As(err, &af))
}

func TestEvalSymbolsAndCurAddr(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	addr := basics.NewBigInt(0x100)
	p := &testProvider{
		vals: map[string]Value{"base": IntValue(basics.NewBigInt(7))},
		addr: &addr,
	}
	v, err := evalExpr(parseTestExpr(t, "base + $"), p)
	require.NoError(t, err)
	got, ok := v.Int.Int64()
	require.True(t, ok)
	require.Equal(t, int64(0x107), got)

	_, err = evalExpr(parseTestExpr(t, "$"), &testProvider{})
	require.ErrorIs(t, err, errUnresolved)
}

func TestEvalFunctions(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	p := &testProvider{fns: map[string]*Function{
		"double": {Name: "double", Params: []string{"x"}, Body: parseTestExpr(t, "x * 2")},
	}}

	v, err := evalExpr(parseTestExpr(t, "double(4) + double(1)"), p)
	require.NoError(t, err)
	got, ok := v.Int.Int64()
	require.True(t, ok)
	require.Equal(t, int64(10), got)

	_, err = evalExpr(parseTestExpr(t, "double(1, 2)"), p)
	require.True(t, isHardError(err))

	_, err = evalExpr(parseTestExpr(t, "nosuch(1)"), p)
	require.True(t, isHardError(err))
}

func TestEvalRecursionDepth(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	p := &testProvider{fns: map[string]*Function{}}
	p.fns["loop"] = &Function{Name: "loop", Body: parseTestExpr(t, "loop()")}

	_, err := evalExpr(parseTestExpr(t, "loop()"), p)
	require.True(t, isHardError(err))
	var ee *evalError
	require.True(t, errors.As(err, &ee))
	require.Contains(t, ee.msg, "call depth")
}

type widthMap map[string]int

func (m widthMap) variableWidth(name string, hierarchy int) (int, bool) {
	w, ok := m[name]
	return w, ok
}

func TestStaticWidth(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	cases := []struct {
		src   string
		width int
		known bool
	}{
		{"0xa9", 8, true},
		{"42", 0, false},
		{"x`16", 16, true},
		{"x[7:0]", 8, true},
		{"0xa9 @ v", 16, true},
		{"0xa9 @ w", 0, false},
		{"v @ v @ v", 24, true},
		{"v + 1", 0, false},
		{"{\n assert(v == 0) \n 0x30 @ v \n}", 16, true},
		{"{\n 0x30 @ v \n assert(v == 0) \n}", 16, true},
	}
	wr := widthMap{"v": 8}
	for _, tc := range cases {
		w, ok := staticWidth(parseTestExpr(t, tc.src), wr)
		require.Equal(t, tc.known, ok, "staticWidth(%q)", tc.src)
		if tc.known {
			require.Equal(t, tc.width, w, "staticWidth(%q)", tc.src)
		}
	}
}
