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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/logging"
	"github.com/algorand/ruleasm/test/partitiontest"
)

// matchProgram runs the pipeline up to and including shape matching.
func matchProgram(t *testing.T, src string) *ItemDefs {
	t.Helper()
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", src)
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.NoError(t, err)
	defs := NewItemDefs()
	require.NoError(t, collectDecls(report, ast, defs))
	require.NoError(t, define(report, ast, defs))
	require.NoError(t, matchAll(report, logging.Base(), defs))
	return defs
}

func TestMatchShapeOnly(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// matching never evaluates values: the argument is out of range
	// for u8, yet the rule still shape-matches
	defs := matchProgram(t, `
#ruledef
{
	lda {v: u8} => 0xa9 @ v
}
	lda 0x12345
`)
	require.Len(t, defs.Instructions, 1)
	require.Len(t, defs.Instructions[0].Matches, 1)
	require.False(t, defs.Instructions[0].Matches[0].Pruned)
}

func TestMatchMultipleCandidates(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	defs := matchProgram(t, `
#ruledef
{
	jmp {addr: u8}  => 0x30 @ addr
	jmp {addr: u16} => 0x40 @ addr
	nop             => 0xea
}
	jmp target
	nop
`)
	require.Len(t, defs.Instructions, 2)

	jmp := defs.Instructions[0]
	require.Len(t, jmp.Matches, 2)
	require.Equal(t, 0, jmp.Matches[0].RuleIdx)
	require.Equal(t, 1, jmp.Matches[1].RuleIdx)
	require.Equal(t, 16, jmp.Matches[0].StaticWidth)
	require.Equal(t, 24, jmp.Matches[1].StaticWidth)

	nop := defs.Instructions[1]
	require.Len(t, nop.Matches, 1)
	require.Equal(t, 8, nop.Matches[0].StaticWidth)
}

func TestMatchLiteralTokens(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// literal pattern tokens compare by excerpt, so `inx` does not
	// accidentally take `iny` rules
	defs := matchProgram(t, `
#ruledef
{
	inx => 0xe8
	iny => 0xc8
}
	inx
`)
	require.Len(t, defs.Instructions[0].Matches, 1)
	require.Equal(t, 0, defs.Instructions[0].Matches[0].RuleIdx)
}

func TestMatchGreedyExprSlot(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// the slot takes the longest run that still lets the rest of the
	// pattern match: `1 + 2` is one argument, the comma separates it
	// from the second
	defs := matchProgram(t, `
#ruledef
{
	add {a: u8}, {b: u8} => 0x60 @ a @ b
}
	add 1 + 2, 3
`)
	ins := defs.Instructions[0]
	require.Len(t, ins.Matches, 1)
	require.Len(t, ins.Matches[0].Args, 2)
	require.IsType(t, &ExprBinary{}, ins.Matches[0].Args[0].Expr)
	require.IsType(t, &ExprLiteral{}, ins.Matches[0].Args[1].Expr)
}

func TestMatchParenthesizedArgument(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	defs := matchProgram(t, `
#ruledef
{
	ld {addr: u16} => 0xad @ addr
}
	ld (base + 1) * 2
`)
	require.Len(t, defs.Instructions[0].Matches, 1)
}

func TestMatchNestedRuledef(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	defs := matchProgram(t, `
#subruledef reg
{
	a => 0b00
	b => 0b01
}
#ruledef
{
	mov {r: reg}, {v: u8} => 0b101010 @ r @ v
}
	mov a, 5
`)
	ins := defs.Instructions[0]
	require.Len(t, ins.Matches, 1)

	arg := ins.Matches[0].Args[0]
	require.Equal(t, ArgumentNested, arg.Kind)
	require.NotNil(t, arg.Nested)
	require.Equal(t, 0, arg.Nested.RuleIdx)
	require.Equal(t, 16, ins.Matches[0].StaticWidth)
}

func TestMatchNestedAlternatives(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// two sub-rules accept the same token, so the instruction gets one
	// candidate per sub-rule; values decide between them later
	defs := matchProgram(t, `
#subruledef mode
{
	x => 0b0
	x => 0b1
}
#ruledef
{
	tst {m: mode} => 0x50 @ m
}
	tst x
`)
	require.Len(t, defs.Instructions[0].Matches, 2)
}

func TestMatchSubruledefNotTopLevel(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// subruledef rules are only reachable through parameter slots
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", `
#subruledef reg
{
	a => 0b00
}
	a
`)
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.NoError(t, err)
	defs := NewItemDefs()
	require.NoError(t, collectDecls(report, ast, defs))
	require.NoError(t, define(report, ast, defs))
	err = matchAll(report, logging.Base(), defs)
	require.Error(t, err)
	require.Contains(t, report.Messages()[0].Text, "no rule matches this instruction")
}

func TestMatchStaticWidthUnknown(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// a production whose width depends on argument values cannot be
	// deduced from the pattern
	defs := matchProgram(t, `
#ruledef
{
	ld {v: u8} => 0xa9 + v
}
	ld 5
`)
	require.Equal(t, basics.WidthUnknown, defs.Instructions[0].Matches[0].StaticWidth)
}
