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
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/test/partitiontest"
)

// assemble runs the pipeline on src and requires success.
func assemble(t *testing.T, src string) *Result {
	t.Helper()
	report := diagn.NewReport()
	res, err := AssembleString(report, src, Options{})
	if err != nil {
		var sb strings.Builder
		report.Print(&sb, nil)
		t.Fatalf("assembly failed: %v\n%s", err, sb.String())
	}
	require.False(t, report.HasErrors())
	return res
}

// assembleErr runs the pipeline on src, requires failure, and returns
// the concatenated diagnostic texts.
func assembleErr(t *testing.T, src string) string {
	t.Helper()
	report := diagn.NewReport()
	res, err := AssembleString(report, src, Options{})
	require.Error(t, err)
	require.Nil(t, res)
	require.True(t, report.HasErrors())
	var texts []string
	for _, msg := range report.Messages() {
		texts = append(texts, msg.Text)
	}
	return strings.Join(texts, "\n")
}

const jmpRuledef = `
#ruledef
{
	jmp {addr: u16} =>
	{
		assert(addr < 0x100)
		0x30 @ addr` + "`8" + `
	}
	jmp {addr: u16} =>
	{
		assert(addr >= 0x100)
		0x40 @ addr
	}
	inc => 0xe8
}
`

func TestAssembleBasic(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#ruledef
{
	nop => 0xea
	lda {v: u8} => 0xa9 @ v
}
	nop
	lda 0x42
`)
	require.Equal(t, "eaa942", res.Output.FormatHexStr())
	require.Equal(t, 1, res.Iterations)
}

func TestAssembleTrailingAssertBlock(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// an assert after the value expression still gates the rule but
	// leaves the block's value intact
	res := assemble(t, `
#ruledef
{
	nop =>
	{
		0xea
		assert(1 == 1)
	}
}
	nop
`)
	require.Equal(t, "ea", res.Output.FormatHexStr())
}

func TestAssembleAssertSelectsVariant(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, jmpRuledef+`
near = 0x80
far = 0x150
	jmp near
	jmp far
	inc
`)
	require.Equal(t, "3080400150e8", res.Output.FormatHexStr())

	// the chosen rule and final size are recorded on the instruction
	ins := res.Defs.Instructions[0]
	require.Equal(t, StateResolved, ins.State)
	require.Equal(t, 16, ins.SizeBits)
	require.NotNil(t, ins.Resolution.Chosen)
	require.Equal(t, 0, ins.Resolution.Chosen.RuleIdx)
}

func TestAssembleForwardLabelConverges(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// The jmp targets a label in a later bank. Its first pass defers
	// because the target is unknown; once the label's address resolves,
	// the assert on the far variant uniquely selects the 3-byte form.
	res := assemble(t, jmpRuledef+`
#bankdef code { #addr 0x0, #size 0x100, #outp 0 }
#bankdef data { #addr 0x200, #size 0x10, #outp 0x100 }
#bank code
	jmp table
	inc
#bank data
table:
	#d8 1, 2, 3
`)
	require.Equal(t, 2, res.Iterations)

	image := res.Output.Bytes()
	require.Equal(t, 0x103, len(image))
	require.Equal(t, []byte{0x40, 0x02, 0x00, 0xe8}, image[0:4])
	require.Equal(t, []byte{1, 2, 3}, image[0x100:0x103])

	ref, ok := res.Defs.SymbolByName("table")
	require.True(t, ok)
	require.Equal(t, int64(0x200), mustInt64(t, res.Defs.Symbol(ref).Value))
}

func TestAssembleDeferredDataConverges(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// The first element refers to a constant defined from `$` after
	// both elements, so it must wait one pass for the address to fix.
	res := assemble(t, `
	#d8 first
	#d8 0xff
first = $
`)
	require.Equal(t, "02ff", res.Output.FormatHexStr())
	require.Equal(t, 2, res.Iterations)
}

func TestAssembleCircularDependency(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// end's address depends on the jmp's size, and the jmp's size
	// depends on end's value: a genuine cycle the monotone iteration
	// must report rather than guess through.
	texts := assembleErr(t, jmpRuledef+`
	jmp end
end = $
`)
	require.Contains(t, texts, "could not be resolved")
	require.Contains(t, texts, "`end`")
}

func TestAssembleNoAssertRangeMatches(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	texts := assembleErr(t, `
#ruledef
{
	jmp {addr: u16} =>
	{
		assert(addr < 0x100)
		0x30 @ addr` + "`8" + `
	}
	jmp {addr: u16} =>
	{
		assert(addr >= 0x200)
		0x40 @ addr
	}
}
target = 0x150
	jmp target
`)
	require.Contains(t, texts, "no rule matches for the given arguments")
}

func TestAssembleAmbiguousRules(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	texts := assembleErr(t, `
#ruledef
{
	nop => 0xea
	nop => 0x00
}
	nop
`)
	require.Contains(t, texts, "multiple rules match ambiguously")
}

func TestAssembleNoShapeMatch(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	texts := assembleErr(t, `
#ruledef
{
	nop => 0xea
}
	frobnicate 17
`)
	require.Contains(t, texts, "no rule matches this instruction")
}

func TestAssembleWidthMisfitPrunes(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#ruledef
{
	lda {v: u8}  => 0xa9 @ v
	lda {v: u16} => 0xad @ v
}
	lda 0x1234
`)
	require.Equal(t, "ad1234", res.Output.FormatHexStr())

	ins := res.Defs.Instructions[0]
	require.True(t, ins.Matches[0].Pruned)
	require.False(t, ins.Matches[1].Pruned)
}

func TestAssembleBankOverlap(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := diagn.NewReport()
	_, err := AssembleString(report, `
#bankdef a { #addr 0, #size 4, #outp 0 }
#bankdef b { #addr 0, #size 4, #outp 0 }
#bank a
	#d8 1
#bank b
	#d8 2
`, Options{})
	require.Error(t, err)
	require.Equal(t, 1, report.ErrorCount())
	msg := report.Messages()[0]
	require.Contains(t, msg.Text, "banks `a` and `b` overlap")
	require.Len(t, msg.Notes, 1)
}

func TestAssembleDisjointBanksDoNotOverlap(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#bankdef a { #addr 0, #size 4, #outp 0 }
#bankdef b { #addr 0, #size 4, #outp 4 }
#bank a
	#d8 1
#bank b
	#d8 2
`)
	image := res.Output.Bytes()
	require.Equal(t, 5, len(image))
	require.Equal(t, byte(1), image[0])
	require.Equal(t, byte(2), image[4])
}

func TestAssembleBankOverlapSymmetry(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// declaring the pair in either order gives the same verdict, and
	// the verdict agrees with plain interval intersection
	overlaps := func(r *rapid.T, firstOff, firstSize, secondOff, secondSize int) bool {
		src := fmt.Sprintf(`
#bankdef a { #addr 0, #size %d, #outp %d, #fill }
#bankdef b { #addr 0, #size %d, #outp %d, #fill }
`, firstSize, firstOff, secondSize, secondOff)
		report := diagn.NewReport()
		_, err := AssembleString(report, src, Options{})
		if err == nil {
			return false
		}
		require.Contains(r, report.Messages()[0].Text, "overlap")
		return true
	}

	rapid.Check(t, func(r *rapid.T) {
		offA := rapid.IntRange(0, 8).Draw(r, "offA")
		sizeA := rapid.IntRange(1, 8).Draw(r, "sizeA")
		offB := rapid.IntRange(0, 8).Draw(r, "offB")
		sizeB := rapid.IntRange(1, 8).Draw(r, "sizeB")

		want := offA < offB+sizeB && offB < offA+sizeA
		require.Equal(r, want, overlaps(r, offA, sizeA, offB, sizeB))
		require.Equal(r, want, overlaps(r, offB, sizeB, offA, sizeA))
	})
}

func TestAssembleSizeAndAddrEndConflict(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	texts := assembleErr(t, `
#bankdef x { #addr 0, #size 4, #addr_end 8 }
`)
	require.Contains(t, texts, "declares both `#size` and `#addr_end`")
}

func TestAssembleBankOverflow(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	texts := assembleErr(t, `
#bankdef tiny { #addr 0, #size 2, #outp 0 }
#bank tiny
	#d8 1, 2, 3
`)
	require.Contains(t, texts, "overflows its size")
}

func TestAssembleFill(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#bankdef rom { #addr 0, #size 8, #outp 0, #fill }
#bank rom
	#d8 0xab
`)
	require.Equal(t, []byte{0xab, 0, 0, 0, 0, 0, 0, 0}, res.Output.Bytes())
}

func TestAssembleReserveAlignAddr(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
	#d8 1
	#align 16
	#d8 2
	#addr 6
	#d8 3
`)
	require.Equal(t, []byte{1, 0, 2, 0, 0, 0, 3}, res.Output.Bytes())
}

func TestAssembleResWithConstant(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
gap = 2
	#d8 0xff
	#res gap
after:
	#d8 0xaa
`)
	require.Equal(t, []byte{0xff, 0, 0, 0xaa}, res.Output.Bytes())

	ref, ok := res.Defs.SymbolByName("after")
	require.True(t, ok)
	require.Equal(t, int64(3), mustInt64(t, res.Defs.Symbol(ref).Value))
}

func TestAssembleNestedSubruledef(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#subruledef reg
{
	a => 0b00
	b => 0b01
}
#ruledef
{
	mov {r: reg}, {v: u8} => 0b101010 @ r @ v
}
	mov a, 0x7f
	mov b, 1
`)
	require.Equal(t, []byte{0xa8, 0x7f, 0xa9, 0x01}, res.Output.Bytes())
}

func TestAssembleWideAddressUnits(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#bankdef w { #bits 16, #addr 0, #outp 0 }
#bank w
	#d16 0x1234, 0x5678
end:
`)
	require.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, res.Output.Bytes())

	// two 16-bit units: the label sits at address 2, not 4
	ref, ok := res.Defs.SymbolByName("end")
	require.True(t, ok)
	require.Equal(t, int64(2), mustInt64(t, res.Defs.Symbol(ref).Value))
}

func TestAssembleNibbleUnits(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// 4-bit units pack most significant unit first; the final partial
	// byte is padded at the low end.
	res := assemble(t, `
#bankdef n { #bits 4, #addr 0, #outp 0 }
#bank n
	#d4 1, 2, 3
`)
	require.Equal(t, []byte{0x12, 0x30}, res.Output.Bytes())
}

func TestAssembleStringData(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
	#d "Hi"
len = $
`)
	require.Equal(t, []byte{'H', 'i'}, res.Output.Bytes())

	ref, ok := res.Defs.SymbolByName("len")
	require.True(t, ok)
	require.Equal(t, int64(2), mustInt64(t, res.Defs.Symbol(ref).Value))
}

func TestAssembleLocalLabels(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#ruledef
{
	jmp {addr: u16} => 0x40 @ addr
}
first:
.loop:
	jmp .loop
second:
.loop:
	jmp .loop
`)
	require.Equal(t, []byte{0x40, 0, 0, 0x40, 0, 3}, res.Output.Bytes())
}

func TestAssembleFunctions(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	res := assemble(t, `
#fn double(x) => x * 2
	#d8 double(0x21)
`)
	require.Equal(t, []byte{0x42}, res.Output.Bytes())
}

func TestAssembleInclude(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	fs := NewMockFileServer()
	fs.Add("cpu.asm", `
#once
#ruledef
{
	nop => 0xea
}
`)
	fs.Add("main.asm", `
#include "cpu.asm"
#include "cpu.asm"
	nop
`)
	report := diagn.NewReport()
	res, err := Assemble(report, fs, "main.asm", Options{})
	require.NoError(t, err)
	require.Equal(t, []byte{0xea}, res.Output.Bytes())
}

func TestAssembleIncludeCycle(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	fs := NewMockFileServer()
	fs.Add("a.asm", `#include "b.asm"`)
	fs.Add("b.asm", `#include "a.asm"`)
	report := diagn.NewReport()
	_, err := Assemble(report, fs, "a.asm", Options{})
	require.Error(t, err)
	require.True(t, report.HasErrors())
}

func TestAssembleDeterministic(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	src := jmpRuledef + `
#bankdef code { #addr 0x0, #size 0x100, #outp 0 }
#bankdef data { #addr 0x200, #size 0x10, #outp 0x100 }
#bank code
	jmp table
	inc
#bank data
table:
	#d8 1, 2, 3
`
	first := assemble(t, src)
	second := assemble(t, src)
	require.Empty(t, cmp.Diff(first.Output.Bytes(), second.Output.Bytes()))
	require.Equal(t, first.Iterations, second.Iterations)
	for i := range first.Defs.Instructions {
		require.Equal(t,
			first.Defs.Instructions[i].Resolution.Chosen.RuleIdx,
			second.Defs.Instructions[i].Resolution.Chosen.RuleIdx)
	}
}

func TestAssembleIterationCeiling(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// A chain of constants each depending on the next resolves one
	// link per pass, so a ceiling shorter than the chain must fail
	// with unresolved-item errors instead of looping forever.
	src := `
	#d8 a
a = b + 0
b = c + 0
c = d + 0
d = $
`
	report := diagn.NewReport()
	res, err := AssembleString(report, src, Options{MaxIterations: 2})
	require.Error(t, err)
	require.Nil(t, res)

	res = assemble(t, src)
	require.Equal(t, []byte{1}, res.Output.Bytes())
}

func TestAssembleAnnotatedListing(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	fs := NewMockFileServer()
	fs.Add("main.asm", "\t#d8 0xab, 0xcd\n")
	report := diagn.NewReport()
	res, err := Assemble(report, fs, "main.asm", Options{})
	require.NoError(t, err)

	expected := " offset | address | data\n" +
		"      0 |       0 | ab                      ; 0xab\n" +
		"      1 |       1 | cd                      ; 0xcd\n"
	require.Equal(t, expected, res.Output.FormatAnnotated(fs))
}

func TestAssembleMonotonicStates(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// Resolved entities never revert and candidate sets only shrink:
	// the final store shows every instruction resolved with exactly
	// one surviving candidate out of those matched.
	res := assemble(t, jmpRuledef+`
near = 0x10
	jmp near
	inc
`)
	for _, ins := range res.Defs.Instructions {
		require.Equal(t, StateResolved, ins.State)
		require.Equal(t, 1, ins.aliveMatches())
	}
	for _, sym := range res.Defs.Symbols {
		require.Equal(t, StateResolved, sym.State)
	}
}

func mustInt64(t *testing.T, v Value) int64 {
	t.Helper()
	require.Equal(t, ValueInt, v.Kind)
	i, ok := v.Int.Int64()
	require.True(t, ok)
	return i
}
