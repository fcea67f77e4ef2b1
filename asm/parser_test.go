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
	"github.com/algorand/ruleasm/test/partitiontest"
)

func parseTestProgram(t *testing.T, src string) *AstTopLevel {
	t.Helper()
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", src)
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
	return ast
}

func parseTestProgramErr(t *testing.T, src string) *diagn.Report {
	t.Helper()
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", src)
	_, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.Error(t, err)
	require.True(t, report.HasErrors())
	return report
}

func TestParseProgramShape(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ast := parseTestProgram(t, `
#bankdef ram { #addr 0x8000, #size 0x100, #outp 0 }
#bank ram
#ruledef
{
	nop => 0xea
}
start:
	nop
value = 1 + 2
	#d8 1, 2
	#res 4
`)
	require.Len(t, ast.Nodes, 8)
	require.IsType(t, &AstDirectiveBankdef{}, ast.Nodes[0])
	require.IsType(t, &AstDirectiveBank{}, ast.Nodes[1])
	require.IsType(t, &AstDirectiveRuledef{}, ast.Nodes[2])
	require.IsType(t, &AstSymbol{}, ast.Nodes[3])
	require.IsType(t, &AstInstruction{}, ast.Nodes[4])
	require.IsType(t, &AstSymbol{}, ast.Nodes[5])
	require.IsType(t, &AstDirectiveData{}, ast.Nodes[6])
	require.IsType(t, &AstDirectiveRes{}, ast.Nodes[7])

	bankdef := ast.Nodes[0].(*AstDirectiveBankdef)
	require.Equal(t, "ram", bankdef.Name)
	require.NotNil(t, bankdef.AddrStart)
	require.NotNil(t, bankdef.SizeUnits)
	require.NotNil(t, bankdef.OutputOffset)
	require.Nil(t, bankdef.AddrEnd)
	require.False(t, bankdef.Fill)

	label := ast.Nodes[3].(*AstSymbol)
	require.Equal(t, AstSymbolLabel, label.Kind)
	require.Equal(t, "start", label.Name)

	constant := ast.Nodes[5].(*AstSymbol)
	require.Equal(t, AstSymbolConstant, constant.Kind)
	require.Equal(t, "value", constant.Name)
	require.NotNil(t, constant.Value)

	data := ast.Nodes[6].(*AstDirectiveData)
	require.Equal(t, 8, data.ElemWidth)
	require.Len(t, data.Elems, 2)
}

func TestParseNestedSymbols(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ast := parseTestProgram(t, `
top:
.inner:
.limit = 4
other:
.inner:
`)
	names := make([]string, 0, len(ast.Nodes))
	for _, node := range ast.Nodes {
		names = append(names, node.(*AstSymbol).Name)
	}
	require.Equal(t, []string{"top", "top.inner", "top.limit", "other", "other.inner"}, names)
}

func TestParseNestedSymbolWithoutParent(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := parseTestProgramErr(t, ".orphan:\n")
	require.Contains(t, report.Messages()[0].Text, "no enclosing label")
}

func TestParseRuledef(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ast := parseTestProgram(t, `
#ruledef
{
	ld {v: u8} => 0xa9 @ v
	st {addr: u16}, x => 0x8e @ addr
}
`)
	rd := ast.Nodes[0].(*AstDirectiveRuledef)
	require.False(t, rd.IsSubruledef)
	require.Len(t, rd.Rules, 2)

	first := rd.Rules[0]
	require.Len(t, first.Params, 1)
	require.Equal(t, "v", first.Params[0].Name)
	require.Equal(t, "u8", first.Params[0].TypeName)
	require.Len(t, first.Parts, 2)
	require.False(t, first.Parts[0].IsParam)
	require.True(t, first.Parts[1].IsParam)

	second := rd.Rules[1]
	require.Len(t, second.Params, 1)
	// pattern: st, slot, comma, x
	require.Len(t, second.Parts, 4)
}

func TestParseBlockBraceOnNextLine(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// the opening brace of a ruledef or bankdef block may sit on its
	// own line below the directive
	ast := parseTestProgram(t, `
#bankdef ram
{
	#addr 0x0, #size 0x10, #outp 0
}
#ruledef
{
	nop => 0xea
}
`)
	bd := ast.Nodes[0].(*AstDirectiveBankdef)
	require.Equal(t, "ram", bd.Name)
	require.NotNil(t, bd.SizeUnits)
	rd := ast.Nodes[1].(*AstDirectiveRuledef)
	require.Len(t, rd.Rules, 1)
}

func TestParseRuleErrors(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	parseTestProgramErr(t, "#ruledef\n{\n => 1\n}\n")
	parseTestProgramErr(t, "#ruledef\n{\n nop\n}\n")
	parseTestProgramErr(t, "#ruledef\n{\n nop => 1\n")
	parseTestProgramErr(t, "#ruledef\n{\n ld {v: u8} {v: u8} => v\n}\n")
}

func TestParseMultiLineRule(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ast := parseTestProgram(t, `
#ruledef
{
	jmp {addr: u16} =>
	{
		assert(addr < 0x100)
		0x30 @ addr` + "`8" + `
	}
}
`)
	rd := ast.Nodes[0].(*AstDirectiveRuledef)
	require.Len(t, rd.Rules, 1)
	block, ok := rd.Rules[0].Production.(*ExprBlock)
	require.True(t, ok)
	require.Len(t, block.Exprs, 2)
}

func TestParseUnknownDirective(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := parseTestProgramErr(t, "#frobnicate 1\n")
	require.Contains(t, report.Messages()[0].Text, "unknown directive")
}

func TestParseBankdefErrors(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := parseTestProgramErr(t, "#bankdef x { #addr 0, #addr 1 }\n")
	require.Contains(t, report.Messages()[0].Text, "duplicate field")

	report = parseTestProgramErr(t, "#bankdef x { #wat 0 }\n")
	require.Contains(t, report.Messages()[0].Text, "unknown bankdef field")

	parseTestProgramErr(t, "#bankdef x { #addr 0\n")
}

func TestParseErrorRecovery(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// the parser reports the bad line and still parses the rest
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", "#frobnicate\nok = 1\n#wat\nother = 2\n")
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.Error(t, err)
	require.Nil(t, ast)
	require.Equal(t, 2, report.ErrorCount())
}

func TestParseIncludeMissingFile(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := parseTestProgramErr(t, "#include \"nope.asm\"\n")
	require.Contains(t, report.Messages()[0].Text, "file not found")
}

func TestParseIncludeRelative(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	// includes resolve relative to the including file
	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("sub/inner.asm", "x = 1\n")
	fs.Add("sub/outer.asm", "#include \"inner.asm\"\n")
	fs.Add("main.asm", "#include \"sub/outer.asm\"\n")
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 0)
	require.NoError(t, err)
	require.Len(t, ast.Nodes, 1)
	require.Equal(t, "x", ast.Nodes[0].(*AstSymbol).Name)
}

func TestParseIncludeDepthLimit(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := diagn.NewReport()
	fs := NewMockFileServer()
	fs.Add("main.asm", "#include \"a.asm\"\n")
	fs.Add("a.asm", "#include \"b.asm\"\n")
	fs.Add("b.asm", "x = 1\n")

	_, err := parseAndResolveIncludes(report, fs, "main.asm", 2)
	require.Error(t, err)
	require.Contains(t, report.Messages()[0].Text, "nested deeper than 2")

	// a deep enough limit admits the same chain
	report = diagn.NewReport()
	ast, err := parseAndResolveIncludes(report, fs, "main.asm", 3)
	require.NoError(t, err)
	require.Len(t, ast.Nodes, 1)
}

func TestParseExprFromTokens(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	report := diagn.NewReport()
	toks := tokenize(report, "test.asm", "1 + 2")
	require.False(t, report.HasErrors())

	e, ok := parseExprFromTokens(toks[:len(toks)-1], "")
	require.True(t, ok)
	require.IsType(t, &ExprBinary{}, e)

	// partial consumption is a failure: `1 + 2 ,` is not one expression
	toks = tokenize(report, "test.asm", "1 + 2 ,")
	_, ok = parseExprFromTokens(toks[:len(toks)-1], "")
	require.False(t, ok)

	_, ok = parseExprFromTokens(nil, "")
	require.False(t, ok)
}

func TestParseDataDirectiveWidths(t *testing.T) {
	partitiontest.PartitionTest(t)
	t.Parallel()

	ast := parseTestProgram(t, "#d 1\n#d8 1\n#d16 1\n#d32 1\n")
	widths := []int{basics.WidthUnknown, 8, 16, 32}
	for i, want := range widths {
		require.Equal(t, want, ast.Nodes[i].(*AstDirectiveData).ElemWidth)
	}
}
