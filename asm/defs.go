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
	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
)

// ItemRef names one entry of a definition kind inside an ItemDefs
// store. Entities reference each other through these handles instead of
// pointers, so an instruction can name its bank and a rule parameter
// can name a ruledef without forming ownership cycles.
type ItemRef[T any] struct {
	index int
}

// Index returns the position of the referenced item in its store slice.
func (r ItemRef[T]) Index() int {
	return r.index
}

func makeRef[T any](index int) ItemRef[T] {
	return ItemRef[T]{index: index}
}

// ResolutionState tracks how far the resolver got with an item. States
// only move forward: Unresolved becomes Resolved or Failed and neither
// terminal state is ever left again.
type ResolutionState int

const (
	// StateUnresolved means the item still waits for a dependency.
	StateUnresolved ResolutionState = iota
	// StateResolved means the item has its final value and size.
	StateResolved
	// StateFailed means a fatal error was reported for the item.
	StateFailed
)

// placement records where an item lands inside its bank. Offsets are in
// bits from the bank's start address and become known once every
// preceding item in the bank has a known size.
type placement struct {
	Bank        ItemRef[Bankdef]
	OffsetBits  int
	OffsetKnown bool
	SizeBits    int
	SizeKnown   bool
}

// bankItemKind discriminates the entries of a bank's placement list.
type bankItemKind int

const (
	bankItemInstruction bankItemKind = iota
	bankItemData
	bankItemRes
)

type bankItem struct {
	kind  bankItemKind
	index int
}

// Bankdef describes one addressable memory region. The zero-index bank
// of every store is the implicit default target with an 8-bit address
// unit, start address 0, unbounded size and output offset 0.
type Bankdef struct {
	Name string
	Span diagn.Span

	// AddrUnit is the number of bits per address unit.
	AddrUnit int
	// LabelAlign, when nonzero, requires label addresses to be
	// multiples of this many address units.
	LabelAlign uint64
	AddrStart  basics.BigInt
	// SizeUnits caps the bank's capacity in address units when HasSize
	// is set.
	SizeUnits uint64
	HasSize   bool
	// OutputOffset is the bank's byte offset in the final image. Banks
	// without HasOutput contribute no output bytes.
	OutputOffset uint64
	HasOutput    bool
	// Fill extends the output with zeros up to the declared size.
	Fill bool

	items  []bankItem
	placed bool
}

// Ruledef is a named, ordered list of instruction-encoding rules.
// Subruledefs are only reachable as parameter types and never take part
// in top-level matching.
type Ruledef struct {
	Name         string
	Span         diagn.Span
	IsSubruledef bool
	Rules        []*Rule
}

// Rule is one `pattern => production` entry of a ruledef.
type Rule struct {
	Span       diagn.Span
	Parts      []RulePatternPart
	Params     []RuleParameter
	Production Expr
}

// RulePatternPart is either a literal token or a parameter slot. For
// slots, ParamIdx indexes the rule's Params.
type RulePatternPart struct {
	IsParam  bool
	Token    Token
	ParamIdx int
}

// RuleParameterKind classifies a parameter slot's declared type.
type RuleParameterKind int

const (
	// ParamUnsigned is u<N>: the argument must fit N bits unsigned.
	ParamUnsigned RuleParameterKind = iota
	// ParamSigned is s<N>: the argument must fit N bits two's complement.
	ParamSigned
	// ParamEither is i<N>: either interpretation may fit.
	ParamEither
	// ParamRuledef makes the slot a nested sub-instruction matched
	// against another ruledef.
	ParamRuledef
)

// RuleParameterType is the declared type of one parameter slot.
type RuleParameterType struct {
	Kind    RuleParameterKind
	Width   int
	Ruledef ItemRef[Ruledef]
}

// RuleParameter is one `{name: type}` slot of a rule pattern.
type RuleParameter struct {
	Name string
	Span diagn.Span
	Type RuleParameterType
}

// Function is a `#fn` helper callable from expressions.
type Function struct {
	Name   string
	Span   diagn.Span
	Params []string
	Body   Expr
}

// SymbolKind distinguishes constants from labels.
type SymbolKind int

const (
	// SymbolConstant is a `name = expr` value.
	SymbolConstant SymbolKind = iota
	// SymbolLabel takes the bank address cursor at its declaration.
	SymbolLabel
)

// Symbol is a named value holder. Labels derive their value from the
// address cursor of Bank at their declaration point.
type Symbol struct {
	Name      string
	Hierarchy int
	Kind      SymbolKind
	Span      diagn.Span
	NameSpan  diagn.Span

	// Expr is the defining expression of a constant; nil for labels.
	Expr Expr
	Bank ItemRef[Bankdef]

	State ResolutionState
	Value Value
}

// InstructionArgumentKind discriminates candidate argument bindings.
type InstructionArgumentKind int

const (
	// ArgumentExpr binds the slot to a parsed sub-expression.
	ArgumentExpr InstructionArgumentKind = iota
	// ArgumentNested binds the slot to a nested sub-instruction match.
	ArgumentNested
)

// InstructionArgument binds one parameter slot of a candidate match to
// either a sub-expression or a nested match, without committing to a
// concrete value.
type InstructionArgument struct {
	Kind   InstructionArgumentKind
	Expr   Expr
	Nested *InstructionMatch
	Span   diagn.Span
}

// InstructionMatch is one shape-compatible rule plus its bound
// arguments. Candidates are pruned permanently once an assert fails or
// a known argument does not fit its declared width.
type InstructionMatch struct {
	Ruledef ItemRef[Ruledef]
	RuleIdx int
	Args    []InstructionArgument

	// StaticWidth is the encoding width deducible from the pattern
	// alone, or basics.WidthUnknown.
	StaticWidth int

	Pruned bool
	// PruneErr records the genuine evaluation error that disqualified
	// the candidate, if the prune was not an assert or width misfit.
	PruneErr error
}

func (m *InstructionMatch) rule(defs *ItemDefs) *Rule {
	return defs.Ruledef(m.Ruledef).Rules[m.RuleIdx]
}

// InstructionMatchResolution records the accepted candidate and its
// final encoding.
type InstructionMatchResolution struct {
	Chosen *InstructionMatch
	Value  basics.BigInt
}

// Instruction is one assembly-instruction site.
type Instruction struct {
	Span     diagn.Span
	Tokens   []Token
	LabelCtx string

	Matches    []*InstructionMatch
	Resolution InstructionMatchResolution
	State      ResolutionState
	placement
}

func (ins *Instruction) aliveMatches() int {
	n := 0
	for _, m := range ins.Matches {
		if !m.Pruned {
			n++
		}
	}
	return n
}

// DataElement is one operand of a `#d` directive. ElemWidth is the
// declared per-element width, or basics.WidthUnknown for the self-sized
// form.
type DataElement struct {
	Span      diagn.Span
	Expr      Expr
	ElemWidth int

	State ResolutionState
	Value basics.BigInt
	placement
}

// ResKind distinguishes the byte-free gap directives.
type ResKind int

const (
	// ResReserve skips a number of address units.
	ResReserve ResKind = iota
	// ResAlign pads to a bit-count multiple.
	ResAlign
	// ResAddr pads forward to an explicit address.
	ResAddr
)

// ResDirective reserves space without emitting bytes. Its size may
// depend on expressions and on the cursor position, so it resolves
// through the same deferral machinery as everything else.
type ResDirective struct {
	Span diagn.Span
	Kind ResKind
	Expr Expr

	State ResolutionState
	placement
}

// ItemDefs owns every declared entity of a compilation, addressed by
// ItemRef. Entities are created during the collect and define passes,
// mutated in place by the resolver, and read-only afterwards.
type ItemDefs struct {
	Banks        []*Bankdef
	Ruledefs     []*Ruledef
	Functions    []*Function
	Symbols      []*Symbol
	Instructions []*Instruction
	DataElems    []*DataElement
	ResDirs      []*ResDirective

	banksByName     map[string]ItemRef[Bankdef]
	ruledefsByName  map[string]ItemRef[Ruledef]
	functionsByName map[string]ItemRef[Function]
	symbolsByName   map[string]ItemRef[Symbol]
}

// NewItemDefs returns a store holding only the implicit default bank.
func NewItemDefs() *ItemDefs {
	defs := &ItemDefs{
		banksByName:     make(map[string]ItemRef[Bankdef]),
		ruledefsByName:  make(map[string]ItemRef[Ruledef]),
		functionsByName: make(map[string]ItemRef[Function]),
		symbolsByName:   make(map[string]ItemRef[Symbol]),
	}
	defs.addBank(&Bankdef{
		Name:      "#default",
		AddrUnit:  8,
		AddrStart: basics.NewBigInt(0),
		HasOutput: true,
	})
	return defs
}

// Bank returns the referenced bank definition.
func (d *ItemDefs) Bank(ref ItemRef[Bankdef]) *Bankdef { return d.Banks[ref.index] }

// Ruledef returns the referenced rule set.
func (d *ItemDefs) Ruledef(ref ItemRef[Ruledef]) *Ruledef { return d.Ruledefs[ref.index] }

// Function returns the referenced function definition.
func (d *ItemDefs) Function(ref ItemRef[Function]) *Function { return d.Functions[ref.index] }

// Symbol returns the referenced symbol.
func (d *ItemDefs) Symbol(ref ItemRef[Symbol]) *Symbol { return d.Symbols[ref.index] }

// Instruction returns the referenced instruction site.
func (d *ItemDefs) Instruction(ref ItemRef[Instruction]) *Instruction {
	return d.Instructions[ref.index]
}

// DataElem returns the referenced data element.
func (d *ItemDefs) DataElem(ref ItemRef[DataElement]) *DataElement { return d.DataElems[ref.index] }

// ResDir returns the referenced reservation directive.
func (d *ItemDefs) ResDir(ref ItemRef[ResDirective]) *ResDirective { return d.ResDirs[ref.index] }

// BankByName looks a bank up in the declaration namespace.
func (d *ItemDefs) BankByName(name string) (ItemRef[Bankdef], bool) {
	ref, ok := d.banksByName[name]
	return ref, ok
}

// RuledefByName looks a rule set up in the declaration namespace.
func (d *ItemDefs) RuledefByName(name string) (ItemRef[Ruledef], bool) {
	ref, ok := d.ruledefsByName[name]
	return ref, ok
}

// FunctionByName looks a function up in the declaration namespace.
func (d *ItemDefs) FunctionByName(name string) (ItemRef[Function], bool) {
	ref, ok := d.functionsByName[name]
	return ref, ok
}

// SymbolByName looks a symbol up by its full hierarchical name.
func (d *ItemDefs) SymbolByName(name string) (ItemRef[Symbol], bool) {
	ref, ok := d.symbolsByName[name]
	return ref, ok
}

func (d *ItemDefs) addBank(b *Bankdef) ItemRef[Bankdef] {
	d.Banks = append(d.Banks, b)
	return makeRef[Bankdef](len(d.Banks) - 1)
}

func (d *ItemDefs) addRuledef(r *Ruledef) ItemRef[Ruledef] {
	d.Ruledefs = append(d.Ruledefs, r)
	return makeRef[Ruledef](len(d.Ruledefs) - 1)
}

func (d *ItemDefs) addFunction(f *Function) ItemRef[Function] {
	d.Functions = append(d.Functions, f)
	return makeRef[Function](len(d.Functions) - 1)
}

func (d *ItemDefs) addSymbol(s *Symbol) ItemRef[Symbol] {
	d.Symbols = append(d.Symbols, s)
	return makeRef[Symbol](len(d.Symbols) - 1)
}

func (d *ItemDefs) addInstruction(ins *Instruction) ItemRef[Instruction] {
	d.Instructions = append(d.Instructions, ins)
	return makeRef[Instruction](len(d.Instructions) - 1)
}

func (d *ItemDefs) addDataElem(e *DataElement) ItemRef[DataElement] {
	d.DataElems = append(d.DataElems, e)
	return makeRef[DataElement](len(d.DataElems) - 1)
}

func (d *ItemDefs) addResDir(r *ResDirective) ItemRef[ResDirective] {
	d.ResDirs = append(d.ResDirs, r)
	return makeRef[ResDirective](len(d.ResDirs) - 1)
}
