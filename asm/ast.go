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
	"github.com/algorand/ruleasm/diagn"
)

// AstNode is one top-level statement. Nodes carry the ItemRef handles
// assigned by the declaration and definition passes, so later stages
// can walk the tree in program order and look items up in the store.
type AstNode interface {
	Span() diagn.Span
}

// AstTopLevel is the parsed program with all includes spliced in, in
// program order.
type AstTopLevel struct {
	Nodes []AstNode
}

// AstDirectiveBankdef declares a bank. All fields except Fill hold
// expressions and may be nil when the field was not given.
type AstDirectiveBankdef struct {
	span     diagn.Span
	Name     string
	NameSpan diagn.Span

	AddrUnit     Expr
	LabelAlign   Expr
	AddrStart    Expr
	AddrEnd      Expr
	SizeUnits    Expr
	OutputOffset Expr
	Fill         bool

	AddrEndSpan diagn.Span
	SizeSpan    diagn.Span
	FillSpan    diagn.Span

	Ref ItemRef[Bankdef]
}

// AstDirectiveBank switches the current bank.
type AstDirectiveBank struct {
	span     diagn.Span
	Name     string
	NameSpan diagn.Span
	Ref      ItemRef[Bankdef]
}

// AstDirectiveBits changes the current bank's address unit size.
type AstDirectiveBits struct {
	span  diagn.Span
	Value Expr
}

// AstDirectiveLabelAlign changes the current bank's label alignment.
type AstDirectiveLabelAlign struct {
	span  diagn.Span
	Value Expr
}

// AstDirectiveRuledef declares a rule set. Subruledefs never take part
// in top-level matching; they are only reachable as parameter types.
type AstDirectiveRuledef struct {
	span         diagn.Span
	Name         string
	NameSpan     diagn.Span
	IsSubruledef bool
	Rules        []*AstRule
	Ref          ItemRef[Ruledef]
}

// AstRule is one `pattern => production` entry of a ruledef.
type AstRule struct {
	span       diagn.Span
	Parts      []AstRulePatternPart
	Params     []AstRuleParameter
	Production Expr
}

func (r *AstRule) Span() diagn.Span { return r.span }

// AstRulePatternPart is either a literal token or a parameter slot.
type AstRulePatternPart struct {
	IsParam  bool
	Token    Token
	ParamIdx int
}

// AstRuleParameter is a `{name: type}` slot declaration.
type AstRuleParameter struct {
	span     diagn.Span
	Name     string
	TypeName string
	TypeSpan diagn.Span
}

// AstDirectiveFn declares a callable helper function.
type AstDirectiveFn struct {
	span     diagn.Span
	Name     string
	NameSpan diagn.Span
	Params   []AstFnParameter
	Body     Expr
	Ref      ItemRef[Function]
}

// AstFnParameter is one parameter name of a function declaration.
type AstFnParameter struct {
	span diagn.Span
	Name string
}

// AstDirectiveData emits literal data. ElemWidth is the per-element
// width for the sized forms (#d8, #d16, ...) and basics.WidthUnknown
// for the self-sized #d.
type AstDirectiveData struct {
	span      diagn.Span
	ElemWidth int
	Elems     []Expr
	Refs      []ItemRef[DataElement]
}

// AstDirectiveRes reserves address units without emitting bytes.
type AstDirectiveRes struct {
	span  diagn.Span
	Value Expr
	Ref   ItemRef[ResDirective]
}

// AstDirectiveAlign pads the current bank to a bit-count multiple.
type AstDirectiveAlign struct {
	span  diagn.Span
	Value Expr
	Ref   ItemRef[ResDirective]
}

// AstDirectiveAddr pads the current bank forward to a target address.
type AstDirectiveAddr struct {
	span  diagn.Span
	Value Expr
	Ref   ItemRef[ResDirective]
}

// AstSymbolKind distinguishes constants from labels.
type AstSymbolKind int

const (
	// AstSymbolConstant is `name = expr`.
	AstSymbolConstant AstSymbolKind = iota
	// AstSymbolLabel is `name:`.
	AstSymbolLabel
)

// AstSymbol declares a constant or label. Name is the full hierarchical
// name; Hierarchy counts the leading dots written in the source.
type AstSymbol struct {
	span      diagn.Span
	NameSpan  diagn.Span
	Name      string
	Hierarchy int
	Kind      AstSymbolKind
	Value     Expr
	Ref       ItemRef[Symbol]
}

// AstInstruction is a line of instruction tokens to be matched against
// the program's ruledefs. LabelCtx is the enclosing global label at the
// instruction's position, needed to resolve dotted names inside its
// arguments.
type AstInstruction struct {
	span     diagn.Span
	Tokens   []Token
	LabelCtx string
	Ref      ItemRef[Instruction]
}

func (n *AstDirectiveBankdef) Span() diagn.Span    { return n.span }
func (n *AstDirectiveBank) Span() diagn.Span       { return n.span }
func (n *AstDirectiveBits) Span() diagn.Span       { return n.span }
func (n *AstDirectiveLabelAlign) Span() diagn.Span { return n.span }
func (n *AstDirectiveRuledef) Span() diagn.Span    { return n.span }
func (n *AstDirectiveFn) Span() diagn.Span         { return n.span }
func (n *AstDirectiveData) Span() diagn.Span       { return n.span }
func (n *AstDirectiveRes) Span() diagn.Span        { return n.span }
func (n *AstDirectiveAlign) Span() diagn.Span      { return n.span }
func (n *AstDirectiveAddr) Span() diagn.Span       { return n.span }
func (n *AstSymbol) Span() diagn.Span              { return n.span }
func (n *AstInstruction) Span() diagn.Span         { return n.span }
