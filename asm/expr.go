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

// Expr is one node of a parsed expression tree.
type Expr interface {
	Span() diagn.Span
}

// ExprLiteral is an integer or string literal. String literals are
// folded at parse time into an integer holding the UTF-8 bytes, most
// significant byte first, with a width of eight bits per byte.
type ExprLiteral struct {
	span  diagn.Span
	Value basics.BigInt
}

// ExprVariable references a symbol or a rule parameter by name. For
// nested symbols the name is already joined with its enclosing label
// ("global.local"); Hierarchy records the number of leading dots the
// source used.
type ExprVariable struct {
	span      diagn.Span
	Hierarchy int
	Name      string
}

// ExprCurAddr is the `$` operand, the address of the item being
// evaluated.
type ExprCurAddr struct {
	span diagn.Span
}

// UnaryOp enumerates prefix operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
)

// ExprUnary applies a prefix operator.
type ExprUnary struct {
	span    diagn.Span
	Op      UnaryOp
	Operand Expr
}

// BinaryOp enumerates infix operators.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryShl
	BinaryShr
	BinaryBitAnd
	BinaryBitOr
	BinaryBitXor
	BinaryConcat
	BinaryEq
	BinaryNe
	BinaryLt
	BinaryLe
	BinaryGt
	BinaryGe
	BinaryAnd
	BinaryOr
)

// ExprBinary applies an infix operator.
type ExprBinary struct {
	span   diagn.Span
	Op     BinaryOp
	OpSpan diagn.Span
	Lhs    Expr
	Rhs    Expr
}

// ExprSlice extracts bits Hi down to Lo of its operand, as in x[7:0].
type ExprSlice struct {
	span    diagn.Span
	Hi      int
	Lo      int
	Operand Expr
}

// ExprWidth truncates its operand to a fixed bit width, as in x`16.
type ExprWidth struct {
	span    diagn.Span
	Width   int
	Operand Expr
}

// ExprBlock is a brace-delimited sequence of expressions. Its value is
// the value of the last expression; assert calls in between gate the
// result.
type ExprBlock struct {
	span  diagn.Span
	Exprs []Expr
}

// ExprCall invokes the builtin assert or a user-defined function.
type ExprCall struct {
	span     diagn.Span
	Name     string
	NameSpan diagn.Span
	Args     []Expr
}

func (e *ExprLiteral) Span() diagn.Span  { return e.span }
func (e *ExprVariable) Span() diagn.Span { return e.span }
func (e *ExprCurAddr) Span() diagn.Span  { return e.span }
func (e *ExprUnary) Span() diagn.Span    { return e.span }
func (e *ExprBinary) Span() diagn.Span   { return e.span }
func (e *ExprSlice) Span() diagn.Span    { return e.span }
func (e *ExprWidth) Span() diagn.Span    { return e.span }
func (e *ExprBlock) Span() diagn.Span    { return e.span }
func (e *ExprCall) Span() diagn.Span     { return e.span }

// ValueKind discriminates Value variants.
type ValueKind int

const (
	// ValueVoid is the result of a bare assert and of empty blocks.
	ValueVoid ValueKind = iota
	ValueInt
	ValueBool
)

// Value is the result of evaluating an expression.
type Value struct {
	Kind ValueKind
	Int  basics.BigInt
	Bool bool
}

// IntValue wraps an integer.
func IntValue(i basics.BigInt) Value {
	return Value{Kind: ValueInt, Int: i}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

// VoidValue returns the void value.
func VoidValue() Value {
	return Value{Kind: ValueVoid}
}

// TypeName names the value's kind for error messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case ValueInt:
		return "integer"
	case ValueBool:
		return "bool"
	default:
		return "void"
	}
}
