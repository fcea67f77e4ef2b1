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
	"fmt"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/util"
)

// Evaluation distinguishes three outcomes. A nil error carries a value.
// errUnresolved means a dependency is not known yet and the caller
// should retry on a later pass. Any other error is a genuine problem:
// an assertFailedError disqualifies the enclosing rule candidate, and
// an evalError is reported to the user.

// errUnresolved signals a dependency that is not resolved yet.
var errUnresolved = errors.New("unresolved dependency")

// assertFailedError marks an assert whose condition evaluated to false
// with fully known inputs.
type assertFailedError struct {
	span diagn.Span
}

func (e *assertFailedError) Error() string {
	return "assertion failed"
}

// evalError is a genuine evaluation error carrying its location.
type evalError struct {
	span diagn.Span
	msg  string
}

func (e *evalError) Error() string {
	return e.msg
}

func evalErrorf(span diagn.Span, format string, args ...interface{}) *evalError {
	return &evalError{span: span, msg: fmt.Sprintf(format, args...)}
}

// isHardError reports whether err should stop retrying: anything other
// than a deferred dependency.
func isHardError(err error) bool {
	return err != nil && !errors.Is(err, errUnresolved)
}

// reportEvalError forwards an evaluation error to the report, falling
// back to the given span when the error carries no location.
func reportEvalError(report *diagn.Report, err error, fallback diagn.Span) {
	var ee *evalError
	if errors.As(err, &ee) {
		report.Errorf(ee.span, "%s", ee.msg)
		return
	}
	var af *assertFailedError
	if errors.As(err, &af) {
		report.Errorf(af.span, "assertion failed")
		return
	}
	report.Errorf(fallback, "%v", err)
}

// evalProvider supplies the ambient context of an evaluation: symbol
// values, the current address, and function definitions.
type evalProvider interface {
	symbolValue(name string, hierarchy int, span diagn.Span) (Value, error)
	curAddress(span diagn.Span) (Value, error)
	functionDef(name string) (*Function, bool)
}

// scopeProvider layers parameter bindings over a parent provider. All
// names in declared shadow the parent; a declared name without a bound
// value defers, so partially bound rule candidates can still run the
// asserts whose inputs are known.
type scopeProvider struct {
	parent   evalProvider
	declared util.Set[string]
	values   map[string]Value
}

func newScopeProvider(parent evalProvider) *scopeProvider {
	return &scopeProvider{
		parent:   parent,
		declared: make(util.Set[string]),
		values:   make(map[string]Value),
	}
}

func (s *scopeProvider) declare(name string) {
	s.declared.Add(name)
}

func (s *scopeProvider) bind(name string, v Value) {
	s.declared.Add(name)
	s.values[name] = v
}

func (s *scopeProvider) symbolValue(name string, hierarchy int, span diagn.Span) (Value, error) {
	if hierarchy == 0 && s.declared.Contains(name) {
		if v, ok := s.values[name]; ok {
			return v, nil
		}
		return Value{}, errUnresolved
	}
	return s.parent.symbolValue(name, hierarchy, span)
}

func (s *scopeProvider) curAddress(span diagn.Span) (Value, error) {
	return s.parent.curAddress(span)
}

func (s *scopeProvider) functionDef(name string) (*Function, bool) {
	return s.parent.functionDef(name)
}

// constProvider rejects everything, for contexts that require a value
// computable from literals alone, such as bankdef fields.
type constProvider struct{}

func (constProvider) symbolValue(name string, hierarchy int, span diagn.Span) (Value, error) {
	return Value{}, evalErrorf(span, "expression must be constant")
}

func (constProvider) curAddress(span diagn.Span) (Value, error) {
	return Value{}, evalErrorf(span, "`$` is not allowed here")
}

func (constProvider) functionDef(name string) (*Function, bool) {
	return nil, false
}

// maxEvalDepth bounds nested function calls, so a recursive function
// definition terminates with an error instead of hanging resolution.
const maxEvalDepth = 64

// maxShiftBits bounds shift amounts, keeping pathological expressions
// from allocating unbounded integers.
const maxShiftBits = 1 << 20

type evaluator struct {
	provider evalProvider
	depth    int
}

// evalExpr evaluates e against the provider. See the package comment on
// the three outcome classes.
func evalExpr(e Expr, p evalProvider) (Value, error) {
	ev := evaluator{provider: p}
	return ev.eval(e)
}

func (ev *evaluator) eval(e Expr) (Value, error) {
	switch n := e.(type) {
	case *ExprLiteral:
		return IntValue(n.Value), nil

	case *ExprVariable:
		return ev.provider.symbolValue(n.Name, n.Hierarchy, n.Span())

	case *ExprCurAddr:
		return ev.provider.curAddress(n.Span())

	case *ExprUnary:
		return ev.evalUnary(n)

	case *ExprBinary:
		return ev.evalBinary(n)

	case *ExprSlice:
		v, err := ev.eval(n.Operand)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != ValueInt {
			return Value{}, evalErrorf(n.Operand.Span(), "cannot slice a %s", v.TypeName())
		}
		sliced, err := v.Int.Slice(n.Hi, n.Lo)
		if err != nil {
			return Value{}, evalErrorf(n.Span(), "%v", err)
		}
		return IntValue(sliced), nil

	case *ExprWidth:
		v, err := ev.eval(n.Operand)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != ValueInt {
			return Value{}, evalErrorf(n.Operand.Span(), "cannot size a %s", v.TypeName())
		}
		sized, err := v.Int.WithWidth(n.Width)
		if err != nil {
			return Value{}, evalErrorf(n.Span(), "%v", err)
		}
		return IntValue(sized), nil

	case *ExprBlock:
		return ev.evalBlock(n)

	case *ExprCall:
		return ev.evalCall(n)
	}

	return Value{}, evalErrorf(e.Span(), "cannot evaluate this expression")
}

func (ev *evaluator) evalUnary(n *ExprUnary) (Value, error) {
	v, err := ev.eval(n.Operand)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case UnaryNeg:
		if v.Kind != ValueInt {
			return Value{}, evalErrorf(n.Operand.Span(), "cannot negate a %s", v.TypeName())
		}
		return IntValue(v.Int.Neg()), nil
	case UnaryNot:
		if v.Kind != ValueBool {
			return Value{}, evalErrorf(n.Operand.Span(), "`!` expects a bool, found %s", v.TypeName())
		}
		return BoolValue(!v.Bool), nil
	default:
		if v.Kind != ValueInt {
			return Value{}, evalErrorf(n.Operand.Span(), "`~` expects an integer, found %s", v.TypeName())
		}
		return IntValue(v.Int.BitNot()), nil
	}
}

func (ev *evaluator) evalBinary(n *ExprBinary) (Value, error) {
	lv, lerr := ev.eval(n.Lhs)
	rv, rerr := ev.eval(n.Rhs)

	if n.Op == BinaryAnd || n.Op == BinaryOr {
		return ev.evalLogical(n, lv, lerr, rv, rerr)
	}

	if isHardError(lerr) {
		return Value{}, lerr
	}
	if isHardError(rerr) {
		return Value{}, rerr
	}
	if lerr != nil || rerr != nil {
		return Value{}, errUnresolved
	}

	if n.Op == BinaryEq || n.Op == BinaryNe {
		eq, err := valuesEqual(n, lv, rv)
		if err != nil {
			return Value{}, err
		}
		if n.Op == BinaryNe {
			eq = !eq
		}
		return BoolValue(eq), nil
	}

	if lv.Kind != ValueInt {
		return Value{}, evalErrorf(n.Lhs.Span(), "operator expects an integer, found %s", lv.TypeName())
	}
	if rv.Kind != ValueInt {
		return Value{}, evalErrorf(n.Rhs.Span(), "operator expects an integer, found %s", rv.TypeName())
	}
	a, b := lv.Int, rv.Int

	switch n.Op {
	case BinaryAdd:
		return IntValue(a.Add(b)), nil
	case BinarySub:
		return IntValue(a.Sub(b)), nil
	case BinaryMul:
		return IntValue(a.Mul(b)), nil
	case BinaryDiv:
		q, err := a.Quo(b)
		if err != nil {
			return Value{}, evalErrorf(n.OpSpan, "division by zero")
		}
		return IntValue(q), nil
	case BinaryMod:
		m, err := a.Rem(b)
		if err != nil {
			return Value{}, evalErrorf(n.OpSpan, "division by zero")
		}
		return IntValue(m), nil
	case BinaryShl, BinaryShr:
		amount, ok := b.Uint64()
		if !ok || amount > maxShiftBits {
			return Value{}, evalErrorf(n.Rhs.Span(), "shift amount out of range")
		}
		if n.Op == BinaryShl {
			return IntValue(a.Shl(uint(amount))), nil
		}
		return IntValue(a.Shr(uint(amount))), nil
	case BinaryBitAnd:
		return IntValue(a.BitAnd(b)), nil
	case BinaryBitOr:
		return IntValue(a.BitOr(b)), nil
	case BinaryBitXor:
		return IntValue(a.BitXor(b)), nil
	case BinaryConcat:
		if !a.HasWidth() {
			return Value{}, evalErrorf(n.Lhs.Span(), "cannot concatenate a value of unknown size")
		}
		if !b.HasWidth() {
			return Value{}, evalErrorf(n.Rhs.Span(), "cannot concatenate a value of unknown size")
		}
		joined, err := a.Concat(b)
		if err != nil {
			return Value{}, evalErrorf(n.OpSpan, "%v", err)
		}
		return IntValue(joined), nil
	case BinaryLt, BinaryLe, BinaryGt, BinaryGe:
		cmp := a.Cmp(b)
		switch n.Op {
		case BinaryLt:
			return BoolValue(cmp < 0), nil
		case BinaryLe:
			return BoolValue(cmp <= 0), nil
		case BinaryGt:
			return BoolValue(cmp > 0), nil
		default:
			return BoolValue(cmp >= 0), nil
		}
	}

	return Value{}, evalErrorf(n.Span(), "cannot evaluate this operator")
}

// evalLogical gives && and || three-valued semantics: a dominant known
// operand decides the result even while the other side is deferred, so
// asserts can prune candidates as early as possible.
func (ev *evaluator) evalLogical(n *ExprBinary, lv Value, lerr error, rv Value, rerr error) (Value, error) {
	if isHardError(lerr) {
		return Value{}, lerr
	}
	if isHardError(rerr) {
		return Value{}, rerr
	}
	if lerr == nil && lv.Kind != ValueBool {
		return Value{}, evalErrorf(n.Lhs.Span(), "operator expects a bool, found %s", lv.TypeName())
	}
	if rerr == nil && rv.Kind != ValueBool {
		return Value{}, evalErrorf(n.Rhs.Span(), "operator expects a bool, found %s", rv.TypeName())
	}

	dominant := n.Op == BinaryOr // false dominates &&, true dominates ||
	if lerr == nil && lv.Bool == dominant {
		return BoolValue(dominant), nil
	}
	if rerr == nil && rv.Bool == dominant {
		return BoolValue(dominant), nil
	}
	if lerr != nil || rerr != nil {
		return Value{}, errUnresolved
	}
	return BoolValue(!dominant), nil
}

func valuesEqual(n *ExprBinary, lv, rv Value) (bool, error) {
	if lv.Kind == ValueInt && rv.Kind == ValueInt {
		return lv.Int.Cmp(rv.Int) == 0, nil
	}
	if lv.Kind == ValueBool && rv.Kind == ValueBool {
		return lv.Bool == rv.Bool, nil
	}
	return false, evalErrorf(n.OpSpan, "cannot compare %s with %s", lv.TypeName(), rv.TypeName())
}

// evalBlock evaluates every statement. A failed assert disqualifies the
// block immediately. Deferred statements do not short-circuit, so later
// asserts with known inputs still get their chance to disqualify the
// candidate this pass. The block's value is the last non-void statement
// value, so a trailing passing assert does not wipe out the result.
func (ev *evaluator) evalBlock(n *ExprBlock) (Value, error) {
	last := VoidValue()
	sawUnresolved := false
	var firstHard error

	for _, sub := range n.Exprs {
		v, err := ev.eval(sub)
		if err != nil {
			var af *assertFailedError
			if errors.As(err, &af) {
				return Value{}, err
			}
			if isHardError(err) {
				if firstHard == nil {
					firstHard = err
				}
				continue
			}
			sawUnresolved = true
			continue
		}
		if v.Kind != ValueVoid {
			last = v
		}
	}

	if firstHard != nil {
		return Value{}, firstHard
	}
	if sawUnresolved {
		return Value{}, errUnresolved
	}
	return last, nil
}

func (ev *evaluator) evalCall(n *ExprCall) (Value, error) {
	if n.Name == "assert" {
		if len(n.Args) != 1 {
			return Value{}, evalErrorf(n.Span(), "assert expects one argument")
		}
		cond, err := ev.eval(n.Args[0])
		if err != nil {
			return Value{}, err
		}
		if cond.Kind != ValueBool {
			return Value{}, evalErrorf(n.Args[0].Span(), "assert expects a bool, found %s", cond.TypeName())
		}
		if !cond.Bool {
			return Value{}, &assertFailedError{span: n.Span()}
		}
		return VoidValue(), nil
	}

	fn, ok := ev.provider.functionDef(n.Name)
	if !ok {
		return Value{}, evalErrorf(n.NameSpan, "unknown function `%s`", n.Name)
	}
	if len(n.Args) != len(fn.Params) {
		return Value{}, evalErrorf(n.Span(), "function `%s` expects %d arguments, found %d",
			n.Name, len(fn.Params), len(n.Args))
	}

	args := make([]Value, len(n.Args))
	for i, argExpr := range n.Args {
		v, err := ev.eval(argExpr)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	if ev.depth >= maxEvalDepth {
		return Value{}, evalErrorf(n.Span(), "maximum function call depth exceeded")
	}

	scope := newScopeProvider(ev.provider)
	for i, param := range fn.Params {
		scope.bind(param, args[i])
	}

	saved := ev.provider
	ev.provider = scope
	ev.depth++
	v, err := ev.eval(fn.Body)
	ev.depth--
	ev.provider = saved
	return v, err
}

// widthResolver reports the declared bit width of a name, if any.
// During size deduction, rule parameters resolve to their declared
// widths while plain symbols stay unknown.
type widthResolver interface {
	variableWidth(name string, hierarchy int) (int, bool)
}

// noWidths is a widthResolver with no known names.
type noWidths struct{}

func (noWidths) variableWidth(name string, hierarchy int) (int, bool) {
	return 0, false
}

// staticWidth deduces the bit width of an expression without evaluating
// it. This makes instruction sizes computable before argument values
// are known: a hex literal is four bits per digit, a slice or explicit
// width annotation is structural, a concatenation is the sum of its
// sides, and a parameter reference has its declared width.
func staticWidth(e Expr, wr widthResolver) (int, bool) {
	switch n := e.(type) {
	case *ExprLiteral:
		w := n.Value.Width()
		return w, w != basics.WidthUnknown

	case *ExprVariable:
		return wr.variableWidth(n.Name, n.Hierarchy)

	case *ExprWidth:
		return n.Width, true

	case *ExprSlice:
		return n.Hi - n.Lo + 1, true

	case *ExprBinary:
		if n.Op != BinaryConcat {
			return 0, false
		}
		lw, lok := staticWidth(n.Lhs, wr)
		rw, rok := staticWidth(n.Rhs, wr)
		if !lok || !rok {
			return 0, false
		}
		return lw + rw, true

	case *ExprBlock:
		// the block's value comes from its last non-assert statement
		for i := len(n.Exprs) - 1; i >= 0; i-- {
			if call, ok := n.Exprs[i].(*ExprCall); ok && call.Name == "assert" {
				continue
			}
			return staticWidth(n.Exprs[i], wr)
		}
		return 0, false
	}

	return 0, false
}
