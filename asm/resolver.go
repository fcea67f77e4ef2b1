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

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/logging"
)

// The resolver drives the fixed-point iteration at the heart of the
// assembler. Symbol values, rule selection, instruction sizes and bank
// addresses all depend on each other, and the dependency graph is not
// known up front: which rule encodes an instruction can depend on the
// value of a label whose address depends on the sizes of earlier
// instructions. Instead of computing an evaluation order, the resolver
// sweeps the program in declaration order, resolves whatever has become
// decidable, and repeats until a full pass changes nothing. State
// transitions are monotone: items only move from unresolved to resolved
// or failed, candidate sets only shrink, so every pass either makes
// progress or proves a genuine cycle.

// errNoFit disqualifies a candidate whose known argument value does not
// fit the parameter's declared width. Like a failed assert it prunes
// silently; other candidates may still accept the instruction.
var errNoFit = errors.New("argument does not fit the declared width")

type bankCursor struct {
	bits  int
	known bool
}

type resolver struct {
	report *diagn.Report
	log    logging.Logger
	ast    *AstTopLevel
	defs   *ItemDefs

	progress bool

	// evaluation context for the node currently being visited; backs
	// the `$` operand.
	curBank   *Bankdef
	curCursor *bankCursor
}

// resolveConstants iterates plain constants to a fixed point before
// matching. Constants that depend on labels or on `$` simply stay
// unresolved here and get their chance in the main loop.
func resolveConstants(report *diagn.Report, log logging.Logger, ast *AstTopLevel, defs *ItemDefs) error {
	r := &resolver{report: report, log: log, ast: ast, defs: defs}
	for pass := 1; ; pass++ {
		r.progress = false
		resolved := 0
		for _, node := range ast.Nodes {
			n, ok := node.(*AstSymbol)
			if !ok || n.Kind != AstSymbolConstant {
				continue
			}
			sym := defs.Symbol(n.Ref)
			if r.resolveConstant(sym) {
				resolved++
			}
		}
		log.Debugf("resolver: constants pass %d resolved %d symbol(s)", pass, resolved)
		if !r.progress {
			break
		}
	}
	return report.StopAtErrors()
}

// resolveIteratively runs full passes until everything is resolved,
// a pass stalls, or the iteration ceiling is hit. The ceiling is a
// safety valve, not a semantic limit: progress-based termination is
// what normally ends the loop, but a pathological input could keep
// producing degenerate progress. Returns the number of passes used.
func resolveIteratively(report *diagn.Report, log logging.Logger, ast *AstTopLevel, defs *ItemDefs, maxIterations int) (int, error) {
	r := &resolver{report: report, log: log, ast: ast, defs: defs}

	for iter := 1; iter <= maxIterations; iter++ {
		r.progress = false
		r.runPass()
		if err := report.StopAtErrors(); err != nil {
			return iter, err
		}
		remaining := r.countUnresolved()
		log.Debugf("resolver: pass %d left %d item(s) unresolved", iter, remaining)
		if remaining == 0 {
			return iter, nil
		}
		if !r.progress {
			r.reportStall("circular dependency")
			return iter, report.StopAtErrors()
		}
	}

	r.reportStall("no convergence within the iteration limit")
	return maxIterations, report.StopAtErrors()
}

// runPass sweeps the program once in declaration order, keeping one
// address cursor per bank. A cursor stays known only while every item
// placed before it has a known size; past the first unsized item,
// addresses in that bank are unavailable for the rest of the pass.
func (r *resolver) runPass() {
	cursors := make(map[*Bankdef]*bankCursor)
	cursorOf := func(b *Bankdef) *bankCursor {
		c, ok := cursors[b]
		if !ok {
			c = &bankCursor{known: true}
			cursors[b] = c
		}
		return c
	}
	cur := r.defs.Banks[0]

	for _, node := range r.ast.Nodes {
		switch n := node.(type) {
		case *AstDirectiveBank:
			cur = r.defs.Bank(n.Ref)

		case *AstSymbol:
			sym := r.defs.Symbol(n.Ref)
			r.curBank, r.curCursor = cur, cursorOf(cur)
			if sym.Kind == SymbolConstant {
				r.resolveConstant(sym)
			} else {
				r.resolveLabel(sym)
			}

		case *AstInstruction:
			ins := r.defs.Instruction(n.Ref)
			c := cursorOf(cur)
			r.curBank, r.curCursor = cur, c
			r.resolveInstruction(ins)
			r.advance(cur, c, &ins.placement)

		case *AstDirectiveData:
			for _, ref := range n.Refs {
				elem := r.defs.DataElem(ref)
				c := cursorOf(cur)
				r.curBank, r.curCursor = cur, c
				r.resolveData(elem)
				r.advance(cur, c, &elem.placement)
			}

		case *AstDirectiveRes:
			r.visitRes(cur, cursorOf(cur), n.Ref)
		case *AstDirectiveAlign:
			r.visitRes(cur, cursorOf(cur), n.Ref)
		case *AstDirectiveAddr:
			r.visitRes(cur, cursorOf(cur), n.Ref)
		}
	}
	r.curBank, r.curCursor = nil, nil
}

func (r *resolver) visitRes(bank *Bankdef, c *bankCursor, ref ItemRef[ResDirective]) {
	res := r.defs.ResDir(ref)
	r.curBank, r.curCursor = bank, c
	r.resolveRes(res, bank, c)
	r.advance(bank, c, &res.placement)
}

// advance moves the bank cursor past an item. Items occupy whole
// address units: a size that is not a multiple of the unit is padded up
// to the next unit boundary. Offsets are assigned the first pass both
// the cursor and the size are known and never change afterwards, since
// all preceding sizes are already fixed by then.
func (r *resolver) advance(bank *Bankdef, c *bankCursor, pl *placement) {
	if !pl.SizeKnown {
		c.known = false
		return
	}
	if !c.known {
		return
	}
	if !pl.OffsetKnown {
		pl.OffsetBits = c.bits
		pl.OffsetKnown = true
		r.progress = true
	}
	units := basics.DivCeil(pl.SizeBits, bank.AddrUnit)
	c.bits += units * bank.AddrUnit
}

func (r *resolver) countUnresolved() int {
	n := 0
	for _, sym := range r.defs.Symbols {
		if sym.State == StateUnresolved {
			n++
		}
	}
	for _, ins := range r.defs.Instructions {
		if ins.State == StateUnresolved {
			n++
		}
	}
	for _, elem := range r.defs.DataElems {
		if elem.State == StateUnresolved {
			n++
		}
	}
	for _, res := range r.defs.ResDirs {
		if res.State == StateUnresolved {
			n++
		}
	}
	return n
}

func (r *resolver) reportStall(reason string) {
	for _, sym := range r.defs.Symbols {
		if sym.State == StateUnresolved {
			r.report.Errorf(sym.NameSpan, "symbol `%s` could not be resolved: %s", sym.Name, reason)
		}
	}
	for _, ins := range r.defs.Instructions {
		if ins.State == StateUnresolved {
			r.report.Errorf(ins.Span, "instruction could not be resolved: %s", reason)
		}
	}
	for _, elem := range r.defs.DataElems {
		if elem.State == StateUnresolved {
			r.report.Errorf(elem.Span, "data element could not be resolved: %s", reason)
		}
	}
	for _, res := range r.defs.ResDirs {
		if res.State == StateUnresolved {
			r.report.Errorf(res.Span, "directive could not be resolved: %s", reason)
		}
	}
}

// The resolver is itself the evalProvider for everything it evaluates.

func (r *resolver) symbolValue(name string, hierarchy int, span diagn.Span) (Value, error) {
	ref, ok := r.defs.SymbolByName(name)
	if !ok {
		return Value{}, evalErrorf(span, "unknown symbol `%s`", name)
	}
	sym := r.defs.Symbol(ref)
	if sym.State != StateResolved {
		return Value{}, errUnresolved
	}
	return sym.Value, nil
}

func (r *resolver) curAddress(span diagn.Span) (Value, error) {
	if r.curBank == nil || !r.curCursor.known {
		return Value{}, errUnresolved
	}
	if r.curCursor.bits%r.curBank.AddrUnit != 0 {
		return Value{}, evalErrorf(span, "current position is not aligned to an address unit boundary")
	}
	addr := r.curBank.AddrStart.AddUint64(uint64(r.curCursor.bits / r.curBank.AddrUnit))
	return IntValue(addr), nil
}

func (r *resolver) functionDef(name string) (*Function, bool) {
	ref, ok := r.defs.FunctionByName(name)
	if !ok {
		return nil, false
	}
	return r.defs.Function(ref), true
}

// resolveConstant attempts a constant's defining expression. Reports
// true when the symbol became resolved this call.
func (r *resolver) resolveConstant(sym *Symbol) bool {
	if sym.State != StateUnresolved {
		return false
	}
	v, err := evalExpr(sym.Expr, r)
	if err != nil {
		if isHardError(err) {
			reportEvalError(r.report, err, sym.Expr.Span())
			sym.State = StateFailed
			r.progress = true
		}
		return false
	}
	sym.Value = v
	sym.State = StateResolved
	r.progress = true
	return true
}

// resolveLabel takes the current bank address as the label's value,
// once the cursor is known, and enforces the bank's label alignment.
func (r *resolver) resolveLabel(sym *Symbol) {
	if sym.State != StateUnresolved {
		return
	}
	v, err := r.curAddress(sym.NameSpan)
	if err != nil {
		if isHardError(err) {
			reportEvalError(r.report, err, sym.NameSpan)
			sym.State = StateFailed
			r.progress = true
		}
		return
	}
	bank := r.defs.Bank(sym.Bank)
	if bank.LabelAlign > 1 && v.Int.ModUint64(bank.LabelAlign) != 0 {
		r.report.Errorf(sym.NameSpan, "label address %s is not aligned to %d units", v.Int, bank.LabelAlign)
		sym.State = StateFailed
		r.progress = true
		return
	}
	sym.Value = v
	sym.State = StateResolved
	r.progress = true
}

// resolveInstruction tries every surviving candidate with current
// knowledge. A candidate that fails an assert, misfits a known argument
// or hits a genuine evaluation error is pruned permanently. An
// instruction is accepted when its sole survivor evaluates completely;
// two complete survivors are an ambiguity error, zero survivors mean no
// rule takes the given argument values. While candidates are still
// undetermined, the instruction's size is fixed as soon as every
// survivor deduces the same static width, which lets later addresses
// advance before this instruction's own value settles.
func (r *resolver) resolveInstruction(ins *Instruction) {
	if ins.State != StateUnresolved {
		return
	}

	var complete []*InstructionMatch
	var completeVals []basics.BigInt
	for _, cand := range ins.Matches {
		if cand.Pruned {
			continue
		}
		val, err := r.evalCandidate(cand)
		if err == nil {
			complete = append(complete, cand)
			completeVals = append(completeVals, val)
			continue
		}
		if errors.Is(err, errUnresolved) {
			continue
		}
		cand.Pruned = true
		r.progress = true
		var assertErr *assertFailedError
		if !errors.As(err, &assertErr) && !errors.Is(err, errNoFit) {
			cand.PruneErr = err
		}
	}

	alive := ins.aliveMatches()
	switch {
	case alive == 0:
		ins.State = StateFailed
		var notes []diagn.Message
		for _, cand := range ins.Matches {
			if cand.PruneErr != nil {
				var ee *evalError
				if errors.As(cand.PruneErr, &ee) {
					notes = append(notes, diagn.Note(ee.span, "%s", ee.msg))
				}
			}
		}
		r.report.ErrorWithNotes(ins.Span, "no rule matches for the given arguments", notes...)

	case len(complete) > 1:
		ins.State = StateFailed
		var notes []diagn.Message
		for _, cand := range complete {
			notes = append(notes, diagn.Note(cand.rule(r.defs).Span, "matching rule defined here"))
		}
		r.report.ErrorWithNotes(ins.Span, "multiple rules match ambiguously", notes...)

	case len(complete) == 1 && alive == 1:
		r.acceptCandidate(ins, complete[0], completeVals[0])
	}

	if ins.State == StateUnresolved && !ins.SizeKnown {
		r.deduceSize(ins)
	}
}

func (r *resolver) acceptCandidate(ins *Instruction, cand *InstructionMatch, val basics.BigInt) {
	if !val.HasWidth() {
		r.report.Errorf(cand.rule(r.defs).Production.Span(), "instruction encoding has unknown size")
		ins.State = StateFailed
		r.progress = true
		return
	}
	if ins.SizeKnown && val.Width() != ins.SizeBits {
		r.report.Errorf(ins.Span, "rule produced a %d-bit encoding where %d bits were deduced", val.Width(), ins.SizeBits)
		ins.State = StateFailed
		r.progress = true
		return
	}
	ins.Resolution = InstructionMatchResolution{Chosen: cand, Value: val}
	ins.SizeBits = val.Width()
	ins.SizeKnown = true
	ins.State = StateResolved
	r.progress = true
}

func (r *resolver) deduceSize(ins *Instruction) {
	width := basics.WidthUnknown
	for _, cand := range ins.Matches {
		if cand.Pruned {
			continue
		}
		if cand.StaticWidth == basics.WidthUnknown {
			return
		}
		if width != basics.WidthUnknown && cand.StaticWidth != width {
			return
		}
		width = cand.StaticWidth
	}
	if width == basics.WidthUnknown {
		return
	}
	ins.SizeBits = width
	ins.SizeKnown = true
	r.progress = true
}

// evalCandidate evaluates one candidate's argument bindings and its
// production with current knowledge. Arguments whose values are not yet
// known stay declared-but-unbound in the scope, so asserts over the
// known arguments still run and can disqualify the candidate early.
func (r *resolver) evalCandidate(cand *InstructionMatch) (basics.BigInt, error) {
	rule := cand.rule(r.defs)
	scope := newScopeProvider(r)
	for _, param := range rule.Params {
		scope.declare(param.Name)
	}

	for i, param := range rule.Params {
		arg := cand.Args[i]
		var v Value
		var err error
		if arg.Kind == ArgumentNested {
			var nestedVal basics.BigInt
			nestedVal, err = r.evalCandidate(arg.Nested)
			v = IntValue(nestedVal)
		} else {
			v, err = evalExpr(arg.Expr, r)
		}
		if err != nil {
			if isHardError(err) {
				return basics.BigInt{}, err
			}
			continue
		}
		bound, err := bindParam(param, v, arg.Span)
		if err != nil {
			return basics.BigInt{}, err
		}
		scope.bind(param.Name, bound)
	}

	v, err := evalExpr(rule.Production, scope)
	if err != nil {
		return basics.BigInt{}, err
	}
	if v.Kind != ValueInt {
		return basics.BigInt{}, evalErrorf(rule.Production.Span(), "rule production must be an integer, found %s", v.TypeName())
	}
	return v.Int, nil
}

// bindParam checks a known argument value against the parameter's
// declared width and signedness and truncates it to the declared width.
// A misfit returns errNoFit, which prunes the candidate rather than
// failing the compilation: another width variant may take the value.
func bindParam(param RuleParameter, v Value, span diagn.Span) (Value, error) {
	if param.Type.Kind == ParamRuledef {
		return v, nil
	}
	if v.Kind != ValueInt {
		return Value{}, evalErrorf(span, "parameter `%s` expects an integer, found %s", param.Name, v.TypeName())
	}
	w := param.Type.Width
	fits := false
	switch param.Type.Kind {
	case ParamUnsigned:
		fits = v.Int.FitsUnsigned(w)
	case ParamSigned:
		fits = v.Int.FitsSigned(w)
	case ParamEither:
		fits = v.Int.FitsEither(w)
	}
	if !fits {
		return Value{}, errNoFit
	}
	sized, err := v.Int.WithWidth(w)
	if err != nil {
		return Value{}, evalErrorf(span, "%v", err)
	}
	return IntValue(sized), nil
}

func (r *resolver) resolveData(elem *DataElement) {
	if elem.State != StateUnresolved {
		return
	}
	v, err := evalExpr(elem.Expr, r)
	if err != nil {
		if isHardError(err) {
			reportEvalError(r.report, err, elem.Span)
			elem.State = StateFailed
			r.progress = true
		}
		return
	}
	if v.Kind != ValueInt {
		r.report.Errorf(elem.Span, "data element must be an integer, found %s", v.TypeName())
		elem.State = StateFailed
		r.progress = true
		return
	}

	if elem.ElemWidth != basics.WidthUnknown {
		if !v.Int.FitsEither(elem.ElemWidth) {
			r.report.Errorf(elem.Span, "value %s does not fit in %d bits", v.Int, elem.ElemWidth)
			elem.State = StateFailed
			r.progress = true
			return
		}
		elem.Value, _ = v.Int.WithWidth(elem.ElemWidth)
	} else {
		if !v.Int.HasWidth() {
			r.report.Errorf(elem.Span, "cannot infer the size of this data element")
			elem.State = StateFailed
			r.progress = true
			return
		}
		elem.Value = v.Int
		if !elem.SizeKnown {
			elem.SizeBits = v.Int.Width()
			elem.SizeKnown = true
		}
	}
	elem.State = StateResolved
	r.progress = true
}

// resolveRes computes the bit size of a reservation directive. #align
// and #addr sizes depend on the cursor position, so they defer while
// any preceding size in the bank is unknown even if their operand is
// already resolved.
func (r *resolver) resolveRes(res *ResDirective, bank *Bankdef, c *bankCursor) {
	if res.State != StateUnresolved {
		return
	}
	v, err := evalExpr(res.Expr, r)
	if err != nil {
		if isHardError(err) {
			reportEvalError(r.report, err, res.Span)
			res.State = StateFailed
			r.progress = true
		}
		return
	}
	if v.Kind != ValueInt {
		r.report.Errorf(res.Span, "directive operand must be an integer, found %s", v.TypeName())
		res.State = StateFailed
		r.progress = true
		return
	}

	var bits uint64
	switch res.Kind {
	case ResReserve:
		units, ok := v.Int.Uint64()
		if v.Int.Sign() < 0 || !ok {
			r.failRes(res, "reservation count %s is out of range", v.Int)
			return
		}
		var overflowed bool
		bits, overflowed = basics.OMul(units, uint64(bank.AddrUnit))
		if overflowed {
			r.failRes(res, "reservation of %s units of %d bits is too large", v.Int, bank.AddrUnit)
			return
		}

	case ResAlign:
		if !c.known {
			return
		}
		m, ok := v.Int.Uint64()
		if !ok || m == 0 {
			r.failRes(res, "alignment must be a positive integer, found %s", v.Int)
			return
		}
		bits = (m - uint64(c.bits)%m) % m

	case ResAddr:
		if !c.known {
			return
		}
		delta := v.Int.Sub(bank.AddrStart)
		units, ok := delta.Uint64()
		if delta.Sign() < 0 || !ok {
			r.failRes(res, "address %s is outside bank `%s`", v.Int, bank.Name)
			return
		}
		target, overflowed := basics.OMul(units, uint64(bank.AddrUnit))
		if overflowed {
			r.failRes(res, "address %s is out of range", v.Int)
			return
		}
		if target < uint64(c.bits) {
			r.failRes(res, "address %s is behind the current position", v.Int)
			return
		}
		bits = target - uint64(c.bits)
	}

	if bits > maxItemBits {
		r.failRes(res, "reserved span of %d bits is too large", bits)
		return
	}
	res.SizeBits = int(bits)
	res.SizeKnown = true
	res.State = StateResolved
	r.progress = true
}

func (r *resolver) failRes(res *ResDirective, format string, args ...interface{}) {
	r.report.Errorf(res.Span, format, args...)
	res.State = StateFailed
	r.progress = true
}
