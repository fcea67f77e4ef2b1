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
	"math"
	"strconv"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/util"
)

// maxAddrUnitBits caps the address unit of a bank. Anything larger is a
// declaration mistake, not a real target.
const maxAddrUnitBits = 1 << 16

// maxParamWidthBits caps the declared width of a rule parameter.
const maxParamWidthBits = 1 << 16

// maxItemBits caps the bit size of a single item or bank, keeping bit
// offsets inside the int range on every platform.
const maxItemBits = 1 << 31

// define fills every entity shell created by collectDecls and creates
// the unnamed entities (instructions, data elements, reservation
// directives) in program order, assigning each to the bank that is
// current at its position. Bankdef fields are evaluated eagerly: they
// must be constant, so any problem with them is a declaration error
// reported here rather than deferred to the resolver.
func define(report *diagn.Report, ast *AstTopLevel, defs *ItemDefs) error {
	d := &definer{report: report, defs: defs}
	curBank := makeRef[Bankdef](0)

	for _, node := range ast.Nodes {
		switch n := node.(type) {
		case *AstDirectiveBankdef:
			d.defineBankdef(n)

		case *AstDirectiveBank:
			ref, ok := defs.BankByName(n.Name)
			if !ok {
				report.Errorf(n.NameSpan, "unknown bank `%s`", n.Name)
				continue
			}
			n.Ref = ref
			curBank = ref

		case *AstDirectiveBits:
			bank := defs.Bank(curBank)
			if bank.placed {
				report.Errorf(n.Span(), "cannot change the address unit of bank `%s` after placing items in it", bank.Name)
				continue
			}
			if unit, ok := d.evalConstUint64(n.Value, "address unit"); ok {
				if unit < 1 || unit > maxAddrUnitBits {
					report.Errorf(n.Value.Span(), "invalid address unit of %d bits", unit)
					continue
				}
				bank.AddrUnit = int(unit)
			}

		case *AstDirectiveLabelAlign:
			bank := defs.Bank(curBank)
			if align, ok := d.evalConstUint64(n.Value, "label alignment"); ok {
				if align < 1 {
					report.Errorf(n.Value.Span(), "label alignment must be at least 1")
					continue
				}
				bank.LabelAlign = align
			}

		case *AstDirectiveRuledef:
			d.defineRuledef(n)

		case *AstDirectiveFn:
			d.defineFn(n)

		case *AstDirectiveData:
			bank := defs.Bank(curBank)
			for _, elem := range n.Elems {
				de := &DataElement{
					Span:      elem.Span(),
					Expr:      elem,
					ElemWidth: n.ElemWidth,
				}
				de.placement.Bank = curBank
				if n.ElemWidth != basics.WidthUnknown {
					de.SizeBits = n.ElemWidth
					de.SizeKnown = true
				} else if w, ok := staticWidth(elem, noWidths{}); ok {
					de.SizeBits = w
					de.SizeKnown = true
				}
				ref := defs.addDataElem(de)
				n.Refs = append(n.Refs, ref)
				bank.items = append(bank.items, bankItem{kind: bankItemData, index: ref.Index()})
				bank.placed = true
			}

		case *AstDirectiveRes:
			d.addResDirective(curBank, &n.Ref, ResReserve, n.Value, n.Span())
		case *AstDirectiveAlign:
			d.addResDirective(curBank, &n.Ref, ResAlign, n.Value, n.Span())
		case *AstDirectiveAddr:
			d.addResDirective(curBank, &n.Ref, ResAddr, n.Value, n.Span())

		case *AstSymbol:
			sym := defs.Symbol(n.Ref)
			switch n.Kind {
			case AstSymbolConstant:
				sym.Kind = SymbolConstant
				sym.Expr = n.Value
			case AstSymbolLabel:
				sym.Kind = SymbolLabel
				sym.Bank = curBank
			}

		case *AstInstruction:
			ins := &Instruction{
				Span:     n.Span(),
				Tokens:   n.Tokens,
				LabelCtx: n.LabelCtx,
			}
			ins.placement.Bank = curBank
			n.Ref = defs.addInstruction(ins)
			bank := defs.Bank(curBank)
			bank.items = append(bank.items, bankItem{kind: bankItemInstruction, index: n.Ref.Index()})
			bank.placed = true
		}
	}
	return report.StopAtErrors()
}

type definer struct {
	report *diagn.Report
	defs   *ItemDefs
}

func (d *definer) addResDirective(curBank ItemRef[Bankdef], slot *ItemRef[ResDirective], kind ResKind, value Expr, span diagn.Span) {
	res := &ResDirective{Span: span, Kind: kind, Expr: value}
	res.placement.Bank = curBank
	*slot = d.defs.addResDir(res)
	bank := d.defs.Bank(curBank)
	bank.items = append(bank.items, bankItem{kind: bankItemRes, index: slot.Index()})
	bank.placed = true
}

func (d *definer) defineBankdef(n *AstDirectiveBankdef) {
	bank := d.defs.Bank(n.Ref)
	bank.AddrUnit = 8
	bank.AddrStart = basics.NewBigInt(0)

	if n.AddrUnit != nil {
		if unit, ok := d.evalConstUint64(n.AddrUnit, "address unit"); ok {
			if unit < 1 || unit > maxAddrUnitBits {
				d.report.Errorf(n.AddrUnit.Span(), "invalid address unit of %d bits", unit)
			} else {
				bank.AddrUnit = int(unit)
			}
		}
	}
	if n.LabelAlign != nil {
		if align, ok := d.evalConstUint64(n.LabelAlign, "label alignment"); ok {
			if align < 1 {
				d.report.Errorf(n.LabelAlign.Span(), "label alignment must be at least 1")
			} else {
				bank.LabelAlign = align
			}
		}
	}
	if n.AddrStart != nil {
		if start, ok := d.evalConstInt(n.AddrStart, "start address"); ok {
			bank.AddrStart = start
		}
	}

	if n.SizeUnits != nil && n.AddrEnd != nil {
		d.report.ErrorWithNotes(n.SizeSpan,
			fmt.Sprintf("bank `%s` declares both `#size` and `#addr_end`", n.Name),
			diagn.Note(n.AddrEndSpan, "`#addr_end` declared here"))
		return
	}
	if n.SizeUnits != nil {
		if size, ok := d.evalConstUint64(n.SizeUnits, "bank size"); ok {
			d.setBankSize(bank, size, n.SizeUnits.Span())
		}
	}
	if n.AddrEnd != nil {
		if end, ok := d.evalConstInt(n.AddrEnd, "end address"); ok {
			units := end.Sub(bank.AddrStart)
			u, fits := units.Uint64()
			if units.Sign() < 0 || !fits {
				d.report.Errorf(n.AddrEnd.Span(), "end address %s is not after the start address %s", end, bank.AddrStart)
			} else {
				d.setBankSize(bank, u, n.AddrEnd.Span())
			}
		}
	}

	if n.OutputOffset != nil {
		if offset, ok := d.evalConstUint64(n.OutputOffset, "output offset"); ok {
			if offset > math.MaxInt64/8 {
				d.report.Errorf(n.OutputOffset.Span(), "output offset %d is out of range", offset)
			} else {
				bank.OutputOffset = offset
				bank.HasOutput = true
			}
		}
	}
	bank.Fill = n.Fill
}

// setBankSize records the bank capacity, checking that the unit count
// converts to a bit size without overflow. A silent wrap here would turn
// an oversized declaration into a tiny bank.
func (d *definer) setBankSize(bank *Bankdef, units uint64, span diagn.Span) {
	bits, overflowed := basics.OMul(units, uint64(bank.AddrUnit))
	if overflowed || bits > maxItemBits {
		d.report.Errorf(span, "bank size of %d units of %d bits is too large", units, bank.AddrUnit)
		return
	}
	bank.SizeUnits = units
	bank.HasSize = true
}

func (d *definer) defineRuledef(n *AstDirectiveRuledef) {
	rd := d.defs.Ruledef(n.Ref)
	for _, astRule := range n.Rules {
		rule := &Rule{
			Span:       astRule.Span(),
			Production: astRule.Production,
		}
		ok := true
		for _, p := range astRule.Params {
			typ, typOK := d.parseParameterType(p)
			if !typOK {
				ok = false
				continue
			}
			rule.Params = append(rule.Params, RuleParameter{
				Name: p.Name,
				Span: p.span,
				Type: typ,
			})
		}
		if !ok {
			continue
		}
		for _, part := range astRule.Parts {
			rule.Parts = append(rule.Parts, RulePatternPart{
				IsParam:  part.IsParam,
				Token:    part.Token,
				ParamIdx: part.ParamIdx,
			})
		}
		rd.Rules = append(rd.Rules, rule)
	}
}

// parseParameterType interprets a parameter's type name: u<N>, s<N> and
// i<N> widths, or the name of another ruledef for nested matching.
func (d *definer) parseParameterType(p AstRuleParameter) (RuleParameterType, bool) {
	name := p.TypeName
	if len(name) >= 2 {
		var kind RuleParameterKind
		known := true
		switch name[0] {
		case 'u':
			kind = ParamUnsigned
		case 's':
			kind = ParamSigned
		case 'i':
			kind = ParamEither
		default:
			known = false
		}
		if known {
			if width, err := strconv.Atoi(name[1:]); err == nil {
				if width < 1 || width > maxParamWidthBits {
					d.report.Errorf(p.TypeSpan, "invalid parameter width `%s`", name)
					return RuleParameterType{}, false
				}
				return RuleParameterType{Kind: kind, Width: width}, true
			}
		}
	}

	if ref, ok := d.defs.RuledefByName(name); ok {
		return RuleParameterType{Kind: ParamRuledef, Ruledef: ref}, true
	}
	d.report.Errorf(p.TypeSpan, "unknown parameter type `%s`", name)
	return RuleParameterType{}, false
}

func (d *definer) defineFn(n *AstDirectiveFn) {
	fn := d.defs.Function(n.Ref)
	seen := make(util.Set[string])
	for _, p := range n.Params {
		if seen.Contains(p.Name) {
			d.report.Errorf(p.span, "duplicate parameter `%s`", p.Name)
			continue
		}
		seen.Add(p.Name)
		fn.Params = append(fn.Params, p.Name)
	}
	fn.Body = n.Body
}

func (d *definer) evalConstInt(e Expr, what string) (basics.BigInt, bool) {
	v, err := evalExpr(e, constProvider{})
	if err != nil {
		reportEvalError(d.report, err, e.Span())
		return basics.BigInt{}, false
	}
	if v.Kind != ValueInt {
		d.report.Errorf(e.Span(), "%s must be an integer, found %s", what, v.TypeName())
		return basics.BigInt{}, false
	}
	return v.Int, true
}

func (d *definer) evalConstUint64(e Expr, what string) (uint64, bool) {
	v, ok := d.evalConstInt(e, what)
	if !ok {
		return 0, false
	}
	u, fits := v.Uint64()
	if v.Sign() < 0 || !fits {
		d.report.Errorf(e.Span(), "%s %s is out of range", what, v)
		return 0, false
	}
	return u, true
}
