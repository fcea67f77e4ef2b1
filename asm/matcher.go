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
	"github.com/algorand/ruleasm/logging"
)

// maxNestedMatchDepth bounds recursion through ruledef-typed parameter
// slots, so mutually recursive subruledefs terminate matching.
const maxNestedMatchDepth = 16

// matchAll computes, for every instruction in the program, the ordered
// set of rules whose pattern shape fits the instruction's tokens.
// Matching is shape-only: literal parts compare token excerpts,
// parameter slots require the argument tokens to parse as the declared
// kind, and no value is ever evaluated. Several candidates routinely
// survive; disambiguation by value happens in the resolver. Zero
// surviving candidates cannot be fixed by iteration and is a hard error
// reported here.
func matchAll(report *diagn.Report, log logging.Logger, defs *ItemDefs) error {
	for _, ins := range defs.Instructions {
		m := &ruleMatcher{defs: defs, labelCtx: ins.LabelCtx}
		for rdIdx, rd := range defs.Ruledefs {
			if rd.IsSubruledef {
				continue
			}
			rdRef := makeRef[Ruledef](rdIdx)
			for ruleIdx := range rd.Rules {
				ins.Matches = append(ins.Matches, m.matchRule(rdRef, ruleIdx, ins.Tokens, 0)...)
			}
		}
		if len(ins.Matches) == 0 {
			report.Errorf(ins.Span, "no rule matches this instruction")
			continue
		}
		for _, cand := range ins.Matches {
			cand.StaticWidth = matchStaticWidth(defs, cand)
		}
		log.Debugf("matcher: %d candidate(s) for instruction at %s", len(ins.Matches), ins.Span)
	}
	return report.StopAtErrors()
}

type ruleMatcher struct {
	defs     *ItemDefs
	labelCtx string
}

// matchRule returns every binding under which the rule's pattern
// consumes exactly toks. Plain expression slots commit to their
// greediest workable token split, so at most one binding comes out of
// them; ruledef-typed slots contribute one binding per matching
// sub-rule, since different sub-rules are different encodings.
func (m *ruleMatcher) matchRule(rdRef ItemRef[Ruledef], ruleIdx int, toks []Token, depth int) []*InstructionMatch {
	rule := m.defs.Ruledef(rdRef).Rules[ruleIdx]
	var out []*InstructionMatch
	for _, args := range m.matchParts(rule, rule.Parts, toks, nil, depth) {
		out = append(out, &InstructionMatch{
			Ruledef:     rdRef,
			RuleIdx:     ruleIdx,
			Args:        args,
			StaticWidth: basics.WidthUnknown,
		})
	}
	return out
}

func (m *ruleMatcher) matchParts(rule *Rule, parts []RulePatternPart, toks []Token, acc []InstructionArgument, depth int) [][]InstructionArgument {
	if len(parts) == 0 {
		if len(toks) != 0 {
			return nil
		}
		bound := make([]InstructionArgument, len(acc))
		copy(bound, acc)
		return [][]InstructionArgument{bound}
	}

	part := parts[0]
	if !part.IsParam {
		if len(toks) == 0 || !part.Token.Matches(toks[0]) {
			return nil
		}
		return m.matchParts(rule, parts[1:], toks[1:], acc, depth)
	}

	param := rule.Params[part.ParamIdx]
	if param.Type.Kind == ParamRuledef {
		return m.matchNested(rule, parts, toks, acc, param, depth)
	}
	return m.matchExprSlot(rule, parts, toks, acc, depth)
}

// matchExprSlot consumes tokens for a plain parameter slot. The slot
// tries the longest token run first and backtracks toward shorter runs
// until both the run parses as an expression and the rest of the
// pattern matches the remaining tokens.
func (m *ruleMatcher) matchExprSlot(rule *Rule, parts []RulePatternPart, toks []Token, acc []InstructionArgument, depth int) [][]InstructionArgument {
	for n := len(toks); n >= 1; n-- {
		expr, ok := parseExprFromTokens(toks[:n], m.labelCtx)
		if !ok {
			continue
		}
		arg := InstructionArgument{
			Kind: ArgumentExpr,
			Expr: expr,
			Span: expr.Span(),
		}
		results := m.matchParts(rule, parts[1:], toks[n:], append(acc, arg), depth)
		if len(results) > 0 {
			return results
		}
	}
	return nil
}

// matchNested consumes tokens for a ruledef-typed slot by matching them
// against every rule of the nested ruledef. Alternatives accumulate
// across sub-rules; within a single sub-rule the longest workable token
// run wins, mirroring matchExprSlot.
func (m *ruleMatcher) matchNested(rule *Rule, parts []RulePatternPart, toks []Token, acc []InstructionArgument, param RuleParameter, depth int) [][]InstructionArgument {
	if depth >= maxNestedMatchDepth {
		return nil
	}
	sub := m.defs.Ruledef(param.Type.Ruledef)
	var results [][]InstructionArgument
	for subIdx, subRule := range sub.Rules {
		for n := len(toks); n >= 1; n-- {
			nestedBindings := m.matchParts(subRule, subRule.Parts, toks[:n], nil, depth+1)
			if len(nestedBindings) == 0 {
				continue
			}
			span := toks[0].Span
			for _, t := range toks[1:n] {
				span = span.Extend(t.Span)
			}
			found := false
			for _, nb := range nestedBindings {
				nested := &InstructionMatch{
					Ruledef:     param.Type.Ruledef,
					RuleIdx:     subIdx,
					Args:        nb,
					StaticWidth: basics.WidthUnknown,
				}
				arg := InstructionArgument{
					Kind:   ArgumentNested,
					Nested: nested,
					Span:   span,
				}
				rest := m.matchParts(rule, parts[1:], toks[n:], append(acc, arg), depth)
				if len(rest) > 0 {
					results = append(results, rest...)
					found = true
				}
			}
			if found {
				break
			}
		}
	}
	return results
}

// matchStaticWidth deduces the encoding width of a candidate from its
// pattern alone: parameter references count as their declared widths
// and nested slots as their sub-match's own static width. A deducible
// width lets the resolver fix the instruction's size before argument
// values are known.
func matchStaticWidth(defs *ItemDefs, m *InstructionMatch) int {
	rule := m.rule(defs)
	w, ok := staticWidth(rule.Production, &candidateWidths{defs: defs, rule: rule, args: m.Args})
	if !ok {
		return basics.WidthUnknown
	}
	return w
}

// candidateWidths resolves parameter names to declared widths during
// static size deduction.
type candidateWidths struct {
	defs *ItemDefs
	rule *Rule
	args []InstructionArgument
}

func (c *candidateWidths) variableWidth(name string, hierarchy int) (int, bool) {
	if hierarchy != 0 {
		return 0, false
	}
	for i, param := range c.rule.Params {
		if param.Name != name {
			continue
		}
		if param.Type.Kind == ParamRuledef {
			w := matchStaticWidth(c.defs, c.args[i].Nested)
			return w, w != basics.WidthUnknown
		}
		return param.Type.Width, true
	}
	return 0, false
}
