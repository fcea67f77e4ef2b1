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

	"github.com/algorand/ruleasm/diagn"
)

// collectDecls registers every named declaration of the program in the
// store's namespaces and attaches the assigned ItemRef to its AST node.
// Entities are created as empty shells here so that forward references
// (a rule parameter typed by a later subruledef, an expression naming a
// later symbol) resolve by name; the define pass fills them in.
func collectDecls(report *diagn.Report, ast *AstTopLevel, defs *ItemDefs) error {
	for _, node := range ast.Nodes {
		switch n := node.(type) {
		case *AstDirectiveBankdef:
			if prev, ok := defs.BankByName(n.Name); ok {
				reportDuplicate(report, n.NameSpan, "bank", n.Name, defs.Bank(prev).Span)
				continue
			}
			n.Ref = defs.addBank(&Bankdef{Name: n.Name, Span: n.NameSpan})
			defs.banksByName[n.Name] = n.Ref

		case *AstDirectiveRuledef:
			if n.IsSubruledef && n.Name == "" {
				report.Errorf(n.Span(), "subruledef must have a name")
				continue
			}
			if n.Name != "" {
				if prev, ok := defs.RuledefByName(n.Name); ok {
					reportDuplicate(report, n.NameSpan, "ruledef", n.Name, defs.Ruledef(prev).Span)
					continue
				}
			}
			n.Ref = defs.addRuledef(&Ruledef{
				Name:         n.Name,
				Span:         n.NameSpan,
				IsSubruledef: n.IsSubruledef,
			})
			if n.Name != "" {
				defs.ruledefsByName[n.Name] = n.Ref
			}

		case *AstDirectiveFn:
			if n.Name == "assert" {
				report.Errorf(n.NameSpan, "cannot redefine the builtin `assert`")
				continue
			}
			if prev, ok := defs.FunctionByName(n.Name); ok {
				reportDuplicate(report, n.NameSpan, "function", n.Name, defs.Function(prev).Span)
				continue
			}
			n.Ref = defs.addFunction(&Function{Name: n.Name, Span: n.NameSpan})
			defs.functionsByName[n.Name] = n.Ref

		case *AstSymbol:
			if prev, ok := defs.SymbolByName(n.Name); ok {
				reportDuplicate(report, n.NameSpan, "symbol", n.Name, defs.Symbol(prev).NameSpan)
				continue
			}
			n.Ref = defs.addSymbol(&Symbol{
				Name:      n.Name,
				Hierarchy: n.Hierarchy,
				Span:      n.Span(),
				NameSpan:  n.NameSpan,
			})
			defs.symbolsByName[n.Name] = n.Ref
		}
	}
	return report.StopAtErrors()
}

func reportDuplicate(report *diagn.Report, span diagn.Span, kind, name string, prev diagn.Span) {
	report.ErrorWithNotes(span,
		fmt.Sprintf("duplicate %s `%s`", kind, name),
		diagn.Note(prev, "previously declared here"))
}
