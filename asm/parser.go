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
	"strconv"
	"strings"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/util"
)

// defaultMaxIncludeDepth bounds #include nesting when the caller does
// not supply a limit.
const defaultMaxIncludeDepth = 32

// parseState carries program-order context across include boundaries.
type parseState struct {
	globalLabel string
	onceFiles   util.Set[string]
	stack       []string
	maxDepth    int
}

// parseAndResolveIncludes parses rootFile and splices every #include
// into one flat AST in program order. Include cycles, includes nested
// deeper than maxDepth (zero or negative selects the default), and
// unreadable files are reported; the error return follows
// Report.StopAtErrors.
func parseAndResolveIncludes(report *diagn.Report, fs FileServer, rootFile string, maxDepth int) (*AstTopLevel, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxIncludeDepth
	}
	state := &parseState{onceFiles: make(util.Set[string]), maxDepth: maxDepth}
	ast := parseFile(report, fs, rootFile, diagn.Span{}, state)
	if err := report.StopAtErrors(); err != nil {
		return nil, err
	}
	return ast, nil
}

func parseFile(report *diagn.Report, fs FileServer, filename string, includeSpan diagn.Span, state *parseState) *AstTopLevel {
	for _, active := range state.stack {
		if active == filename {
			report.Errorf(includeSpan, "recursive include of `%s`", filename)
			return &AstTopLevel{}
		}
	}
	if len(state.stack) >= state.maxDepth {
		report.Errorf(includeSpan, "includes nested deeper than %d files", state.maxDepth)
		return &AstTopLevel{}
	}

	src, ok := fs.ReadText(report, includeSpan, filename)
	if !ok {
		return &AstTopLevel{}
	}

	state.stack = append(state.stack, filename)
	defer func() {
		state.stack = state.stack[:len(state.stack)-1]
	}()

	p := &parser{
		report: report,
		fs:     fs,
		state:  state,
		file:   filename,
		toks:   tokenize(report, filename, src),
	}
	return p.parseTopLevel()
}

type parser struct {
	report *diagn.Report
	fs     FileServer
	state  *parseState
	file   string

	toks []Token
	idx  int

	// parenDepth > 0 makes line breaks insignificant, so expressions
	// can span lines inside parentheses.
	parenDepth int

	// silent parsers record failure without reporting, for speculative
	// parses during rule matching.
	silent bool
	failed bool
}

// parseExprFromTokens parses toks as one complete expression without
// reporting diagnostics. It fails unless the whole slice is consumed.
func parseExprFromTokens(toks []Token, labelCtx string) (Expr, bool) {
	if len(toks) == 0 {
		return nil, false
	}
	end := Token{Kind: TokenEnd, Span: toks[len(toks)-1].Span}
	p := &parser{
		state:  &parseState{globalLabel: labelCtx},
		file:   toks[0].Span.File,
		toks:   append(append([]Token{}, toks...), end),
		silent: true,
	}
	e := p.parseExpr()
	if p.failed || !p.cur().Is(TokenEnd) {
		return nil, false
	}
	return e, true
}

func (p *parser) cur() Token {
	if p.idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.idx]
}

func (p *parser) peek(ahead int) Token {
	i := p.idx + ahead
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) advance() Token {
	tok := p.cur()
	if p.idx < len(p.toks)-1 {
		p.idx++
	}
	if p.parenDepth > 0 {
		for p.cur().Is(TokenLineBreak) {
			p.idx++
		}
	}
	return tok
}

func (p *parser) errorf(span diagn.Span, format string, args ...interface{}) {
	p.failed = true
	if !p.silent {
		p.report.Errorf(span, format, args...)
	}
}

func (p *parser) expect(kind TokenKind) (Token, bool) {
	if p.cur().Is(kind) {
		return p.advance(), true
	}
	p.errorf(p.cur().Span, "expected %s, found %s", kind, p.cur().Kind)
	return p.cur(), false
}

func (p *parser) skipLineBreaks() {
	for p.cur().Is(TokenLineBreak) {
		p.advance()
	}
}

// skipToLineBreak resyncs after a parse error.
func (p *parser) skipToLineBreak() {
	for !p.cur().Is(TokenLineBreak) && !p.cur().Is(TokenEnd) {
		p.advance()
	}
}

func (p *parser) parseTopLevel() *AstTopLevel {
	ast := &AstTopLevel{}
	for {
		p.skipLineBreaks()
		if p.cur().Is(TokenEnd) {
			return ast
		}
		failedBefore := p.failed
		nodes := p.parseStatement()
		ast.Nodes = append(ast.Nodes, nodes...)
		if p.failed && !failedBefore {
			p.failed = failedBefore
			p.skipToLineBreak()
		}
	}
}

func (p *parser) parseStatement() []AstNode {
	if p.cur().Is(TokenHash) {
		return p.parseDirective()
	}

	// `name:` or `name = expr`, with any number of leading dots
	dots := 0
	for p.peek(dots).Is(TokenDot) {
		dots++
	}
	if p.peek(dots).Is(TokenIdentifier) &&
		(p.peek(dots+1).Is(TokenColon) || p.peek(dots+1).Is(TokenEqual)) {
		return p.parseSymbol(dots)
	}

	return p.parseInstruction()
}

func (p *parser) parseSymbol(dots int) []AstNode {
	start := p.cur().Span
	for i := 0; i < dots; i++ {
		p.advance()
	}
	nameTok := p.advance()

	name := nameTok.Text
	if dots > 0 {
		if p.state.globalLabel == "" {
			p.errorf(nameTok.Span, "nested symbol `%s` has no enclosing label", "."+name)
			return nil
		}
		name = p.state.globalLabel + "." + name
	}

	node := &AstSymbol{
		span:      start.Extend(nameTok.Span),
		NameSpan:  nameTok.Span,
		Name:      name,
		Hierarchy: dots,
	}

	if p.cur().Is(TokenColon) {
		colon := p.advance()
		node.span = node.span.Extend(colon.Span)
		node.Kind = AstSymbolLabel
		// nested symbols attach to the most recent global label
		if dots == 0 {
			p.state.globalLabel = name
		}
		return []AstNode{node}
	}

	p.advance() // `=`
	node.Kind = AstSymbolConstant
	node.Value = p.parseExpr()
	if node.Value == nil {
		return nil
	}
	node.span = node.span.Extend(node.Value.Span())
	return []AstNode{node}
}

func (p *parser) parseInstruction() []AstNode {
	var toks []Token
	start := p.cur().Span
	for !p.cur().Is(TokenLineBreak) && !p.cur().Is(TokenEnd) {
		toks = append(toks, p.advance())
	}
	if len(toks) == 0 {
		p.errorf(start, "expected a statement")
		return nil
	}
	span := toks[0].Span
	for _, t := range toks[1:] {
		span = span.Extend(t.Span)
	}
	return []AstNode{&AstInstruction{
		span:     span,
		Tokens:   toks,
		LabelCtx: p.state.globalLabel,
	}}
}

func (p *parser) parseDirective() []AstNode {
	hash := p.advance()
	nameTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return nil
	}
	span := hash.Span.Extend(nameTok.Span)
	name := nameTok.Text

	switch name {
	case "include":
		return p.parseInclude(span)
	case "once":
		p.state.onceFiles.Add(p.file)
		return nil
	case "bankdef":
		return p.parseBankdef(span)
	case "bank":
		bankTok, ok := p.expect(TokenIdentifier)
		if !ok {
			return nil
		}
		return []AstNode{&AstDirectiveBank{
			span:     span.Extend(bankTok.Span),
			Name:     bankTok.Text,
			NameSpan: bankTok.Span,
		}}
	case "ruledef", "subruledef":
		return p.parseRuledef(span, name == "subruledef")
	case "fn":
		return p.parseFn(span)
	case "res":
		value := p.parseExpr()
		return []AstNode{&AstDirectiveRes{span: extendWithExpr(span, value), Value: value}}
	case "align":
		value := p.parseExpr()
		return []AstNode{&AstDirectiveAlign{span: extendWithExpr(span, value), Value: value}}
	case "addr":
		value := p.parseExpr()
		return []AstNode{&AstDirectiveAddr{span: extendWithExpr(span, value), Value: value}}
	case "bits":
		value := p.parseExpr()
		return []AstNode{&AstDirectiveBits{span: extendWithExpr(span, value), Value: value}}
	case "labelalign":
		value := p.parseExpr()
		return []AstNode{&AstDirectiveLabelAlign{span: extendWithExpr(span, value), Value: value}}
	}

	if width, ok := dataDirectiveWidth(name); ok {
		return p.parseData(span, width)
	}

	p.errorf(span, "unknown directive `#%s`", name)
	return nil
}

// dataDirectiveWidth recognizes #d and its sized variants #d8, #d16 and
// so on, returning the per-element width.
func dataDirectiveWidth(name string) (int, bool) {
	if name == "d" {
		return basics.WidthUnknown, true
	}
	if len(name) < 2 || name[0] != 'd' {
		return 0, false
	}
	width, err := strconv.Atoi(name[1:])
	if err != nil || width < 1 {
		return 0, false
	}
	return width, true
}

func extendWithExpr(span diagn.Span, e Expr) diagn.Span {
	if e == nil {
		return span
	}
	return span.Extend(e.Span())
}

func (p *parser) parseInclude(span diagn.Span) []AstNode {
	fileTok, ok := p.expect(TokenString)
	if !ok {
		return nil
	}
	target := resolveRelative(p.file, strings.Trim(fileTok.Text, "\""))
	if p.state.onceFiles.Contains(target) {
		return nil
	}
	included := parseFile(p.report, p.fs, target, span.Extend(fileTok.Span), p.state)
	return included.Nodes
}

func (p *parser) parseData(span diagn.Span, width int) []AstNode {
	node := &AstDirectiveData{span: span, ElemWidth: width}
	for {
		elem := p.parseExpr()
		if elem == nil {
			return nil
		}
		node.Elems = append(node.Elems, elem)
		node.span = node.span.Extend(elem.Span())
		if !p.cur().Is(TokenComma) {
			break
		}
		p.advance()
	}
	return []AstNode{node}
}

func (p *parser) parseBankdef(span diagn.Span) []AstNode {
	nameTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return nil
	}
	node := &AstDirectiveBankdef{
		span:     span.Extend(nameTok.Span),
		Name:     nameTok.Text,
		NameSpan: nameTok.Span,
	}

	p.skipLineBreaks()
	if _, ok := p.expect(TokenBraceOpen); !ok {
		return nil
	}
	for {
		p.skipLineBreaks()
		if p.cur().Is(TokenBraceClose) {
			closeTok := p.advance()
			node.span = node.span.Extend(closeTok.Span)
			return []AstNode{node}
		}
		if p.cur().Is(TokenEnd) {
			p.errorf(p.cur().Span, "unterminated bankdef block")
			return nil
		}
		if !p.parseBankdefField(node) {
			return nil
		}
		// fields are separated by commas or line breaks
		if p.cur().Is(TokenComma) {
			p.advance()
		}
	}
}

func (p *parser) parseBankdefField(node *AstDirectiveBankdef) bool {
	hash, ok := p.expect(TokenHash)
	if !ok {
		return false
	}
	nameTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return false
	}
	fieldSpan := hash.Span.Extend(nameTok.Span)

	if nameTok.Text == "fill" {
		if node.Fill {
			p.errorf(fieldSpan, "duplicate field `fill`")
			return false
		}
		node.Fill = true
		node.FillSpan = fieldSpan
		return true
	}

	var slot *Expr
	switch nameTok.Text {
	case "bits":
		slot = &node.AddrUnit
	case "labelalign":
		slot = &node.LabelAlign
	case "addr":
		slot = &node.AddrStart
	case "addr_end":
		slot = &node.AddrEnd
		node.AddrEndSpan = fieldSpan
	case "size":
		slot = &node.SizeUnits
		node.SizeSpan = fieldSpan
	case "outp":
		slot = &node.OutputOffset
	default:
		p.errorf(fieldSpan, "unknown bankdef field `#%s`", nameTok.Text)
		return false
	}

	if *slot != nil {
		p.errorf(fieldSpan, "duplicate field `%s`", nameTok.Text)
		return false
	}
	value := p.parseExpr()
	if value == nil {
		return false
	}
	*slot = value
	return true
}

func (p *parser) parseRuledef(span diagn.Span, isSubruledef bool) []AstNode {
	node := &AstDirectiveRuledef{
		span:         span,
		IsSubruledef: isSubruledef,
	}
	if p.cur().Is(TokenIdentifier) {
		nameTok := p.advance()
		node.Name = nameTok.Text
		node.NameSpan = nameTok.Span
		node.span = node.span.Extend(nameTok.Span)
	}

	p.skipLineBreaks()
	if _, ok := p.expect(TokenBraceOpen); !ok {
		return nil
	}
	for {
		p.skipLineBreaks()
		if p.cur().Is(TokenBraceClose) {
			closeTok := p.advance()
			node.span = node.span.Extend(closeTok.Span)
			return []AstNode{node}
		}
		if p.cur().Is(TokenEnd) {
			p.errorf(p.cur().Span, "unterminated ruledef block")
			return nil
		}
		rule := p.parseRule()
		if rule == nil {
			return nil
		}
		node.Rules = append(node.Rules, rule)
	}
}

func (p *parser) parseRule() *AstRule {
	rule := &AstRule{span: p.cur().Span}

	for !p.cur().Is(TokenArrowRight) {
		if p.cur().Is(TokenLineBreak) || p.cur().Is(TokenEnd) || p.cur().Is(TokenBraceClose) {
			p.errorf(p.cur().Span, "expected `=>` after rule pattern")
			return nil
		}
		if p.cur().Is(TokenBraceOpen) {
			if !p.parseRuleParameter(rule) {
				return nil
			}
			continue
		}
		tok := p.advance()
		rule.span = rule.span.Extend(tok.Span)
		rule.Parts = append(rule.Parts, AstRulePatternPart{Token: tok})
	}
	if len(rule.Parts) == 0 {
		p.errorf(p.cur().Span, "empty rule pattern")
		return nil
	}

	p.advance() // `=>`
	p.skipLineBreaks() // the production may start on the next line
	rule.Production = p.parseExpr()
	if rule.Production == nil {
		return nil
	}
	rule.span = rule.span.Extend(rule.Production.Span())
	return rule
}

func (p *parser) parseRuleParameter(rule *AstRule) bool {
	open := p.advance() // `{`
	nameTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return false
	}
	if _, ok := p.expect(TokenColon); !ok {
		return false
	}
	typeTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return false
	}
	closeTok, ok := p.expect(TokenBraceClose)
	if !ok {
		return false
	}

	span := open.Span.Extend(closeTok.Span)
	for _, existing := range rule.Params {
		if existing.Name == nameTok.Text {
			p.errorf(nameTok.Span, "duplicate parameter `%s`", nameTok.Text)
			return false
		}
	}
	rule.Params = append(rule.Params, AstRuleParameter{
		span:     span,
		Name:     nameTok.Text,
		TypeName: typeTok.Text,
		TypeSpan: typeTok.Span,
	})
	rule.Parts = append(rule.Parts, AstRulePatternPart{
		IsParam:  true,
		ParamIdx: len(rule.Params) - 1,
		Token:    Token{Kind: TokenBraceOpen, Span: span},
	})
	rule.span = rule.span.Extend(span)
	return true
}

func (p *parser) parseFn(span diagn.Span) []AstNode {
	nameTok, ok := p.expect(TokenIdentifier)
	if !ok {
		return nil
	}
	node := &AstDirectiveFn{
		span:     span.Extend(nameTok.Span),
		Name:     nameTok.Text,
		NameSpan: nameTok.Span,
	}

	if _, ok := p.expect(TokenParenOpen); !ok {
		return nil
	}
	for !p.cur().Is(TokenParenClose) {
		paramTok, ok := p.expect(TokenIdentifier)
		if !ok {
			return nil
		}
		node.Params = append(node.Params, AstFnParameter{span: paramTok.Span, Name: paramTok.Text})
		if p.cur().Is(TokenComma) {
			p.advance()
		}
	}
	p.advance() // `)`

	if _, ok := p.expect(TokenArrowRight); !ok {
		return nil
	}
	node.Body = p.parseExpr()
	if node.Body == nil {
		return nil
	}
	node.span = node.span.Extend(node.Body.Span())
	return []AstNode{node}
}

// Expression parsing uses one level per precedence tier, loosest first.

func (p *parser) parseExpr() Expr {
	return p.parseConcat()
}

type binaryLevel struct {
	tokens []TokenKind
	ops    []BinaryOp
}

func (p *parser) parseBinaryLevel(level binaryLevel, next func() Expr) Expr {
	lhs := next()
	if lhs == nil {
		return nil
	}
	for {
		matched := false
		for i, kind := range level.tokens {
			if p.cur().Is(kind) {
				opTok := p.advance()
				rhs := next()
				if rhs == nil {
					return nil
				}
				lhs = &ExprBinary{
					span:   lhs.Span().Extend(rhs.Span()),
					Op:     level.ops[i],
					OpSpan: opTok.Span,
					Lhs:    lhs,
					Rhs:    rhs,
				}
				matched = true
				break
			}
		}
		if !matched {
			return lhs
		}
	}
}

func (p *parser) parseConcat() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenAt},
		ops:    []BinaryOp{BinaryConcat},
	}, p.parseOr)
}

func (p *parser) parseOr() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenDoubleVerticalBar},
		ops:    []BinaryOp{BinaryOr},
	}, p.parseAnd)
}

func (p *parser) parseAnd() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenDoubleAmpersand},
		ops:    []BinaryOp{BinaryAnd},
	}, p.parseComparison)
}

func (p *parser) parseComparison() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenDoubleEqual, TokenExclamationEqual, TokenLessThanEqual, TokenGreaterThanEqual, TokenLessThan, TokenGreaterThan},
		ops:    []BinaryOp{BinaryEq, BinaryNe, BinaryLe, BinaryGe, BinaryLt, BinaryGt},
	}, p.parseBitOr)
}

func (p *parser) parseBitOr() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenVerticalBar},
		ops:    []BinaryOp{BinaryBitOr},
	}, p.parseBitXor)
}

func (p *parser) parseBitXor() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenCircumflex},
		ops:    []BinaryOp{BinaryBitXor},
	}, p.parseBitAnd)
}

func (p *parser) parseBitAnd() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenAmpersand},
		ops:    []BinaryOp{BinaryBitAnd},
	}, p.parseShift)
}

func (p *parser) parseShift() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenDoubleLessThan, TokenDoubleGreaterThan},
		ops:    []BinaryOp{BinaryShl, BinaryShr},
	}, p.parseAddition)
}

func (p *parser) parseAddition() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenPlus, TokenMinus},
		ops:    []BinaryOp{BinaryAdd, BinarySub},
	}, p.parseMultiplication)
}

func (p *parser) parseMultiplication() Expr {
	return p.parseBinaryLevel(binaryLevel{
		tokens: []TokenKind{TokenAsterisk, TokenSlash, TokenPercent},
		ops:    []BinaryOp{BinaryMul, BinaryDiv, BinaryMod},
	}, p.parseUnary)
}

func (p *parser) parseUnary() Expr {
	var op UnaryOp
	switch {
	case p.cur().Is(TokenMinus):
		op = UnaryNeg
	case p.cur().Is(TokenExclamation):
		op = UnaryNot
	case p.cur().Is(TokenTilde):
		op = UnaryBitNot
	default:
		return p.parsePostfix()
	}
	opTok := p.advance()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ExprUnary{
		span:    opTok.Span.Extend(operand.Span()),
		Op:      op,
		Operand: operand,
	}
}

func (p *parser) parsePostfix() Expr {
	e := p.parseAtom()
	if e == nil {
		return nil
	}
	for {
		switch {
		case p.cur().Is(TokenBracketOpen):
			p.advance()
			hi, ok := p.parseSliceIndex()
			if !ok {
				return nil
			}
			if _, ok := p.expect(TokenColon); !ok {
				return nil
			}
			lo, ok := p.parseSliceIndex()
			if !ok {
				return nil
			}
			closeTok, ok := p.expect(TokenBracketClose)
			if !ok {
				return nil
			}
			if hi < lo {
				p.errorf(closeTok.Span, "invalid bit slice [%d:%d]", hi, lo)
				return nil
			}
			e = &ExprSlice{span: e.Span().Extend(closeTok.Span), Hi: hi, Lo: lo, Operand: e}

		case p.cur().Is(TokenBacktick):
			p.advance()
			widthTok, ok := p.expect(TokenNumber)
			if !ok {
				return nil
			}
			width, err := strconv.Atoi(widthTok.Text)
			if err != nil || width < 0 {
				p.errorf(widthTok.Span, "invalid bit width `%s`", widthTok.Text)
				return nil
			}
			e = &ExprWidth{span: e.Span().Extend(widthTok.Span), Width: width, Operand: e}

		default:
			return e
		}
	}
}

func (p *parser) parseSliceIndex() (int, bool) {
	tok, ok := p.expect(TokenNumber)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(tok.Text)
	if err != nil || idx < 0 {
		p.errorf(tok.Span, "invalid bit index `%s`", tok.Text)
		return 0, false
	}
	return idx, true
}

func (p *parser) parseAtom() Expr {
	switch {
	case p.cur().Is(TokenNumber):
		tok := p.advance()
		value, err := basics.ParseBigInt(tok.Text)
		if err != nil {
			p.errorf(tok.Span, "%v", err)
			return nil
		}
		return &ExprLiteral{span: tok.Span, Value: value}

	case p.cur().Is(TokenString):
		tok := p.advance()
		return &ExprLiteral{span: tok.Span, Value: stringLiteralValue(tok.Text)}

	case p.cur().Is(TokenDollar):
		tok := p.advance()
		return &ExprCurAddr{span: tok.Span}

	case p.cur().Is(TokenParenOpen):
		p.parenDepth++
		p.advance()
		e := p.parseExpr()
		p.parenDepth--
		if e == nil {
			return nil
		}
		if _, ok := p.expect(TokenParenClose); !ok {
			return nil
		}
		return e

	case p.cur().Is(TokenBraceOpen):
		return p.parseBlock()

	case p.cur().Is(TokenDot):
		dots := 0
		start := p.cur().Span
		for p.cur().Is(TokenDot) {
			dots++
			p.advance()
		}
		nameTok, ok := p.expect(TokenIdentifier)
		if !ok {
			return nil
		}
		if p.state.globalLabel == "" {
			p.errorf(nameTok.Span, "nested symbol `.%s` has no enclosing label", nameTok.Text)
			return nil
		}
		return &ExprVariable{
			span:      start.Extend(nameTok.Span),
			Hierarchy: dots,
			Name:      p.state.globalLabel + "." + nameTok.Text,
		}

	case p.cur().Is(TokenIdentifier):
		nameTok := p.advance()
		if p.cur().Is(TokenParenOpen) {
			return p.parseCall(nameTok)
		}
		return &ExprVariable{span: nameTok.Span, Name: nameTok.Text}
	}

	p.errorf(p.cur().Span, "expected an expression, found %s", p.cur().Kind)
	return nil
}

func (p *parser) parseCall(nameTok Token) Expr {
	call := &ExprCall{
		span:     nameTok.Span,
		Name:     nameTok.Text,
		NameSpan: nameTok.Span,
	}
	p.parenDepth++
	defer func() { p.parenDepth-- }()
	p.advance() // `(`
	for !p.cur().Is(TokenParenClose) {
		if p.cur().Is(TokenEnd) {
			p.errorf(p.cur().Span, "unterminated argument list")
			return nil
		}
		arg := p.parseExpr()
		if arg == nil {
			return nil
		}
		call.Args = append(call.Args, arg)
		if p.cur().Is(TokenComma) {
			p.advance()
		}
	}
	closeTok := p.advance()
	call.span = call.span.Extend(closeTok.Span)
	return call
}

func (p *parser) parseBlock() Expr {
	open := p.advance() // `{`
	block := &ExprBlock{span: open.Span}
	for {
		p.skipLineBreaks()
		if p.cur().Is(TokenBraceClose) {
			closeTok := p.advance()
			block.span = block.span.Extend(closeTok.Span)
			return block
		}
		if p.cur().Is(TokenEnd) {
			p.errorf(p.cur().Span, "unterminated block")
			return nil
		}
		e := p.parseExpr()
		if e == nil {
			return nil
		}
		block.Exprs = append(block.Exprs, e)
	}
}

// stringLiteralValue folds a quoted string into an integer of its UTF-8
// bytes, most significant byte first, eight bits per byte.
func stringLiteralValue(quoted string) basics.BigInt {
	text := strings.Trim(quoted, "\"")
	return basics.BigIntFromBytes([]byte(text))
}
