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
	"strings"

	"github.com/algorand/ruleasm/diagn"
)

// fixedTokens lists the punctuation patterns in match order. Longer
// patterns come first so that, for example, `=>` is never read as `=`
// followed by `>`.
var fixedTokens = []struct {
	text string
	kind TokenKind
}{
	{"=>", TokenArrowRight},
	{"==", TokenDoubleEqual},
	{"!=", TokenExclamationEqual},
	{"<=", TokenLessThanEqual},
	{">=", TokenGreaterThanEqual},
	{"<<", TokenDoubleLessThan},
	{">>", TokenDoubleGreaterThan},
	{"&&", TokenDoubleAmpersand},
	{"||", TokenDoubleVerticalBar},
	{"#", TokenHash},
	{"(", TokenParenOpen},
	{")", TokenParenClose},
	{"[", TokenBracketOpen},
	{"]", TokenBracketClose},
	{"{", TokenBraceOpen},
	{"}", TokenBraceClose},
	{".", TokenDot},
	{",", TokenComma},
	{":", TokenColon},
	{"$", TokenDollar},
	{"`", TokenBacktick},
	{"=", TokenEqual},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"*", TokenAsterisk},
	{"/", TokenSlash},
	{"%", TokenPercent},
	{"@", TokenAt},
	{"&", TokenAmpersand},
	{"|", TokenVerticalBar},
	{"^", TokenCircumflex},
	{"~", TokenTilde},
	{"!", TokenExclamation},
	{"<", TokenLessThan},
	{">", TokenGreaterThan},
}

func isIdentifierStart(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

func isIdentifierMid(c byte) bool {
	return isIdentifierStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits src into tokens. Whitespace and comments are dropped,
// line breaks are kept because they end statements. Lexical problems are
// reported and produce a TokenError token so the parser can resync. The
// returned slice always ends with a TokenEnd token.
func tokenize(report *diagn.Report, file string, src string) []Token {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]

		// whitespace
		if c == ' ' || c == '\t' || c == '\r' {
			i++
			continue
		}

		// comments run to the end of the line
		if c == ';' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}

		if c == '\n' {
			toks = append(toks, Token{
				Kind: TokenLineBreak,
				Text: "\n",
				Span: diagn.NewSpan(file, i, i+1),
			})
			i++
			continue
		}

		if isIdentifierStart(c) {
			start := i
			for i < len(src) && isIdentifierMid(src[i]) {
				i++
			}
			toks = append(toks, Token{
				Kind: TokenIdentifier,
				Text: src[start:i],
				Span: diagn.NewSpan(file, start, i),
			})
			continue
		}

		if isDigit(c) {
			start := i
			for i < len(src) && (isIdentifierMid(src[i]) || src[i] == '_') {
				i++
			}
			toks = append(toks, Token{
				Kind: TokenNumber,
				Text: src[start:i],
				Span: diagn.NewSpan(file, start, i),
			})
			continue
		}

		if c == '"' {
			start := i
			i++
			for i < len(src) && src[i] != '"' && src[i] != '\n' {
				i++
			}
			if i >= len(src) || src[i] != '"' {
				span := diagn.NewSpan(file, start, i)
				report.Errorf(span, "unterminated string")
				toks = append(toks, Token{Kind: TokenError, Text: src[start:i], Span: span})
				continue
			}
			i++
			toks = append(toks, Token{
				Kind: TokenString,
				Text: src[start:i],
				Span: diagn.NewSpan(file, start, i),
			})
			continue
		}

		if kind, text, ok := matchFixedToken(src[i:]); ok {
			toks = append(toks, Token{
				Kind: kind,
				Text: text,
				Span: diagn.NewSpan(file, i, i+len(text)),
			})
			i += len(text)
			continue
		}

		span := diagn.NewSpan(file, i, i+1)
		report.Errorf(span, "unexpected character `%c`", c)
		toks = append(toks, Token{Kind: TokenError, Text: src[i : i+1], Span: span})
		i++
	}

	toks = append(toks, Token{
		Kind: TokenEnd,
		Span: diagn.NewSpan(file, len(src), len(src)),
	})
	return toks
}

func matchFixedToken(src string) (TokenKind, string, bool) {
	for _, fixed := range fixedTokens {
		if strings.HasPrefix(src, fixed.text) {
			return fixed.kind, fixed.text, true
		}
	}
	return TokenError, "", false
}
