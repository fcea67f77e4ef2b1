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

// TokenKind enumerates the lexical token categories of the source
// language.
type TokenKind int

const (
	// TokenEnd terminates every token stream.
	TokenEnd TokenKind = iota
	// TokenError marks a span the lexer could not tokenize.
	TokenError
	TokenLineBreak
	TokenIdentifier
	TokenNumber
	TokenString
	TokenHash
	TokenParenOpen
	TokenParenClose
	TokenBracketOpen
	TokenBracketClose
	TokenBraceOpen
	TokenBraceClose
	TokenDot
	TokenComma
	TokenColon
	TokenArrowRight
	TokenDollar
	TokenBacktick
	TokenEqual
	TokenPlus
	TokenMinus
	TokenAsterisk
	TokenSlash
	TokenPercent
	TokenAt
	TokenAmpersand
	TokenVerticalBar
	TokenCircumflex
	TokenTilde
	TokenExclamation
	TokenLessThan
	TokenGreaterThan
	TokenDoubleAmpersand
	TokenDoubleVerticalBar
	TokenDoubleEqual
	TokenExclamationEqual
	TokenLessThanEqual
	TokenGreaterThanEqual
	TokenDoubleLessThan
	TokenDoubleGreaterThan
)

var tokenKindNames = map[TokenKind]string{
	TokenEnd:               "end of input",
	TokenError:             "invalid token",
	TokenLineBreak:         "line break",
	TokenIdentifier:        "identifier",
	TokenNumber:            "number",
	TokenString:            "string",
	TokenHash:              "`#`",
	TokenParenOpen:         "`(`",
	TokenParenClose:        "`)`",
	TokenBracketOpen:       "`[`",
	TokenBracketClose:      "`]`",
	TokenBraceOpen:         "`{`",
	TokenBraceClose:        "`}`",
	TokenDot:               "`.`",
	TokenComma:             "`,`",
	TokenColon:             "`:`",
	TokenArrowRight:        "`=>`",
	TokenDollar:            "`$`",
	TokenBacktick:          "`` ` ``",
	TokenEqual:             "`=`",
	TokenPlus:              "`+`",
	TokenMinus:             "`-`",
	TokenAsterisk:          "`*`",
	TokenSlash:             "`/`",
	TokenPercent:           "`%`",
	TokenAt:                "`@`",
	TokenAmpersand:         "`&`",
	TokenVerticalBar:       "`|`",
	TokenCircumflex:        "`^`",
	TokenTilde:             "`~`",
	TokenExclamation:       "`!`",
	TokenLessThan:          "`<`",
	TokenGreaterThan:       "`>`",
	TokenDoubleAmpersand:   "`&&`",
	TokenDoubleVerticalBar: "`||`",
	TokenDoubleEqual:       "`==`",
	TokenExclamationEqual:  "`!=`",
	TokenLessThanEqual:     "`<=`",
	TokenGreaterThanEqual:  "`>=`",
	TokenDoubleLessThan:    "`<<`",
	TokenDoubleGreaterThan: "`>>`",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "token"
}

// Token is one lexical element with its source span. Text holds the
// exact excerpt, which pattern matching compares literally.
type Token struct {
	Kind TokenKind
	Text string
	Span diagn.Span
}

// Is reports whether the token has the given kind.
func (t Token) Is(kind TokenKind) bool {
	return t.Kind == kind
}

// Matches reports whether the token can stand for other in a rule
// pattern. Identifiers and numbers must agree on their excerpt;
// punctuation agrees by kind alone.
func (t Token) Matches(other Token) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TokenIdentifier, TokenNumber, TokenString:
		return t.Text == other.Text
	default:
		return true
	}
}
