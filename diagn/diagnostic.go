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

// Package diagn collects located diagnostics emitted by the assembler
// pipeline. Every stage appends messages to a shared Report instead of
// returning an error for each problem, so a single run can surface
// multiple independent mistakes in the source.
package diagn

import (
	"fmt"
)

// Severity classifies a diagnostic message.
type Severity int

const (
	// Error marks a problem that prevents output generation.
	Error Severity = iota
	// Warning marks a suspicious construct that does not stop the run.
	Warning
	// Info carries supplementary information attached to another message.
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "note"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Span identifies a byte range inside one source file. The zero value
// carries no location and renders without a source excerpt.
type Span struct {
	File  string
	Start int
	End   int
}

// NewSpan builds a span covering [start, end) in file.
func NewSpan(file string, start, end int) Span {
	return Span{File: file, Start: start, End: end}
}

// HasLocation reports whether the span points into a real file.
func (s Span) HasLocation() bool {
	return s.File != ""
}

// Extend returns the smallest span covering both s and other. Spans in
// different files cannot be merged; the receiver wins.
func (s Span) Extend(other Span) Span {
	if !s.HasLocation() {
		return other
	}
	if !other.HasLocation() || other.File != s.File {
		return s
	}
	result := s
	if other.Start < result.Start {
		result.Start = other.Start
	}
	if other.End > result.End {
		result.End = other.End
	}
	return result
}

func (s Span) String() string {
	if !s.HasLocation() {
		return "<no location>"
	}
	return fmt.Sprintf("%s[%d:%d]", s.File, s.Start, s.End)
}

// Message is a single diagnostic with optional nested notes. Notes hold
// related locations, for example the rule definitions that make an
// instruction ambiguous.
type Message struct {
	Severity Severity
	Text     string
	Span     Span
	Notes    []Message
}

// Note builds an Info message suitable for attaching to another message.
func Note(span Span, format string, args ...interface{}) Message {
	return Message{
		Severity: Info,
		Text:     fmt.Sprintf(format, args...),
		Span:     span,
	}
}
