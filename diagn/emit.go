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

package diagn

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// SourceProvider supplies the text of already loaded source files so the
// emitter can show excerpts. Lookups must not trigger new file reads.
type SourceProvider interface {
	SourceText(filename string) (string, bool)
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noteColor    = color.New(color.FgCyan, color.Bold)
	locColor     = color.New(color.FgWhite)
	gutterColor  = color.New(color.FgBlue)
)

// Print renders every message in the report to w, with source excerpts
// taken from src. src may be nil, in which case only locations print.
func (r *Report) Print(w io.Writer, src SourceProvider) {
	for _, msg := range r.Messages() {
		printMessage(w, src, msg, 0)
		fmt.Fprintln(w)
	}
}

func severityColor(s Severity) *color.Color {
	switch s {
	case Error:
		return errorColor
	case Warning:
		return warningColor
	default:
		return noteColor
	}
}

func printMessage(w io.Writer, src SourceProvider, msg Message, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s %s\n", indent, severityColor(msg.Severity).Sprintf("%s:", msg.Severity), msg.Text)
	if msg.Span.HasLocation() {
		printExcerpt(w, src, msg.Span, indent)
	}
	for _, note := range msg.Notes {
		printMessage(w, src, note, depth+1)
	}
}

func printExcerpt(w io.Writer, src SourceProvider, span Span, indent string) {
	var text string
	var ok bool
	if src != nil {
		text, ok = src.SourceText(span.File)
	}
	if !ok {
		fmt.Fprintf(w, "%s  %s %s\n", indent, gutterColor.Sprint("-->"), locColor.Sprintf("%s", span.File))
		return
	}

	line, col := lineColumn(text, span.Start)
	fmt.Fprintf(w, "%s  %s %s\n", indent, gutterColor.Sprint("-->"), locColor.Sprintf("%s:%d:%d", span.File, line, col))

	lineStart := span.Start - (col - 1)
	lineEnd := strings.IndexByte(text[lineStart:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += lineStart
	}
	excerpt := strings.ReplaceAll(text[lineStart:lineEnd], "\t", " ")

	gutter := fmt.Sprintf("%4d", line)
	fmt.Fprintf(w, "%s %s %s\n", indent, gutterColor.Sprintf("%s |", gutter), excerpt)

	markEnd := span.End
	if markEnd > lineEnd {
		markEnd = lineEnd
	}
	markLen := markEnd - span.Start
	if markLen < 1 {
		markLen = 1
	}
	marker := strings.Repeat(" ", col-1) + strings.Repeat("^", markLen)
	fmt.Fprintf(w, "%s %s %s\n", indent, gutterColor.Sprintf("%s |", strings.Repeat(" ", len(gutter))), marker)
}

// lineColumn converts a byte offset to 1-based line and column numbers.
func lineColumn(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	line = 1
	lastNewline := -1
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	return line, offset - lastNewline
}
