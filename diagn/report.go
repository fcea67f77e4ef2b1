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
	"errors"
	"fmt"

	"github.com/algorand/go-deadlock"
)

// ErrReported signals that at least one Error message was appended to
// the report. Pipeline stages return it so callers know the details are
// in the Report rather than in the error value itself.
var ErrReported = errors.New("diagnostics reported")

// Report accumulates diagnostics across pipeline stages. It is safe for
// concurrent use.
type Report struct {
	mu         deadlock.Mutex
	messages   []Message
	errorCount int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Append adds a fully formed message.
func (r *Report) Append(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	if msg.Severity == Error {
		r.errorCount++
	}
}

// Errorf appends an Error message at span.
func (r *Report) Errorf(span Span, format string, args ...interface{}) {
	r.Append(Message{
		Severity: Error,
		Text:     fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// ErrorWithNotes appends an Error message carrying secondary locations.
func (r *Report) ErrorWithNotes(span Span, text string, notes ...Message) {
	r.Append(Message{
		Severity: Error,
		Text:     text,
		Span:     span,
		Notes:    notes,
	})
}

// Warnf appends a Warning message at span.
func (r *Report) Warnf(span Span, format string, args ...interface{}) {
	r.Append(Message{
		Severity: Warning,
		Text:     fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// HasErrors reports whether any Error message was appended.
func (r *Report) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount > 0
}

// ErrorCount returns the number of Error messages appended so far.
func (r *Report) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount
}

// Len returns the total number of messages, notes excluded.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Messages returns a copy of the accumulated messages in append order.
func (r *Report) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// StopAtErrors returns ErrReported when the report holds errors, and nil
// otherwise. Stages call it at their exit points so a run stops at the
// first stage that produced errors while still reporting everything that
// stage found.
func (r *Report) StopAtErrors() error {
	if r.HasErrors() {
		return ErrReported
	}
	return nil
}
