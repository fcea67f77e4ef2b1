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

package logging

import (
	"strings"
	"testing"
)

// testLogWriter forwards log output to the test log, so failures show the
// log lines of the failing test only.
type testLogWriter struct {
	tb testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// TestingLog returns a Logger that writes to the test log.
func TestingLog(tb testing.TB) Logger {
	l := NewLogger()
	l.SetLevel(Warn)
	l.SetOutput(testLogWriter{tb})
	return l
}

// TestingLogWithoutFatalExit is like TestingLog, except Fatal logs do not
// terminate the process, so tests can exercise fatal paths.
func TestingLogWithoutFatalExit(tb testing.TB) Logger {
	l := TestingLog(tb)
	wrapped := l.(logger)
	wrapped.entry.Logger.ExitFunc = func(int) {}
	return wrapped
}
