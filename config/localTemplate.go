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

package config

// Local holds the per-installation assembler settings.
// All fields must be exported and supported by the migrate() machinery:
// the version[N] tags hold the default value for each config version, so
// that older config files can be brought forward when a default changes.
type Local struct {
	// Version tracks the current version of the defaults so we can migrate old -> new
	// This is specifically important whenever we decide to change the default value
	// for an existing parameter. This field tag must be updated any time we add a new version.
	Version uint32 `version[0]:"" version[1]:"1" version[2]:"2"`

	// MaxIterations bounds the number of resolution passes before the
	// assembler gives up on convergence. Zero means the built-in default.
	MaxIterations uint64 `version[0]:"8" version[2]:"10"`

	// MaxIncludeDepth bounds the nesting of #include directives.
	MaxIncludeDepth uint64 `version[0]:"32"`

	// OutputFormat selects the default output rendering: binary, hexstr or
	// annotated. The command line -f flag overrides it.
	OutputFormat string `version[0]:"binary"`

	// BaseLoggerDebugLevel specifies the logging level for ruleasm.
	// The levels range from 0 (panic) to 5 (debug).
	BaseLoggerDebugLevel uint32 `version[0]:"3" version[1]:"4"`

	// ColorizeDiagnostics enables ANSI colors in diagnostics printed to a
	// terminal. It has no effect when stderr is not a tty.
	ColorizeDiagnostics bool `version[0]:"true"`

	// Quiet suppresses the informational summary after a successful assembly.
	Quiet bool `version[0]:"false"`

	// DeadlockDetection controls enabling or disabling deadlock detection.
	// negative (-1) to disable, positive (1) to enable, 0 for default.
	DeadlockDetection int `version[1]:"0"`

	// DeadlockDetectionThreshold is the threshold used for deadlock detection, in seconds.
	DeadlockDetectionThreshold int `version[1]:"30"`
}

var defaultLocal = GetVersionedDefaultLocalConfig(getLatestConfigVersion())

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	return defaultLocal
}
