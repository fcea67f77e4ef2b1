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

// Package asm assembles programs written in an assembly-like language
// with user-defined instruction encodings. The source declares its own
// instruction set as pattern => production rules; the assembler matches
// every instruction against those patterns, resolves symbol values and
// encoding sizes by iterating to a fixed point, and lays the resolved
// bytes out into addressable output banks.
package asm

import (
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/logging"
	"github.com/algorand/ruleasm/serr"
)

// DefaultMaxIterations is the resolver's iteration ceiling when the
// caller does not supply one. Real programs converge within a handful
// of passes bounded by their longest dependency chain; the ceiling only
// exists to stop pathological inputs.
const DefaultMaxIterations = 10

// Options adjusts an assembly run.
type Options struct {
	// MaxIterations caps the resolver's fixed-point loop. Zero or
	// negative selects DefaultMaxIterations.
	MaxIterations int
	// MaxIncludeDepth caps #include nesting. Zero or negative selects
	// the parser's default.
	MaxIncludeDepth int
	// Log receives per-stage progress at debug level. Nil selects the
	// base logger.
	Log logging.Logger
}

// Result carries everything a successful run produces: the finalized
// definition store for listing tools, the output image, and the number
// of resolver iterations that were needed.
type Result struct {
	Defs       *ItemDefs
	Output     *Output
	Iterations int
}

// Assemble runs the full pipeline on rootFile. Diagnostics accumulate
// in report; on failure the returned error summarizes the run and the
// report carries the details. No partial output is produced on failure.
func Assemble(report *diagn.Report, fs FileServer, rootFile string, opts Options) (*Result, error) {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	log := opts.Log
	if log == nil {
		log = logging.Base()
	}

	ast, err := parseAndResolveIncludes(report, fs, rootFile, opts.MaxIncludeDepth)
	if err != nil {
		return nil, serr.Extend(err, "stage", "parse")
	}

	defs := NewItemDefs()
	if err := collectDecls(report, ast, defs); err != nil {
		return nil, serr.Extend(err, "stage", "decls")
	}
	if err := define(report, ast, defs); err != nil {
		return nil, serr.Extend(err, "stage", "defs")
	}
	if err := resolveConstants(report, log, ast, defs); err != nil {
		return nil, serr.Extend(err, "stage", "constants")
	}
	if err := matchAll(report, log, defs); err != nil {
		return nil, serr.Extend(err, "stage", "match")
	}
	iterations, err := resolveIteratively(report, log, ast, defs, maxIterations)
	if err != nil {
		return nil, serr.Extend(err, "stage", "resolve", "iterations", iterations)
	}
	log.Debugf("resolution converged after %d iteration(s)", iterations)

	if err := checkBankOverlap(report, defs); err != nil {
		return nil, serr.Extend(err, "stage", "overlap")
	}
	output, err := buildOutput(report, defs)
	if err != nil {
		return nil, serr.Extend(err, "stage", "output")
	}

	return &Result{
		Defs:       defs,
		Output:     output,
		Iterations: iterations,
	}, nil
}

// AssembleStringFilename is the filename AssembleString registers its
// source under, usable for span lookups in diagnostics.
const AssembleStringFilename = "main.asm"

// AssembleString assembles src directly from memory.
func AssembleString(report *diagn.Report, src string, opts Options) (*Result, error) {
	fs := NewMockFileServer()
	fs.Add(AssembleStringFilename, src)
	return Assemble(report, fs, AssembleStringFilename, opts)
}
