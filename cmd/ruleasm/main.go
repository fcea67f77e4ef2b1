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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/algorand/ruleasm/asm"
	"github.com/algorand/ruleasm/config"
	"github.com/algorand/ruleasm/diagn"
	"github.com/algorand/ruleasm/logging"
)

var (
	versionCheck  bool
	outputPath    string
	outputFormat  string
	maxIterations int
	quiet         bool
	debugLog      bool
	configDir     string
)

var rootCmd = &cobra.Command{
	Use:   "ruleasm [flags] <file.asm>",
	Short: "Assembler with user-defined instruction encodings",
	Long: `ruleasm assembles programs whose instruction set is declared inside
the source itself, as #ruledef pattern => production rules. Symbol
values and encoding sizes are resolved by iterating to a fixed point,
and the resolved bytes are laid out into addressable output banks.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if versionCheck {
			fmt.Println(config.FormatVersionAndLicense())
			return
		}
		if len(args) == 0 {
			// If no file passed, we should fallback to help
			cmd.HelpFunc()(cmd, args)
			return
		}
		os.Exit(run(args[0]))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "The current version of ruleasm",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.FormatVersionAndLicense())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Flags().BoolVarP(&versionCheck, "version", "v", false, "Display and write current build version and exit")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the assembled image to this file (default stdout)")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: binary, hexstr or annotated (default from config)")
	rootCmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", 0, "Cap on resolution passes (default from config)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the post-assembly summary")
	rootCmd.Flags().BoolVarP(&debugLog, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&configDir, "config-dir", "c", "", "Directory holding config.json (default platform config dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(log logging.Logger) config.Local {
	dir := configDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return config.GetDefaultLocal()
		}
		dir = filepath.Join(base, "ruleasm")
	}
	cfg, err := config.LoadConfigFromDisk(dir)
	if err != nil && !os.IsNotExist(err) {
		log.Warnf("cannot load config from %s: %v", dir, err)
		return config.GetDefaultLocal()
	}
	if err != nil {
		// No config file present; run with the defaults.
		cfg = config.GetDefaultLocal()
	}
	return cfg
}

func configureDeadlockDetection(cfg config.Local) {
	switch {
	case cfg.DeadlockDetection > 0:
		// Explicitly enabled deadlock detection
		deadlock.Opts.Disable = false

	case cfg.DeadlockDetection < 0:
		// Explicitly disabled deadlock detection
		deadlock.Opts.Disable = true

	case cfg.DeadlockDetection == 0:
		deadlock.Opts.Disable = strings.ToLower(config.DefaultDeadlock) == "disable"
	}
	if !deadlock.Opts.Disable {
		deadlock.Opts.DeadlockTimeout = time.Second * time.Duration(cfg.DeadlockDetectionThreshold)
	}
}

func run(srcPath string) int {
	log := logging.Base()
	cfg := loadConfig(log)

	log.SetLevel(logging.Level(cfg.BaseLoggerDebugLevel))
	if debugLog {
		log.SetLevel(logging.Debug)
	}
	if !cfg.ColorizeDiagnostics {
		color.NoColor = true
	}
	configureDeadlockDetection(cfg)

	format := outputFormat
	if format == "" {
		format = cfg.OutputFormat
	}
	switch format {
	case "binary", "hexstr", "annotated":
	default:
		fmt.Fprintf(os.Stderr, "unknown output format `%s`\n", format)
		return 1
	}

	iterations := maxIterations
	if iterations <= 0 {
		iterations = int(cfg.MaxIterations)
	}

	fs := asm.NewDiskFileServer(filepath.Dir(srcPath))
	report := diagn.NewReport()
	res, err := asm.Assemble(report, fs, filepath.Base(srcPath), asm.Options{
		MaxIterations:   iterations,
		MaxIncludeDepth: int(cfg.MaxIncludeDepth),
		Log:             log,
	})
	report.Print(os.Stderr, fs)
	if err != nil {
		log.Debugf("assembly failed: %v", err)
		return 1
	}

	if err := writeOutput(res, format, fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if !quiet && !cfg.Quiet {
		image := res.Output.Bytes()
		fmt.Fprintf(os.Stderr, "assembled %s: %d byte(s), %d iteration(s)\n",
			srcPath, len(image), res.Iterations)
	}
	return 0
}

func writeOutput(res *asm.Result, format string, src diagn.SourceProvider) error {
	var data []byte
	switch format {
	case "binary":
		data = res.Output.Bytes()
	case "hexstr":
		data = []byte(res.Output.FormatHexStr() + "\n")
	case "annotated":
		data = []byte(res.Output.FormatAnnotated(src))
	}

	if outputPath == "" || outputPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0666)
}
