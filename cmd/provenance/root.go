// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/provenance/pkg/logging"
	"github.com/AleutianAI/provenance/services/provenance/config"
	"github.com/AleutianAI/provenance/services/provenance/detector"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
	jsonOutput bool
	language   string
	noCache    bool
	parallel   bool
}

// app holds what subcommands need at run time.
type app struct {
	flags  globalFlags
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "provenance",
		Short: "Score source code for signs of machine generation",
		Long: `provenance combines a perplexity signal from a language model with
structural and stylistic analysis of the code into a risk tier and a
short explanation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "write logs as JSON")
	pf.BoolVar(&a.flags.jsonOutput, "json", false, "always print results as JSON")
	pf.StringVarP(&a.flags.language, "language", "l", "", "override the configured language")
	pf.BoolVar(&a.flags.noCache, "no-cache", false, "disable the result cache")
	pf.BoolVar(&a.flags.parallel, "parallel", false, "run the extractors concurrently")

	root.AddCommand(
		newDetectCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// config loads the configuration and applies flag overrides.
func (a *app) config() (config.Config, error) {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if a.flags.language != "" {
		cfg.Language = a.flags.language
	}
	if a.flags.noCache {
		cfg.Cache.Enabled = false
	}
	if a.flags.parallel {
		cfg.Parallel = true
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (a *app) logger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(a.flags.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "provenance",
		JSON:    a.flags.logJSON,
		Output:  a.stderr,
	}), nil
}

// detector builds a Detector from the effective configuration. The caller
// closes both returned values.
func (a *app) detector() (*detector.Detector, *logging.Logger, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	logger, err := a.logger()
	if err != nil {
		return nil, nil, err
	}
	d, err := detector.New(cfg, detector.WithLogger(logger.Slog()))
	if err != nil {
		_ = logger.Close()
		return nil, nil, fmt.Errorf("create detector: %w", err)
	}
	return d, logger, nil
}

// pretty reports whether results should be rendered for a human.
func (a *app) pretty() bool {
	if a.flags.jsonOutput {
		return false
	}
	f, ok := a.stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
