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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/provenance/pkg/ux"
	"github.com/AleutianAI/provenance/services/provenance/detector"
	"github.com/AleutianAI/provenance/services/provenance/risk"
)

func newDetectCmd(a *app) *cobra.Command {
	var failOn string

	cmd := &cobra.Command{
		Use:   "detect [file|-]",
		Short: "Score one file, or stdin when the argument is - or absent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseFailOn(failOn)
			if err != nil {
				return err
			}

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			code, err := a.read(path)
			if err != nil {
				return err
			}

			d, logger, err := a.detector()
			if err != nil {
				return err
			}
			defer logger.Close()
			defer d.Close()

			res, err := d.Detect(cmd.Context(), code)
			if err != nil {
				return err
			}

			if a.pretty() {
				renderResult(ux.NewPrinter(a.stdout, false), path, res)
			} else if err := writeJSON(a.stdout, res); err != nil {
				return err
			}

			if flagged(res, threshold) {
				return &exitCodeError{code: exitAI}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "",
		"exit 1 when the risk level reaches this tier (CLEAN, LOW, MEDIUM, HIGH); default: the AI verdict")
	return cmd
}

// parseFailOn parses the --fail-on tier. Empty means "use the verdict".
func parseFailOn(s string) (risk.Tier, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := risk.ParseTier(s)
	if err != nil {
		return "", fmt.Errorf("--fail-on: %w", err)
	}
	return t, nil
}

// flagged reports whether res should produce exit code 1.
func flagged(res *detector.Result, threshold risk.Tier) bool {
	if threshold == "" {
		return res.IsAIGenerated
	}
	return res.RiskLevel == threshold || res.RiskLevel.Exceeds(threshold)
}

// read returns the contents of path, or stdin for "-".
func (a *app) read(path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(a.stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResult(p *ux.Printer, source string, res *detector.Result) {
	if source == "-" {
		source = "stdin"
	}
	p.Title(source)

	verdict := "likely human-written"
	if res.IsAIGenerated {
		verdict = "likely AI-generated"
	}
	p.Field("Risk level", p.Level(string(res.RiskLevel))+" "+p.Muted("("+verdict+")"))
	p.Field("Confidence", p.ScoreBar(res.Confidence, 20))
	p.Field("Perplexity", fmt.Sprintf("%s  %s", p.ScoreBar(res.PerplexityScore, 20),
		p.Muted(fmt.Sprintf("ppl %.2f", res.Perplexity))))
	p.Field("Structural", p.ScoreBar(res.StructuralScore, 20))
	p.Field("Style", p.ScoreBar(res.StyleScore, 20))
	if res.ConflictDetected {
		p.Status(ux.IconWarning, "perplexity and structure disagree")
	}
	for _, dg := range res.Degradations {
		p.Status(ux.IconWarning, fmt.Sprintf("%s signal unavailable: %s", dg.Signal, dg.Reason))
	}

	p.Box("Reasoning", res.Reasoning)
	p.Title("Recommendations")
	for _, rec := range res.Recommendations {
		p.Bullet(rec)
	}
}
