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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/provenance/pkg/ux"
	"github.com/AleutianAI/provenance/services/provenance/detector"
)

// batchEntry is one file's outcome in batch output.
type batchEntry struct {
	Path   string           `json:"path"`
	Result *detector.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newBatchCmd(a *app) *cobra.Command {
	var failOn string

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Score several files in order",
		Long: `Scores every file and reports each outcome. A file that cannot be
read or scored is reported and does not stop the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseFailOn(failOn)
			if err != nil {
				return err
			}

			d, logger, err := a.detector()
			if err != nil {
				return err
			}
			defer logger.Close()
			defer d.Close()

			entries := make([]batchEntry, 0, len(args))
			var clean, hits, failed int
			for _, path := range args {
				entry := batchEntry{Path: path}
				code, err := a.read(path)
				if err == nil {
					entry.Result, err = d.Detect(cmd.Context(), code)
				}
				switch {
				case err != nil:
					entry.Error = err.Error()
					failed++
				case flagged(entry.Result, threshold):
					hits++
				default:
					clean++
				}
				entries = append(entries, entry)
			}

			if a.pretty() {
				p := ux.NewPrinter(a.stdout, false)
				for _, e := range entries {
					if e.Result == nil {
						p.Status(ux.IconError, e.Path+": "+e.Error)
						continue
					}
					renderResult(p, e.Path, e.Result)
				}
				p.Summary(clean, hits, failed)
			} else if err := writeJSON(a.stdout, entries); err != nil {
				return err
			}

			switch {
			case failed > 0:
				return &exitCodeError{code: exitError}
			case hits > 0:
				return &exitCodeError{code: exitAI}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "",
		"exit 1 when any risk level reaches this tier; default: the AI verdict")
	return cmd
}
