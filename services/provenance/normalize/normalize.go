// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize canonicalises whitespace before statistical scoring.
//
// Every mode is length non-increasing: the output never has more runes
// than the input.
package normalize

import (
	"strings"
	"unicode"
)

// Mode selects how much of the input is rewritten.
type Mode string

const (
	// Light fixes line endings, trailing whitespace and blank-line runs.
	Light Mode = "light"

	// Medium is Light plus removal of full-line comments.
	Medium Mode = "medium"

	// Aggressive is Medium plus collapsing intra-line whitespace runs.
	Aggressive Mode = "aggressive"
)

// maxBlankRun is the longest run of blank lines Light keeps.
const maxBlankRun = 2

// Normalizer rewrites code according to a Mode.
type Normalizer struct {
	mode          Mode
	commentPrefix string
}

// New creates a Normalizer. Unknown modes behave as Light. commentPrefix
// is the full-line comment marker used by Medium and Aggressive, such as
// "#" or "//"; empty disables comment stripping.
func New(mode Mode, commentPrefix string) *Normalizer {
	switch mode {
	case Light, Medium, Aggressive:
	default:
		mode = Light
	}
	return &Normalizer{mode: mode, commentPrefix: commentPrefix}
}

// Mode returns the effective mode.
func (n *Normalizer) Mode() Mode {
	return n.mode
}

// Normalize returns the normalised form of code.
func (n *Normalizer) Normalize(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")

	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))
	blank := 0

	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)

		if n.mode != Light && n.commentPrefix != "" &&
			strings.HasPrefix(strings.TrimSpace(line), n.commentPrefix) {
			continue
		}
		if n.mode == Aggressive {
			line = collapseSpaces(line)
		}

		if line == "" {
			blank++
			if blank > maxBlankRun {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// collapseSpaces keeps leading indentation and squeezes every later run of
// whitespace to a single space.
func collapseSpaces(line string) string {
	body := strings.TrimLeftFunc(line, unicode.IsSpace)
	indent := line[:len(line)-len(body)]

	var b strings.Builder
	b.Grow(len(line))
	b.WriteString(indent)

	inSpace := false
	for _, r := range body {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
