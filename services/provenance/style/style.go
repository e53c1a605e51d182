// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package style scores lexical and formatting habits of source text.
package style

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/montanaflynn/stats"

	"github.com/AleutianAI/provenance/services/provenance/lang"
	"github.com/AleutianAI/provenance/services/provenance/signal"
)

// Error markers reported in Features.Error.
const (
	ErrorEmptyCode = "empty_code"
	ErrorNoContent = "no_content"
)

const (
	weightFewComments     = 0.30
	weightLongNames       = 0.20
	penaltyShortNames     = -0.10
	weightUniformIndent   = 0.25
	weightDocstrings      = 0.15
	weightUniformLines    = 0.10
	indentVarianceCutoff  = 0.5
	lineLengthStdDevLimit = 10.0
)

// identifierPattern matches lowercase identifiers and keywords.
var identifierPattern = regexp.MustCompile(`\b[a-z_][a-z0-9_]*\b`)

// Features are the style measurements behind a style score.
type Features struct {
	CommentRatio        float64 `json:"comment_ratio"`
	AvgIdentifierLength float64 `json:"avg_var_length"`
	IndentVariance      float64 `json:"indent_variance"`
	HasDocstrings       bool    `json:"has_docstrings"`
	AvgLineLength       float64 `json:"avg_line_length"`
	LineLengthStdDev    float64 `json:"line_length_std"`
	NumLines            int     `json:"num_lines"`

	Error string         `json:"error,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// MarshalJSON emits only the error marker for unmeasured code.
func (f Features) MarshalJSON() ([]byte, error) {
	if f.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{f.Error})
	}
	type plain Features
	return json.Marshal(plain(f))
}

// Thresholds are the configurable rule cut-offs.
type Thresholds struct {
	CommentRatio float64
	NamingLength float64
}

// Extractor computes the style signal. Safe for concurrent use.
type Extractor struct {
	profile    *lang.Profile
	thresholds Thresholds
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor for profile.
func New(profile *lang.Profile, th Thresholds, opts ...Option) *Extractor {
	e := &Extractor{profile: profile, thresholds: th, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// measurements are the unrounded values the rules read.
type measurements struct {
	commentRatio  float64
	avgIdentLen   float64
	indentVar     float64
	hasDocs       bool
	lineLengthStd float64
	hasLines      bool
}

// Score measures code and returns its features and signal.
//
// Empty input and input with no non-blank lines degrade to 0.5.
func (e *Extractor) Score(code string) (Features, signal.Result) {
	if strings.TrimSpace(code) == "" {
		return Features{Error: ErrorEmptyCode}, signal.Degrade(signal.KindStyle, ErrorEmptyCode)
	}

	lines := strings.Split(code, "\n")
	var nonEmpty []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}
	if len(nonEmpty) == 0 {
		return Features{Error: ErrorNoContent}, signal.Degrade(signal.KindStyle, ErrorNoContent)
	}

	m := e.measure(code, nonEmpty)
	f := Features{
		CommentRatio:        signal.Round(m.commentRatio, 3),
		AvgIdentifierLength: signal.Round(m.avgIdentLen, 2),
		IndentVariance:      signal.Round(m.indentVar, 2),
		HasDocstrings:       m.hasDocs,
		LineLengthStdDev:    signal.Round(m.lineLengthStd, 2),
		NumLines:            len(nonEmpty),
		Extra:               map[string]any{"language": e.profile.Name},
	}

	lengths := runeLengths(nonEmpty)
	if avg, err := stats.Mean(lengths); err == nil {
		f.AvgLineLength = signal.Round(avg, 1)
	}

	score := e.rules(m)
	e.logger.Debug("style features", "comment_ratio", f.CommentRatio,
		"avg_var_length", f.AvgIdentifierLength, "indent_variance", f.IndentVariance, "score", score)

	return f, signal.Computed(signal.KindStyle, score)
}

func (e *Extractor) measure(code string, nonEmpty []string) measurements {
	p := e.profile
	var m measurements

	comments := 0
	var indents []float64
	for _, line := range nonEmpty {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, p.CommentPrefix) {
			comments++
			continue
		}
		body := strings.TrimLeftFunc(line, unicode.IsSpace)
		indents = append(indents, float64(utf8.RuneCountInString(line)-utf8.RuneCountInString(body)))
	}
	m.commentRatio = float64(comments) / float64(len(nonEmpty))

	var identLens []float64
	for _, word := range identifierPattern.FindAllString(code, -1) {
		if strings.HasPrefix(word, "__") || p.IsKeyword(word) {
			continue
		}
		identLens = append(identLens, float64(len(word)))
	}
	if avg, err := stats.Mean(identLens); err == nil {
		m.avgIdentLen = avg
	}

	if len(indents) > 1 {
		if v, err := stats.PopulationVariance(indents); err == nil {
			m.indentVar = v
		}
	}

	m.hasDocs = p.HasDocs(code)

	lengths := runeLengths(nonEmpty)
	if sd, err := stats.StandardDeviationPopulation(lengths); err == nil {
		m.lineLengthStd = sd
		m.hasLines = true
	}

	return m
}

// rules applies the additive rule weights and clamps the sum.
func (e *Extractor) rules(m measurements) float64 {
	score := 0.0
	if m.commentRatio < e.thresholds.CommentRatio {
		score += weightFewComments
	}
	if m.avgIdentLen > e.thresholds.NamingLength {
		score += weightLongNames
	} else {
		score += penaltyShortNames
	}
	if m.indentVar < indentVarianceCutoff {
		score += weightUniformIndent
	}
	if m.hasDocs {
		score += weightDocstrings
	}
	if m.hasLines && m.lineLengthStd < lineLengthStdDevLimit {
		score += weightUniformLines
	}
	return signal.Clamp01(score)
}

func runeLengths(lines []string) stats.Float64Data {
	out := make(stats.Float64Data, len(lines))
	for i, l := range lines {
		out[i] = float64(utf8.RuneCountInString(l))
	}
	return out
}
