// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package structural scores the shape of a program's syntax tree.
//
// Generated code tends to be shallow and uniform: few branches, a narrow
// vocabulary of node types, a single function and no error handling. The
// extractor parses the code with tree-sitter, measures those properties and
// sums fixed rule weights into a score in [0, 1].
package structural

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/provenance/services/provenance/lang"
	"github.com/AleutianAI/provenance/services/provenance/signal"
)

// Error markers reported in Features.Error.
const (
	ErrorEmptyCode   = "empty_code"
	ErrorSyntax      = "syntax_error"
	ErrorParseFailed = "parse_failed"
)

// Rule weights. Applied additively, then clamped to [0, 1].
const (
	weightLowVariance     = 0.35
	weightLowComplexity   = 0.25
	weightLowDiversity    = 0.20
	weightNoErrorHandling = 0.10
	weightSimpleStructure = 0.10
	diversityCutoff       = 10
	maxFunctionsForSimple = 1
)

// Features are the syntax-tree measurements behind a structural score.
type Features struct {
	MaxDepth         int     `json:"max_depth"`
	AvgDepth         float64 `json:"avg_depth"`
	DepthVariance    float64 `json:"depth_variance"`
	Complexity       int     `json:"complexity"`
	NodeDiversity    int     `json:"node_diversity"`
	HasErrorHandling bool    `json:"has_error_handling"`
	NumFunctions     int     `json:"num_functions"`
	NumClasses       int     `json:"num_classes"`

	// Error is set instead of the metrics when the code could not be
	// measured.
	Error string `json:"error,omitempty"`

	// Extra carries auxiliary values such as the language and node count.
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
	DepthVariance float64
	Complexity    float64
}

// Extractor computes the structural signal.
//
// A new parser is created per call; tree-sitter parsers are not safe for
// concurrent use. The Extractor itself is.
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

// Score parses code and returns its features and signal.
//
// Description:
//
//	Never returns an error. Empty input, syntax errors and parser failures
//	produce a degraded signal (score 0.5) with Features.Error set to
//	ErrorEmptyCode, ErrorSyntax or the failure message.
func (e *Extractor) Score(ctx context.Context, code string) (Features, signal.Result) {
	ctx, span := startScoreSpan(ctx, e.profile.Name, len(code))
	defer span.End()

	start := time.Now()

	if strings.TrimSpace(code) == "" {
		return degraded(ErrorEmptyCode)
	}

	src := []byte(code)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.profile.Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		e.logger.Warn("structural parse failed", "language", e.profile.Name, "error", err)
		recordParse(ctx, e.profile.Name, time.Since(start), outcomeFailed)
		span.RecordError(err)
		return degraded(fmt.Sprintf("%s: %v", ErrorParseFailed, err))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		e.logger.Warn("structural parse found syntax errors", "language", e.profile.Name)
		recordParse(ctx, e.profile.Name, time.Since(start), outcomeSyntax)
		return degraded(ErrorSyntax)
	}

	f, variance := e.measure(root, src)
	score := e.rules(f, variance)

	recordParse(ctx, e.profile.Name, time.Since(start), outcomeOK)
	setScoreSpanResult(span, f, score)

	return f, signal.Computed(signal.KindStructural, score)
}

func degraded(marker string) (Features, signal.Result) {
	return Features{Error: marker}, signal.Degrade(signal.KindStructural, marker)
}

type frame struct {
	node  *sitter.Node
	depth int
}

// measure walks every named node below root iteratively. Root is depth 0.
// The unrounded depth variance is returned alongside the rounded features.
func (e *Extractor) measure(root *sitter.Node, src []byte) (Features, float64) {
	p := e.profile

	var depths []float64
	types := make(map[string]struct{})
	f := Features{}

	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := top.node
		kind := n.Type()
		if p.Ignored.Has(kind) {
			continue
		}

		depths = append(depths, float64(top.depth))
		types[kind] = struct{}{}
		if top.depth > f.MaxDepth {
			f.MaxDepth = top.depth
		}

		if p.Complexity.Has(kind) {
			f.Complexity++
		}
		if p.ErrorHandling.Has(kind) || (p.HandlesError != nil && p.HandlesError(n, src)) {
			f.HasErrorHandling = true
		}
		if p.Functions.Has(kind) {
			f.NumFunctions++
		}
		if p.Classes.Has(kind) {
			f.NumClasses++
		}

		count := int(n.NamedChildCount())
		for i := count - 1; i >= 0; i-- {
			stack = append(stack, frame{n.NamedChild(i), top.depth + 1})
		}
	}

	var variance float64
	if len(depths) > 0 {
		var mean float64
		mean, variance = stat.PopMeanVariance(depths, nil)
		if len(depths) == 1 {
			variance = 0
		}
		f.AvgDepth = signal.Round(mean, 2)
		f.DepthVariance = signal.Round(variance, 2)
	}
	f.NodeDiversity = len(types)
	f.Extra = map[string]any{
		"language":   p.Name,
		"node_count": len(depths),
	}
	return f, variance
}

// rules applies the additive rule weights and clamps the sum.
func (e *Extractor) rules(f Features, depthVariance float64) float64 {
	score := 0.0
	if depthVariance < e.thresholds.DepthVariance {
		score += weightLowVariance
	}
	if float64(f.Complexity) < e.thresholds.Complexity {
		score += weightLowComplexity
	}
	if f.NodeDiversity < diversityCutoff {
		score += weightLowDiversity
	}
	if !f.HasErrorHandling && f.NumFunctions > 0 {
		score += weightNoErrorHandling
	}
	if f.NumFunctions <= maxFunctionsForSimple && f.NumClasses == 0 {
		score += weightSimpleStructure
	}
	return signal.Clamp01(score)
}
