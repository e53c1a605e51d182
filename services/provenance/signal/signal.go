// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signal defines the bounded score each extractor produces.
//
// An extractor never fails a detection. It returns either a computed score
// in [0, 1] or a degraded result carrying a reason, and the aggregator
// substitutes NeutralScore for degraded signals.
package signal

import (
	"fmt"
	"math"
)

const (
	// NeutralScore is substituted for any signal that could not be computed.
	NeutralScore = 0.5

	// NeutralPerplexity is reported when perplexity could not be computed.
	NeutralPerplexity = 50.0
)

// Kind names one of the three signals.
type Kind string

const (
	KindPerplexity Kind = "perplexity"
	KindStructural Kind = "structural"
	KindStyle      Kind = "style"
)

// Kinds lists every signal in aggregation order.
var Kinds = []Kind{KindPerplexity, KindStructural, KindStyle}

// Result is the outcome of one extractor.
//
// Exactly one of two shapes: Computed (Degraded false, Score in [0, 1]) or
// Degraded (Degraded true, Reason set, Score = NeutralScore).
type Result struct {
	Kind     Kind    `json:"kind"`
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded"`
	Reason   string  `json:"reason,omitempty"`
}

// Computed returns a computed result with score clamped to [0, 1].
func Computed(kind Kind, score float64) Result {
	return Result{Kind: kind, Score: Clamp01(score)}
}

// Degrade returns a degraded result for kind.
func Degrade(kind Kind, reason string) Result {
	return Result{Kind: kind, Score: NeutralScore, Degraded: true, Reason: reason}
}

// Effective returns the score the aggregator uses: Score when computed,
// NeutralScore when degraded.
func (r Result) Effective() float64 {
	if r.Degraded {
		return NeutralScore
	}
	return Clamp01(r.Score)
}

// String renders "kind=score" or "kind=degraded(reason)".
func (r Result) String() string {
	if r.Degraded {
		return fmt.Sprintf("%s=degraded(%s)", r.Kind, r.Reason)
	}
	return fmt.Sprintf("%s=%.3f", r.Kind, r.Score)
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
