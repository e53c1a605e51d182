// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AlgorithmVersion is the version of the aggregation algorithm.
// Increment when making changes that affect scores or tiers.
const AlgorithmVersion = "1.0"

// Tier is the risk band a weighted score falls in.
type Tier string

const (
	TierClean  Tier = "CLEAN"
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Tiers lists every tier from least to most severe.
var Tiers = []Tier{TierClean, TierLow, TierMedium, TierHigh}

var tierOrder = map[Tier]int{
	TierClean:  0,
	TierLow:    1,
	TierMedium: 2,
	TierHigh:   3,
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := tierOrder[t]; !ok {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}

// Order returns the numeric order of this tier, or -1 if unknown.
func (t Tier) Order() int {
	if o, ok := tierOrder[t]; ok {
		return o
	}
	return -1
}

// Exceeds returns true if this tier is more severe than threshold.
func (t Tier) Exceeds(threshold Tier) bool {
	return t.Order() > threshold.Order()
}

// IsAI returns true for the tiers that carry an AI-generated verdict.
func (t Tier) IsAI() bool {
	return t == TierHigh || t == TierMedium
}

// String implements fmt.Stringer.
func (t Tier) String() string { return string(t) }

// UnmarshalJSON accepts any casing of a known tier.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Assessment is the outcome of combining the three signals.
type Assessment struct {
	// Effective per-signal scores; degraded signals are 0.5.
	PerplexityScore float64 `json:"perplexity_score"`
	StructuralScore float64 `json:"structural_score"`
	StyleScore      float64 `json:"style_score"`

	// WeightedScore is the unrounded weighted sum.
	WeightedScore float64 `json:"weighted_score"`

	Tier     Tier `json:"risk_level"`
	Verdict  bool `json:"is_ai_generated"`
	Conflict bool `json:"conflict_detected"`

	// RawPerplexity is the perplexity value the conflict rule read.
	RawPerplexity float64 `json:"perplexity"`
}
