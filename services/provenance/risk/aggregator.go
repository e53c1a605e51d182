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
	"github.com/AleutianAI/provenance/services/provenance/config"
	"github.com/AleutianAI/provenance/services/provenance/signal"
)

// Aggregator combines signal results into an Assessment.
//
// # Thread Safety
//
// Aggregator is immutable and safe for concurrent use.
type Aggregator struct {
	weights    config.Weights
	thresholds config.Thresholds
	conflict   config.ConflictConfig
	perplexity config.PerplexityConfig
}

// NewAggregator creates an Aggregator from the weight, tier, conflict and
// perplexity sections of cfg. cfg is assumed to be validated.
func NewAggregator(cfg config.Config) *Aggregator {
	return &Aggregator{
		weights:    cfg.Weights,
		thresholds: cfg.Verdict,
		conflict:   cfg.Conflict,
		perplexity: cfg.Perplexity,
	}
}

// Combine computes the weighted score, tier, verdict and conflict flag.
//
// # Inputs
//
//   - perplexity, structural, style: The signal results. Degraded results
//     contribute signal.NeutralScore.
//   - rawPerplexity: The clamped perplexity value, used only by the
//     conflict rule.
//
// # Outputs
//
//   - Assessment: The combined result. WeightedScore is not rounded.
func (a *Aggregator) Combine(perplexity, structural, style signal.Result, rawPerplexity float64) Assessment {
	p := perplexity.Effective()
	s := structural.Effective()
	st := style.Effective()

	weighted := a.weights.Perplexity*p + a.weights.Structural*s + a.weights.Style*st
	tier := TierFor(weighted, a.thresholds)

	return Assessment{
		PerplexityScore: p,
		StructuralScore: s,
		StyleScore:      st,
		WeightedScore:   weighted,
		Tier:            tier,
		Verdict:         tier.IsAI(),
		Conflict:        rawPerplexity < a.conflict.PerplexityThreshold && s < a.conflict.StructuralThreshold,
		RawPerplexity:   rawPerplexity,
	}
}

// Synthesize explains an Assessment produced by this Aggregator.
func (a *Aggregator) Synthesize(as Assessment) (string, []string) {
	return Synthesize(as, a.perplexity)
}

// TierFor maps a weighted score to its tier. Bounds are inclusive and
// checked from HIGH down, so the mapping is monotone in score.
func TierFor(score float64, th config.Thresholds) Tier {
	switch {
	case score >= th.High:
		return TierHigh
	case score >= th.Medium:
		return TierMedium
	case score >= th.Low:
		return TierLow
	default:
		return TierClean
	}
}
