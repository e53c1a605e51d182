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
	"fmt"
	"strings"

	"github.com/AleutianAI/provenance/services/provenance/config"
)

// Recommendation tokens. The text before the colon is the machine-readable
// code consumed by review tooling and must not change.
const (
	RecommendFlagForReview = "FLAG_FOR_REVIEW: High confidence AI detection"
	RecommendMonitor       = "MONITOR: Moderate AI signals detected"
	RecommendLowPriority   = "LOW_PRIORITY: Weak AI signals, likely acceptable"
	RecommendManualReview  = "MANUAL_REVIEW: Conflicting signals require human judgment"
	RecommendAccept        = "ACCEPT: No significant AI indicators detected"
)

// Reasoning clauses.
const (
	reasonStructural = "Structural uniformity suggests AI generation"
	reasonStyle      = "Style patterns consistent with AI-generated code"
	reasonConflict   = "Conflict: Low perplexity but human-like structure - manual review recommended"
	reasonHuman      = "Likely human-written code"

	clauseSeparator = "; "
	signalCutoff    = 0.5
)

// RecommendationCode returns the code part of a recommendation, e.g.
// "MONITOR" for RecommendMonitor.
func RecommendationCode(rec string) string {
	code, _, _ := strings.Cut(rec, ":")
	return strings.TrimSpace(code)
}

// Synthesize produces the human-readable reasoning and the ordered
// recommendation list for an assessment.
//
// Description:
//
//	Reasoning clauses, in order:
//	  - perplexity below bounds.AIThreshold: very low perplexity
//	  - otherwise below bounds.HumanThreshold: moderate perplexity
//	  - structural score above 0.5
//	  - style score above 0.5
//	  - conflict
//	Clauses are joined with "; ". With no clause the reasoning is
//	"Likely human-written code".
//
//	Recommendations: one of FLAG_FOR_REVIEW, MONITOR or LOW_PRIORITY when
//	the verdict is AI, then MANUAL_REVIEW on conflict. ACCEPT when empty.
//
// Inputs:
//
//	as - The assessment. RawPerplexity is the value quoted in the text.
//	bounds - The perplexity interpolation bounds.
//
// Outputs:
//
//	string - Reasoning text.
//	[]string - Recommendations, never empty.
//
// Thread Safety: Pure function, safe for concurrent use.
func Synthesize(as Assessment, bounds config.PerplexityConfig) (string, []string) {
	var parts []string
	switch {
	case as.RawPerplexity < bounds.AIThreshold:
		parts = append(parts, fmt.Sprintf("Very low perplexity (%.1f) indicates AI-like patterns", as.RawPerplexity))
	case as.RawPerplexity < bounds.HumanThreshold:
		parts = append(parts, fmt.Sprintf("Moderate perplexity (%.1f) suggests some AI characteristics", as.RawPerplexity))
	}
	if as.StructuralScore > signalCutoff {
		parts = append(parts, reasonStructural)
	}
	if as.StyleScore > signalCutoff {
		parts = append(parts, reasonStyle)
	}
	if as.Conflict {
		parts = append(parts, reasonConflict)
	}

	reasoning := reasonHuman
	if len(parts) > 0 {
		reasoning = strings.Join(parts, clauseSeparator)
	}

	var recs []string
	if as.Verdict {
		switch as.Tier {
		case TierHigh:
			recs = append(recs, RecommendFlagForReview)
		case TierMedium:
			recs = append(recs, RecommendMonitor)
		default:
			recs = append(recs, RecommendLowPriority)
		}
	}
	if as.Conflict {
		recs = append(recs, RecommendManualReview)
	}
	if len(recs) == 0 {
		recs = append(recs, RecommendAccept)
	}

	return reasoning, recs
}
