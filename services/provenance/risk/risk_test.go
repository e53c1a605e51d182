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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/provenance/services/provenance/config"
	"github.com/AleutianAI/provenance/services/provenance/signal"
)

func computed(p, s, st float64) (signal.Result, signal.Result, signal.Result) {
	return signal.Computed(signal.KindPerplexity, p),
		signal.Computed(signal.KindStructural, s),
		signal.Computed(signal.KindStyle, st)
}

func TestTier_Exceeds(t *testing.T) {
	tests := []struct {
		tier      Tier
		threshold Tier
		want      bool
	}{
		{TierClean, TierClean, false},
		{TierLow, TierClean, true},
		{TierMedium, TierLow, true},
		{TierHigh, TierMedium, true},
		{TierLow, TierHigh, false},
		{TierMedium, TierHigh, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier)+"_exceeds_"+string(tt.threshold), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Exceeds(tt.threshold))
		})
	}
}

func TestTier_Order(t *testing.T) {
	for i, tier := range Tiers {
		assert.Equal(t, i, tier.Order())
	}
	assert.Equal(t, -1, Tier("CRITICAL").Order())
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier(" medium ")
	require.NoError(t, err)
	assert.Equal(t, TierMedium, got)

	_, err = ParseTier("critical")
	assert.Error(t, err)
}

func TestTier_JSON(t *testing.T) {
	out, err := json.Marshal(TierHigh)
	require.NoError(t, err)
	assert.Equal(t, `"HIGH"`, string(out))

	var tier Tier
	require.NoError(t, json.Unmarshal([]byte(`"clean"`), &tier))
	assert.Equal(t, TierClean, tier)
	assert.Error(t, json.Unmarshal([]byte(`"severe"`), &tier))
}

func TestTierFor_Boundaries(t *testing.T) {
	th := config.Default().Verdict

	tests := []struct {
		score float64
		want  Tier
	}{
		{1.0, TierHigh},
		{0.65, TierHigh},
		{0.6499, TierMedium},
		{0.45, TierMedium},
		{0.4499, TierLow},
		{0.30, TierLow},
		{0.2999, TierClean},
		{0.0, TierClean},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score, th), "score %v", tt.score)
	}
}

func TestTierFor_Monotone(t *testing.T) {
	th := config.Default().Verdict
	prev := TierFor(0, th)
	for i := 1; i <= 1000; i++ {
		cur := TierFor(float64(i)/1000, th)
		assert.False(t, prev.Exceeds(cur), "tier dropped at %d", i)
		prev = cur
	}
}

func TestCombine(t *testing.T) {
	agg := NewAggregator(config.Default())

	tests := []struct {
		name     string
		p, s, st float64
		raw      float64
		weighted float64
		tier     Tier
		verdict  bool
		conflict bool
	}{
		{"all maximal", 1, 1, 1, 5, 1.0, TierHigh, true, false},
		{"all zero", 0, 0, 0, 120, 0, TierClean, false, false},
		{"perplexity only", 1, 0, 0, 8, 0.6, TierMedium, true, true},
		{"weak signals", 0.3, 0.4, 0.2, 45, 0.31, TierLow, false, false},
		{"conflict needs low structural", 0.9, 0.4, 0.2, 12, 0.67, TierHigh, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s, st := computed(tt.p, tt.s, tt.st)
			as := agg.Combine(p, s, st, tt.raw)

			assert.InDelta(t, tt.weighted, as.WeightedScore, 1e-9)
			assert.Equal(t, tt.tier, as.Tier)
			assert.Equal(t, tt.verdict, as.Verdict)
			assert.Equal(t, tt.conflict, as.Conflict)
			assert.Equal(t, tt.raw, as.RawPerplexity)
		})
	}
}

func TestCombine_DegradedIsNeutral(t *testing.T) {
	agg := NewAggregator(config.Default())
	as := agg.Combine(
		signal.Degrade(signal.KindPerplexity, "oracle_unavailable"),
		signal.Degrade(signal.KindStructural, "syntax_error"),
		signal.Degrade(signal.KindStyle, "empty_code"),
		signal.NeutralPerplexity,
	)

	assert.InDelta(t, 0.5, as.WeightedScore, 1e-9)
	assert.Equal(t, TierMedium, as.Tier)
	assert.True(t, as.Verdict)
	assert.False(t, as.Conflict)
	assert.Equal(t, 0.5, as.StructuralScore)
}

func TestCombine_ConflictDoesNotChangeTier(t *testing.T) {
	agg := NewAggregator(config.Default())

	p, s, st := computed(1, 0.1, 0)
	withConflict := agg.Combine(p, s, st, 5)
	without := agg.Combine(p, s, st, 100)

	assert.True(t, withConflict.Conflict)
	assert.False(t, without.Conflict)
	assert.Equal(t, without.Tier, withConflict.Tier)
	assert.Equal(t, without.WeightedScore, withConflict.WeightedScore)
}

func TestSynthesize_Reasoning(t *testing.T) {
	bounds := config.Default().Perplexity

	tests := []struct {
		name string
		as   Assessment
		want string
	}{
		{
			name: "human",
			as:   Assessment{RawPerplexity: 80, StructuralScore: 0.3, StyleScore: 0.5},
			want: "Likely human-written code",
		},
		{
			name: "very low perplexity",
			as:   Assessment{RawPerplexity: 8},
			want: "Very low perplexity (8.0) indicates AI-like patterns",
		},
		{
			name: "moderate perplexity with structure and style",
			as:   Assessment{RawPerplexity: 50, StructuralScore: 0.75, StyleScore: 0.6},
			want: "Moderate perplexity (50.0) suggests some AI characteristics; " +
				"Structural uniformity suggests AI generation; " +
				"Style patterns consistent with AI-generated code",
		},
		{
			name: "conflict",
			as:   Assessment{RawPerplexity: 12.34, StructuralScore: 0.2, Conflict: true},
			want: "Moderate perplexity (12.3) suggests some AI characteristics; " +
				"Conflict: Low perplexity but human-like structure - manual review recommended",
		},
		{
			name: "ai threshold is exclusive",
			as:   Assessment{RawPerplexity: 10},
			want: "Moderate perplexity (10.0) suggests some AI characteristics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Synthesize(tt.as, bounds)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynthesize_Recommendations(t *testing.T) {
	bounds := config.Default().Perplexity

	tests := []struct {
		name string
		as   Assessment
		want []string
	}{
		{"high", Assessment{Tier: TierHigh, Verdict: true}, []string{RecommendFlagForReview}},
		{"medium", Assessment{Tier: TierMedium, Verdict: true}, []string{RecommendMonitor}},
		{"low", Assessment{Tier: TierLow}, []string{RecommendAccept}},
		{"clean", Assessment{Tier: TierClean}, []string{RecommendAccept}},
		{"high with conflict", Assessment{Tier: TierHigh, Verdict: true, Conflict: true},
			[]string{RecommendFlagForReview, RecommendManualReview}},
		{"clean with conflict", Assessment{Tier: TierClean, Conflict: true},
			[]string{RecommendManualReview}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, recs := Synthesize(tt.as, bounds)
			assert.Equal(t, tt.want, recs)
		})
	}
}

func TestRecommendationCode(t *testing.T) {
	assert.Equal(t, "FLAG_FOR_REVIEW", RecommendationCode(RecommendFlagForReview))
	assert.Equal(t, "MONITOR", RecommendationCode(RecommendMonitor))
	assert.Equal(t, "LOW_PRIORITY", RecommendationCode(RecommendLowPriority))
	assert.Equal(t, "MANUAL_REVIEW", RecommendationCode(RecommendManualReview))
	assert.Equal(t, "ACCEPT", RecommendationCode(RecommendAccept))
	assert.Equal(t, "PLAIN", RecommendationCode("PLAIN"))
}

func TestAggregator_Synthesize(t *testing.T) {
	agg := NewAggregator(config.Default())
	p, s, st := computed(1, 1, 1)
	reasoning, recs := agg.Synthesize(agg.Combine(p, s, st, 3))

	assert.Contains(t, reasoning, "Very low perplexity (3.0)")
	assert.Equal(t, []string{RecommendFlagForReview}, recs)
}
