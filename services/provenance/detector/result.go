// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detector

import (
	"maps"
	"slices"
	"time"

	"github.com/AleutianAI/provenance/services/provenance/risk"
	"github.com/AleutianAI/provenance/services/provenance/structural"
	"github.com/AleutianAI/provenance/services/provenance/style"
)

// Degradation records a signal that fell back to its neutral value.
type Degradation struct {
	Signal string `json:"signal"`
	Reason string `json:"reason"`
}

// Result is the outcome of one detection.
//
// A Result is owned by the caller and never modified by the Detector after
// it is returned. Results served from the cache are deep copies.
type Result struct {
	ID            string    `json:"id"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	Confidence    float64   `json:"confidence"`
	RiskLevel     risk.Tier `json:"risk_level"`

	// Per-signal scores, rounded to 3 places. Degraded signals read 0.5.
	PerplexityScore float64 `json:"perplexity_score"`
	StructuralScore float64 `json:"structural_score"`
	StyleScore      float64 `json:"style_score"`
	WeightedScore   float64 `json:"weighted_score"`

	// Perplexity is the raw perplexity, rounded to 2 places.
	Perplexity float64 `json:"perplexity"`

	StructuralFeatures structural.Features `json:"structural_features"`
	StyleFeatures      style.Features      `json:"style_features"`

	ConflictDetected bool `json:"conflict_detected"`

	// CodeLength is the submitted length in characters, before truncation.
	CodeLength int `json:"code_length"`
	// NormalizedLength is the length of the text given to the oracle.
	NormalizedLength int `json:"normalized_length"`

	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Reasoning        string   `json:"reasoning"`
	Recommendations  []string `json:"recommendations"`

	Degradations []Degradation `json:"degradations,omitempty"`
	Cached       bool          `json:"cached"`
	Language     string        `json:"language"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Recommendations = slices.Clone(r.Recommendations)
	out.Degradations = slices.Clone(r.Degradations)
	out.StructuralFeatures.Extra = maps.Clone(r.StructuralFeatures.Extra)
	out.StyleFeatures.Extra = maps.Clone(r.StyleFeatures.Extra)
	return &out
}

// RecommendationCodes returns the machine-readable code of every
// recommendation, in order.
func (r *Result) RecommendationCodes() []string {
	codes := make([]string, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		codes[i] = risk.RecommendationCode(rec)
	}
	return codes
}

// MetricsSnapshot is a point-in-time copy of the running counters.
type MetricsSnapshot struct {
	TotalDetections       int64   `json:"total_detections"`
	TotalProcessingTimeMs int64   `json:"total_processing_time_ms"`
	AvgProcessingTimeMs   float64 `json:"avg_processing_time_ms"`
}
