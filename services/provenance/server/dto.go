// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/AleutianAI/provenance/services/provenance/cache"
	"github.com/AleutianAI/provenance/services/provenance/detector"
)

// MaxBatchSize bounds the number of submissions in one batch request.
const MaxBatchSize = 100

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeTooLarge       = "REQUEST_TOO_LARGE"
	CodeValidation     = "AI_DETECTION_VALIDATION_ERROR"
	CodeDetection      = "AI_DETECTION_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
)

// DetectRequest is the body of POST /v1/detect. Code is checked by the
// detector so that empty and whitespace-only input report the same
// validation error.
type DetectRequest struct {
	Code string `json:"code"`
}

// BatchRequest is the body of POST /v1/detect/batch.
type BatchRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,max=100"`
}

// BatchResponse carries one entry per submitted code, in order. Entries
// that failed are null.
type BatchResponse struct {
	Results   []*detector.Result `json:"results"`
	Count     int                `json:"count"`
	Failed    int                `json:"failed"`
	RequestID string             `json:"request_id"`
}

// MetricsResponse is the body of GET /v1/metrics.
type MetricsResponse struct {
	detector.MetricsSnapshot
	Cache *CacheStatus `json:"cache,omitempty"`
}

// CacheStatus reports result-cache activity.
type CacheStatus struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	AlgorithmVersion string `json:"algorithm_version"`
	Language         string `json:"language"`
	CacheEnabled     bool   `json:"cache_enabled"`
	Oracle           string `json:"oracle"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
