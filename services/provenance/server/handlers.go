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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/provenance/services/provenance/detector"
	"github.com/AleutianAI/provenance/services/provenance/risk"
	"github.com/AleutianAI/provenance/services/provenance/telemetry"
)

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), s.logger).
		With("request_id", getRequestID(c), "handler", handler)
}

// handleDetect handles POST /v1/detect.
//
// Response:
//
//	200 OK: detector.Result
//	400 Bad Request: malformed body or unusable code
//	413 Request Entity Too Large: body over MaxBodyBytes
//	429 Too Many Requests: rate limited
//	500 Internal Server Error: detection failure
func (s *Server) handleDetect(c *gin.Context) {
	logger := s.requestLogger(c, "handleDetect")

	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		writeBindError(c, err)
		return
	}

	res, err := s.detector.Detect(c.Request.Context(), req.Code)
	if err != nil {
		s.writeDetectError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleBatch handles POST /v1/detect/batch.
//
// Failed entries are null in the results and counted in Failed; the
// request as a whole still succeeds.
func (s *Server) handleBatch(c *gin.Context) {
	logger := s.requestLogger(c, "handleBatch")

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		writeBindError(c, err)
		return
	}

	results := s.detector.DetectBatch(c.Request.Context(), req.Codes)
	failed := 0
	for _, r := range results {
		if r == nil {
			failed++
		}
	}
	logger.Info("Batch detection complete", "count", len(results), "failed", failed)

	c.JSON(http.StatusOK, BatchResponse{
		Results:   results,
		Count:     len(results),
		Failed:    failed,
		RequestID: getRequestID(c),
	})
}

// handleMetrics handles GET /v1/metrics.
func (s *Server) handleMetrics(c *gin.Context) {
	resp := MetricsResponse{MetricsSnapshot: s.detector.Metrics()}
	if st, ok := s.detector.CacheStats(); ok {
		resp.Cache = &CacheStatus{Stats: st, HitRate: st.HitRate()}
	}
	c.JSON(http.StatusOK, resp)
}

// handleResetMetrics handles DELETE /v1/metrics.
func (s *Server) handleResetMetrics(c *gin.Context) {
	s.detector.ResetMetrics()
	s.requestLogger(c, "handleResetMetrics").Info("Detection metrics reset")
	c.Status(http.StatusNoContent)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(c *gin.Context) {
	cfg := s.detector.Config()
	_, cacheOn := s.detector.CacheStats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Version:          ServiceVersion,
		AlgorithmVersion: risk.AlgorithmVersion,
		Language:         cfg.Language,
		CacheEnabled:     cacheOn,
		Oracle:           cfg.Oracle.Backend,
	})
}

func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:     "Request body too large",
			Code:      CodeTooLarge,
			RequestID: getRequestID(c),
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "Invalid request body",
		Code:      CodeInvalidRequest,
		RequestID: getRequestID(c),
	})
}

func (s *Server) writeDetectError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := CodeDetection
	if errors.Is(err, detector.ErrValidation) {
		status = http.StatusBadRequest
		code = CodeValidation
	}
	c.JSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: getRequestID(c),
	})
}
