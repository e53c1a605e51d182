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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/provenance/services/provenance/config"
	"github.com/AleutianAI/provenance/services/provenance/detector"
	"github.com/AleutianAI/provenance/services/provenance/oracle"
	"github.com/AleutianAI/provenance/services/provenance/risk"
	"github.com/AleutianAI/provenance/services/provenance/tokenize"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const simplePython = `def add(a, b):
    return a + b
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedOracle(ppl float64) oracle.Oracle {
	return oracle.Func(func(_ context.Context, _ oracle.Input) (float64, error) {
		return math.Log(ppl), nil
	})
}

func newDetector(t *testing.T, orc oracle.Oracle, opts ...config.Option) *detector.Detector {
	t.Helper()
	cfg, err := config.New(append([]config.Option{config.WithoutCache()}, opts...)...)
	require.NoError(t, err)

	d, err := detector.New(cfg,
		detector.WithLogger(discardLogger()),
		detector.WithOracle(orc),
		detector.WithTokenizer(tokenize.Bytes{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newServer(t *testing.T, d *detector.Detector, mutate func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(d, cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_NilDetector(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDetector)
}

func TestNew_SharedRegistry(t *testing.T) {
	d := newDetector(t, fixedOracle(8))
	reg := prometheus.NewRegistry()

	_, err := New(d, DefaultConfig(), WithRegistry(reg), WithLogger(discardLogger()))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "provenance_http_rate_limited_total")

	// a second server on the same registry collides
	_, err = New(d, DefaultConfig(), WithRegistry(reg), WithLogger(discardLogger()))
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8), config.WithLanguage("go")), nil)

	w := do(t, s, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	h := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, ServiceVersion, h.Version)
	assert.Equal(t, risk.AlgorithmVersion, h.AlgorithmVersion)
	assert.Equal(t, "go", h.Language)
	assert.False(t, h.CacheEnabled)
}

// =============================================================================
// Detect
// =============================================================================

func TestDetect_OK(t *testing.T) {
	d := newDetector(t, fixedOracle(5))
	s := newServer(t, d, nil)

	w := do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[detector.Result](t, w)
	want, err := d.Detect(context.Background(), simplePython)
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, want.RiskLevel, got.RiskLevel)
	assert.Equal(t, want.IsAIGenerated, got.IsAIGenerated)
	assert.Equal(t, want.WeightedScore, got.WeightedScore)
	assert.Equal(t, want.Reasoning, got.Reasoning)
	assert.Equal(t, want.Recommendations, got.Recommendations)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestDetect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", "{not json", http.StatusBadRequest, CodeInvalidRequest},
		{"wrong type", map[string]any{"code": 5}, http.StatusBadRequest, CodeInvalidRequest},
		{"missing code", map[string]any{}, http.StatusBadRequest, CodeValidation},
		{"null code", map[string]any{"code": nil}, http.StatusBadRequest, CodeValidation},
		{"empty code", DetectRequest{Code: ""}, http.StatusBadRequest, CodeValidation},
		{"whitespace only", DetectRequest{Code: "  \n\t "}, http.StatusBadRequest, CodeValidation},
		{"nul byte", DetectRequest{Code: "x = 1\x00"}, http.StatusBadRequest, CodeValidation},
	}

	s := newServer(t, newDetector(t, fixedOracle(8)), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/detect", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			e := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.RequestID)
		})
	}
}

func TestDetect_OracleFailureDegrades(t *testing.T) {
	failing := oracle.Func(func(context.Context, oracle.Input) (float64, error) {
		return 0, errors.New("model offline")
	})
	s := newServer(t, newDetector(t, failing), nil)

	w := do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython})
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[detector.Result](t, w)
	assert.Equal(t, 0.5, got.PerplexityScore)
	require.NotEmpty(t, got.Degradations)
	assert.Equal(t, "perplexity", got.Degradations[0].Signal)
}

func TestDetect_BodyTooLarge(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), func(c *Config) { c.MaxBodyBytes = 64 })

	w := do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: strings.Repeat("x = 1\n", 50)})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, CodeTooLarge, decode[ErrorResponse](t, w).Code)
}

func TestDetect_RequestIDPropagates(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(`{"code":"   "}`))
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.Equal(t, "req-123", decode[ErrorResponse](t, w).RequestID)
}

// =============================================================================
// Batch
// =============================================================================

func TestBatch(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	w := do(t, s, http.MethodPost, "/v1/detect/batch", BatchRequest{
		Codes: []string{simplePython, "   ", "x = 1\n"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[BatchResponse](t, w)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.NotNil(t, resp.Results[0])
	assert.Nil(t, resp.Results[1])
	assert.NotNil(t, resp.Results[2])
	assert.NotEqual(t, resp.Results[0].ID, resp.Results[2].ID)
}

func TestBatch_SizeLimits(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	tests := []struct {
		name  string
		codes []string
	}{
		{"empty", []string{}},
		{"missing", nil},
		{"too many", make([]string, MaxBatchSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/detect/batch", BatchRequest{Codes: tt.codes})
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
		})
	}
}

// =============================================================================
// Rate Limiting
// =============================================================================

func TestRateLimit(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), func(c *Config) {
		c.RateLimit = 0.001
		c.Burst = 1
	})

	first := do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython})
	require.Equal(t, http.StatusOK, first.Code)

	second := do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython})
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, second).Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.limited))

	// health is not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/health", nil).Code)
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetrics_ReportAndReset(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython}).Code)

	m := decode[MetricsResponse](t, do(t, s, http.MethodGet, "/v1/metrics", nil))
	assert.EqualValues(t, 1, m.TotalDetections)
	assert.Nil(t, m.Cache)

	w := do(t, s, http.MethodDelete, "/v1/metrics", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	m = decode[MetricsResponse](t, do(t, s, http.MethodGet, "/v1/metrics", nil))
	assert.EqualValues(t, 0, m.TotalDetections)
	assert.Equal(t, 0.0, m.AvgProcessingTimeMs)
}

func TestMetrics_CacheStats(t *testing.T) {
	d := newDetector(t, fixedOracle(8), config.WithCache(config.CacheConfig{
		Enabled: true,
		Size:    10,
		Backend: "memory",
		TTL:     time.Hour,
	}))
	s := newServer(t, d, nil)

	for range 2 {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/detect", DetectRequest{Code: simplePython}).Code)
	}

	m := decode[MetricsResponse](t, do(t, s, http.MethodGet, "/v1/metrics", nil))
	require.NotNil(t, m.Cache)
	assert.Equal(t, 1, m.Cache.Size)
	assert.Equal(t, 10, m.Cache.Capacity)
	assert.GreaterOrEqual(t, m.Cache.Hits, int64(1))
	assert.Greater(t, m.Cache.HitRate, 0.0)

	h := decode[HealthResponse](t, do(t, s, http.MethodGet, "/v1/health", nil))
	assert.True(t, h.CacheEnabled)
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	do(t, s, http.MethodGet, "/v1/health", nil)
	do(t, s, http.MethodGet, "/nope", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("/v1/health", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("unmatched", "GET", "404")))

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "provenance_http_requests_total")
	assert.Contains(t, w.Body.String(), "provenance_http_request_duration_seconds")
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestServe_GracefulShutdown(t *testing.T) {
	s := newServer(t, newDetector(t, fixedOracle(8)), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
