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
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/provenance/services/provenance/risk"
	"github.com/AleutianAI/provenance/services/provenance/signal"
)

var (
	tracer = otel.Tracer("provenance.detector")
	meter  = otel.Meter("provenance.detector")
)

// =============================================================================
// Running metrics
// =============================================================================

// runningMetrics are the per-Detector counters behind Metrics().
//
// Thread Safety: count and total are updated together under mu.
type runningMetrics struct {
	mu      sync.Mutex
	count   int64
	totalMs int64
}

func (m *runningMetrics) record(ms int64) {
	m.mu.Lock()
	m.count++
	m.totalMs += ms
	m.mu.Unlock()
}

func (m *runningMetrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{TotalDetections: m.count, TotalProcessingTimeMs: m.totalMs}
	if m.count > 0 {
		s.AvgProcessingTimeMs = signal.Round(float64(m.totalMs)/float64(m.count), 2)
	}
	return s
}

func (m *runningMetrics) reset() {
	m.mu.Lock()
	m.count = 0
	m.totalMs = 0
	m.mu.Unlock()
}

// =============================================================================
// OpenTelemetry instruments
// =============================================================================

var (
	detectionsTotal   metric.Int64Counter
	errorsTotal       metric.Int64Counter
	degradedTotal     metric.Int64Counter
	detectionDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		detectionsTotal, err = meter.Int64Counter(
			"provenance_detections_total",
			metric.WithDescription("Completed detections by tier and verdict"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsTotal, err = meter.Int64Counter(
			"provenance_detection_errors_total",
			metric.WithDescription("Failed detections by error kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		degradedTotal, err = meter.Int64Counter(
			"provenance_signal_degraded_total",
			metric.WithDescription("Signals that fell back to the neutral score"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectionDuration, err = meter.Float64Histogram(
			"provenance_detection_duration_seconds",
			metric.WithDescription("End-to-end detection latency"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordDetection(ctx context.Context, tier risk.Tier, verdict, cached bool, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	detectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", string(tier)),
		attribute.String("verdict", strconv.FormatBool(verdict)),
	))
	detectionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Bool("cached", cached),
	))
}

func recordError(ctx context.Context, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// recordDegraded labels by the reason marker only; free-text detail after
// a colon is dropped to bound cardinality.
func recordDegraded(ctx context.Context, kind signal.Kind, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	reason, _, _ = strings.Cut(reason, ":")
	degradedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("signal", string(kind)),
		attribute.String("reason", reason),
	))
}
