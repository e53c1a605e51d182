// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package structural

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("provenance.structural")
	meter  = otel.Meter("provenance.structural")
)

type outcome string

const (
	outcomeOK     outcome = "ok"
	outcomeSyntax outcome = "syntax_error"
	outcomeFailed outcome = "failed"
)

var (
	parseLatency metric.Float64Histogram
	parseTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"provenance_structural_parse_duration_seconds",
			metric.WithDescription("Duration of syntax-tree parsing and measurement"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"provenance_structural_parse_total",
			metric.WithDescription("Total parse operations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordParse(ctx context.Context, language string, d time.Duration, o outcome) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("outcome", string(o)),
	)
	parseLatency.Record(ctx, d.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
}

func startScoreSpan(ctx context.Context, language string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Structural.Score",
		trace.WithAttributes(
			attribute.String("structural.language", language),
			attribute.Int("structural.content_size", size),
		),
	)
}

func setScoreSpanResult(span trace.Span, f Features, score float64) {
	span.SetAttributes(
		attribute.Int("structural.max_depth", f.MaxDepth),
		attribute.Int("structural.complexity", f.Complexity),
		attribute.Int("structural.node_diversity", f.NodeDiversity),
		attribute.Float64("structural.score", score),
	)
}
