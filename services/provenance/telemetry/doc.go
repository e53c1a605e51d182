// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry for the provenance service.
//
// OpenTelemetry is the abstraction layer: packages call otel.Tracer and
// otel.Meter directly, and the backend is chosen here by configuration.
//
// # Traces (default: none)
//
// "otlp" exports over gRPC to an OTLP receiver such as Jaeger. "stdout"
// pretty-prints spans, which is useful when debugging a single detection.
//
// # Metrics (default: prometheus)
//
// The Prometheus exporter registers with the default registry and
// the server gathers it at /metrics. "stdout" prints periodically.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - PROVENANCE_ENV: environment name (default: development)
//
// # Thread Safety
//
// Call Init once at startup. Everything else is safe for concurrent use.
package telemetry
