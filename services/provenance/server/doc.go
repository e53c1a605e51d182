// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the detector over HTTP.
//
// # Routes
//
//	POST   /v1/detect        score one submission
//	POST   /v1/detect/batch  score up to MaxBatchSize submissions in order
//	GET    /v1/metrics       running detection counters and cache stats
//	DELETE /v1/metrics       reset the running counters
//	GET    /v1/health        liveness and configuration summary
//	GET    /metrics          Prometheus exposition
//
// The detect routes sit behind a token-bucket rate limiter and answer 429
// when it is exhausted. Detection validation failures map to 400, all other
// detection failures to 500. Every error body is an ErrorResponse.
//
// # Thread Safety
//
// A Server is safe for concurrent use once constructed.
package server
