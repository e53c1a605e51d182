// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detector runs the provenance pipeline for one submission.
//
// # Pipeline
//
//	code ─► validate ─► truncate ─┬─► normalize (light) ─► statistical ─┐
//	                              ├─► structural ─────────────────────┤
//	                              └─► style ──────────────────────────┤
//	                                                                  ▼
//	                                        aggregate ─► synthesize ─► Result
//
// Structural and style extractors see the truncated raw code; only the
// statistical extractor sees the normalized text. The three extractors run
// one after another, or concurrently when config.Parallel is set. The
// result is identical either way.
//
// # Errors
//
// Empty, whitespace-only or non-textual input fails with a
// *ValidationError. Signal failures never fail a detection: they degrade to
// the neutral score and are listed in Result.Degradations. Anything else
// fails with a *DetectionError wrapping the cause.
//
// # Caching
//
// With caching enabled, results are keyed by a hash of the truncated code
// and a fingerprint of the configuration. Concurrent detections of the same
// code compute once.
//
// # Thread Safety
//
// Detector is safe for concurrent use. Running metrics are updated
// atomically under a single lock.
package detector
