// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk combines the three provenance signals into a risk tier and
// explains the result.
//
// # Architecture
//
//	┌──────────────┬──────────────┬──────────────┐
//	│  Perplexity  │  Structural  │    Style     │
//	│   (w 0.60)   │   (w 0.25)   │   (w 0.15)   │
//	└──────────────┴──────────────┴──────────────┘
//	       │              │              │
//	       └──────────────┼──────────────┘
//	                      ▼
//	               ┌────────────┐
//	               │ Aggregator │──► Assessment (score, tier, verdict, conflict)
//	               └────────────┘
//	                      │
//	                      ▼
//	                 Synthesize ──► reasoning + recommendations
//
// Degraded signals enter the weighted sum at the neutral score 0.5.
//
// # Tiers
//
// Tiers are assigned by inclusive lower bounds, checked from the top:
// HIGH and MEDIUM carry an AI verdict, LOW and CLEAN do not.
//
// # Conflict
//
// A very low raw perplexity paired with a human-like structural score is
// reported as a conflict. It adds a manual review recommendation but never
// changes the tier.
//
// # Thread Safety
//
// All exported types in this package are immutable after construction and
// safe for concurrent use.
//
// # Algorithm Versioning
//
// Increment AlgorithmVersion when a change affects scores or tiers.
package risk
