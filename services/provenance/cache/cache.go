// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores detection results keyed by content hash.
//
// Two backends implement Cache: Memory, a bounded in-process LRU, and
// Badger, a persistent BadgerDB store. Loader sits in front of either and
// collapses concurrent misses on the same key into one computation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/provenance/services/provenance/config"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Cache is a keyed store of values of type V.
//
// Implementations are safe for concurrent use. Values are stored by value;
// callers must not rely on sharing mutable state through them.
type Cache[V any] interface {
	// Get returns the value for key and whether it was present and fresh.
	Get(key string) (V, bool)

	// Put stores v under key, replacing any previous value.
	Put(key string, v V) error

	// Len returns the number of stored entries.
	Len() int

	// Stats returns hit, miss and eviction counters.
	Stats() Stats

	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Key derives the cache key for code scored under a configuration
// fingerprint. Identical code under a different configuration never
// shares an entry.
func Key(code, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg.
//
// Description:
//
//	Returns (nil, nil) when caching is disabled. The "memory" backend holds
//	up to cfg.Size entries. The "badger" backend persists under cfg.Path.
//	A positive cfg.TTL expires entries in both backends.
//
// Inputs:
//
//	cfg - Cache configuration. Assumed validated.
//	logger - Logger for backend events. Nil uses slog.Default().
//
// Outputs:
//
//	Cache[V] - The cache, or nil if disabled.
//	error - Non-nil if the backend cannot be opened.
func New[V any](cfg config.CacheConfig, logger *slog.Logger) (Cache[V], error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemory[V](cfg.Size, cfg.TTL), nil
	case "badger":
		bc := DefaultBadgerConfig()
		bc.Path = cfg.Path
		bc.TTL = cfg.TTL
		bc.Logger = logger
		b, err := OpenBadger[V](bc)
		if err != nil {
			return nil, fmt.Errorf("open result cache: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// now is replaced in tests.
var now = time.Now
