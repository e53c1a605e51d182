// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces result entries inside the database.
var keyPrefix = []byte("result/")

// BadgerConfig holds configuration for a Badger cache.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// TTL expires entries. Zero keeps them until overwritten.
	TTL time.Duration

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// Logger receives BadgerDB and GC messages. Nil silences BadgerDB.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns defaults for a persistent cache.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		SyncWrites:     false,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a persistent Cache backed by BadgerDB.
//
// Values are stored as JSON. Expiry uses BadgerDB's native entry TTL, so
// expired entries disappear without a sweep.
//
// Thread Safety: All methods are safe for concurrent use.
type Badger[V any] struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// OpenBadger opens a Badger cache.
//
// Description:
//
//	Opens the database at cfg.Path, creating the directory if needed, or in
//	memory when cfg.InMemory is set. Starts a value log GC loop when
//	cfg.GCInterval is positive and the database is on disk.
//
// Inputs:
//
//	cfg - Cache configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*Badger[V] - The cache. Call Close when done.
//	error - Non-nil if the path is missing or the database cannot open.
func OpenBadger[V any](cfg BadgerConfig) (*Badger[V], error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &Badger[V]{db: db, ttl: cfg.TTL, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		b.stopGC = make(chan struct{})
		b.gcDone = make(chan struct{})
		go b.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return b, nil
}

func storageKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}

// Get returns the decoded value for key.
//
// A value that fails to decode is reported as a miss and logged.
func (b *Badger[V]) Get(key string) (V, bool) {
	var zero V
	if b.closed.Load() {
		b.misses.Add(1)
		return zero, false
	}

	var out V
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Warn("result cache read failed", slog.String("error", err.Error()))
		}
		b.misses.Add(1)
		return zero, false
	}

	b.hits.Add(1)
	return out, true
}

// Put encodes v and stores it under key with the configured TTL.
func (b *Badger[V]) Put(key string, v V) error {
	if b.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	entry := badger.NewEntry(storageKey(key), data)
	if b.ttl > 0 {
		entry = entry.WithTTL(b.ttl)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (b *Badger[V]) Delete(key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storageKey(key))
	})
}

// Len counts live entries by iterating keys.
func (b *Badger[V]) Len() int {
	if b.closed.Load() {
		return 0
	}

	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Stats returns a snapshot of the counters. Capacity is 0 (unbounded).
func (b *Badger[V]) Stats() Stats {
	return Stats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
		Size:   b.Len(),
	}
}

// Close stops GC and closes the database. Safe to call more than once.
func (b *Badger[V]) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		if b.stopGC != nil {
			close(b.stopGC)
			<-b.gcDone
		}
		err = b.db.Close()
	})
	return err
}

func (b *Badger[V]) runGC(interval time.Duration, ratio float64) {
	defer close(b.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing needed collecting.
			if err := b.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
