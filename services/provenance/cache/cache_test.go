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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/provenance/services/provenance/config"
)

type entry struct {
	Tier  string  `json:"tier"`
	Score float64 `json:"score"`
}

func withClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	now = func() time.Time { return current }
	t.Cleanup(func() { now = time.Now })
	return &current
}

func TestKey(t *testing.T) {
	a := Key("print(1)", "cfg-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("print(1)", "cfg-a"))
	assert.NotEqual(t, a, Key("print(1)", "cfg-b"))
	assert.NotEqual(t, a, Key("print(2)", "cfg-a"))
	// the separator keeps fingerprint and code from running together
	assert.NotEqual(t, Key("bc", "a"), Key("c", "ab"))
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.Equal(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate())
}

func TestMemory_GetPut(t *testing.T) {
	c := NewMemory[entry](10, 0)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Put("a", entry{Tier: "HIGH", Score: 0.9}))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, entry{Tier: "HIGH", Score: 0.9}, got)

	require.NoError(t, c.Put("a", entry{Tier: "LOW"}))
	got, _ = c.Get("a")
	assert.Equal(t, "LOW", got.Tier)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 10, stats.Capacity)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory[int](2, 0)
	require.NoError(t, c.Put("a", 1))
	require.NoError(t, c.Put("b", 2))

	// touch a so b becomes the oldest
	_, _ = c.Get("a")
	require.NoError(t, c.Put("c", 3))

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemory_TTL(t *testing.T) {
	clock := withClock(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewMemory[int](10, time.Minute)

	require.NoError(t, c.Put("k", 7))
	*clock = clock.Add(30 * time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	*clock = clock.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemory_DeletePurge(t *testing.T) {
	c := NewMemory[int](0, 0)
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)

	require.NoError(t, c.Put("a", 1))
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	require.NoError(t, c.Put("b", 2))
	_, _ = c.Get("b")
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Stats{Capacity: DefaultCapacity}, c.Stats())
	assert.NoError(t, c.Close())
}

func TestMemory_Concurrent(t *testing.T) {
	c := NewMemory[int](64, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (i*j)%100)
				_ = c.Put(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}

func TestBadger_InMemory(t *testing.T) {
	c, err := OpenBadger[entry](InMemoryBadgerConfig())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Put("a", entry{Tier: "MEDIUM", Score: 0.5}))
	require.NoError(t, c.Put("b", entry{Tier: "CLEAN"}))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, entry{Tier: "MEDIUM", Score: 0.5}, got)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Delete("b"))
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestBadger_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	c, err := OpenBadger[entry](cfg)
	require.NoError(t, err)
	require.NoError(t, c.Put("k", entry{Tier: "HIGH"}))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	reopened, err := OpenBadger[entry](cfg)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("k")
	require.True(t, ok)
	assert.Equal(t, "HIGH", got.Tier)
}

func TestBadger_Closed(t *testing.T) {
	c, err := OpenBadger[int](InMemoryBadgerConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Put("k", 1), ErrClosed)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger[int](BadgerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestNew(t *testing.T) {
	c, err := New[int](config.CacheConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New[int](config.CacheConfig{Enabled: true, Size: 3, Backend: "memory"}, nil)
	require.NoError(t, err)
	require.IsType(t, &Memory[int]{}, c)
	assert.Equal(t, 3, c.Stats().Capacity)

	c, err = New[int](config.CacheConfig{Enabled: true, Backend: "badger", Path: t.TempDir()}, nil)
	require.NoError(t, err)
	require.IsType(t, &Badger[int]{}, c)
	require.NoError(t, c.Close())

	_, err = New[int](config.CacheConfig{Enabled: true, Backend: "redis"}, nil)
	assert.Error(t, err)
}

func TestLoader_ComputesOnceAndCaches(t *testing.T) {
	l := NewLoader[int](NewMemory[int](10, 0))
	var calls atomic.Int32
	compute := func() (int, error) {
		calls.Add(1)
		return 42, nil
	}

	v, cached, err := l.Load("k", compute, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, cached)

	v, cached, err = l.Load("k", compute, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_CollapsesConcurrentMisses(t *testing.T) {
	l := NewLoader[int](NewMemory[int](10, 0))
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := l.Load("same", compute, nil)
			assert.NoError(t, err)
			assert.Equal(t, 1, v)
		}()
	}
	// let the goroutines pile up on the flight before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	c := NewMemory[int](10, 0)
	l := NewLoader[int](c)
	boom := errors.New("boom")

	_, _, err := l.Load("k", func() (int, error) { return 0, boom }, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestLoader_SkipsUncacheableValues(t *testing.T) {
	c := NewMemory[int](10, 0)
	l := NewLoader[int](c, WithCacheable(func(v int) bool { return v >= 0 }))

	calls := 0
	compute := func() (int, error) {
		calls++
		if calls == 1 {
			return -1, nil
		}
		return 7, nil
	}

	v, cached, err := l.Load("k", compute, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	assert.False(t, cached)
	assert.Equal(t, 0, c.Len())

	v, cached, err = l.Load("k", compute, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, cached)

	v, cached, err = l.Load("k", compute, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, cached)
	assert.Equal(t, 2, calls)
}

func TestLoader_NilCache(t *testing.T) {
	l := NewLoader[int](nil)
	assert.Nil(t, l.Cache())

	calls := 0
	for i := 0; i < 2; i++ {
		v, cached, err := l.Load("k", func() (int, error) { calls++; return 5, nil }, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
		assert.False(t, cached)
	}
	assert.Equal(t, 2, calls)
}

func TestLoader_PutError(t *testing.T) {
	c, err := OpenBadger[int](InMemoryBadgerConfig())
	require.NoError(t, err)
	l := NewLoader[int](c)
	require.NoError(t, c.Close())

	var putErr error
	v, _, err := l.Load("k", func() (int, error) { return 9, nil }, func(e error) { putErr = e })
	require.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.ErrorIs(t, putErr, ErrClosed)
}
