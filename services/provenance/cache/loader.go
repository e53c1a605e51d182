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
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Loader fronts a Cache and collapses concurrent misses for the same key
// into a single call of the compute function.
//
// Thread Safety: Safe for concurrent use.
type Loader[V any] struct {
	cache     Cache[V]
	group     singleflight.Group
	cacheable func(V) bool
}

// LoaderOption configures a Loader.
type LoaderOption[V any] func(*Loader[V])

// WithCacheable installs a predicate consulted before every Put. Values
// it rejects are returned to the caller but never stored, so the next
// Load for the same key computes again.
func WithCacheable[V any](fn func(V) bool) LoaderOption[V] {
	return func(l *Loader[V]) {
		l.cacheable = fn
	}
}

// NewLoader wraps c. A nil c disables caching; every call computes.
func NewLoader[V any](c Cache[V], opts ...LoaderOption[V]) *Loader[V] {
	l := &Loader[V]{cache: c}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type flight[V any] struct {
	value  V
	cached bool
}

// Cache returns the wrapped cache, which may be nil.
func (l *Loader[V]) Cache() Cache[V] { return l.cache }

// Load returns the cached value for key or computes, stores and returns it.
//
// Description:
//
//	On a miss, callers racing on the same key share one compute call.
//	The cache is checked again inside the flight. Errors are never cached,
//	nor are values the WithCacheable predicate rejects.
//	A failed Put is returned through onPutError when non-nil and does not
//	fail the load.
//
// Outputs:
//
//	V - The value.
//	bool - True when the value came from the cache.
//	error - The compute error, if any.
func (l *Loader[V]) Load(key string, compute func() (V, error), onPutError func(error)) (V, bool, error) {
	if l.cache == nil {
		v, err := compute()
		return v, false, err
	}

	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return flight[V]{value: v, cached: true}, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		if l.cacheable != nil && !l.cacheable(v) {
			return flight[V]{value: v}, nil
		}
		if perr := l.cache.Put(key, v); perr != nil && onPutError != nil {
			onPutError(perr)
		}
		return flight[V]{value: v}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	f, ok := res.(flight[V])
	if !ok {
		var zero V
		return zero, false, fmt.Errorf("unexpected type from singleflight group: got %T", res)
	}
	return f.value, f.cached, nil
}
