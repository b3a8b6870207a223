// Package cache implements the read-through cache used for every derived
// view in the system: per-key TTL expiry, single-flight refresh, and
// stale-while-revalidate semantics.
//
// The contract, shared by all instances:
//
//   - a fresh value is returned immediately;
//   - a stale value is returned immediately while one background refresh is
//     kicked off for that key;
//   - only a cold read blocks, awaiting the single in-flight refresh;
//   - a cold refresh failure propagates to the awaiting callers, a warm
//     (background) refresh failure is swallowed and the stale value remains
//     servable, and either way the in-flight slot is cleared so the next
//     read can retry.
//
// The clock is injectable so expiry and single-flight behavior are testable
// without sleeping.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time; swap it out in tests.
type Clock func() time.Time

// BuildFunc produces a fresh value for one key.
type BuildFunc[V any] func(ctx context.Context) (V, error)

type flight[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type entry[V any] struct {
	hasValue  bool
	value     V
	expiresAt time.Time
	inFlight  *flight[V]
}

// Cache is a per-key TTL cache with single-flight refresh. The zero value is
// not usable; construct with New.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[string]*entry[V]
}

// New creates a cache whose values expire ttl after each successful refresh.
// A nil clock means time.Now.
func New[V any](ttl time.Duration, clock Clock) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]*entry[V]),
	}
}

// Get returns the cached value for key, refreshing per the package contract.
// build runs on a context detached from ctx's cancellation: a caller that
// stops waiting does not abort the refresh, which still lands for future
// readers.
func (c *Cache[V]) Get(ctx context.Context, key string, build BuildFunc[V]) (V, error) {
	c.mu.Lock()

	e := c.entries[key]
	if e == nil {
		e = &entry[V]{}
		c.entries[key] = e
	}

	now := c.clock()
	if e.hasValue && now.Before(e.expiresAt) {
		value := e.value
		c.mu.Unlock()
		return value, nil
	}

	if e.hasValue {
		// Stale: serve immediately, refresh in the background.
		if e.inFlight == nil {
			c.launch(ctx, e, build)
		}
		value := e.value
		c.mu.Unlock()
		return value, nil
	}

	// Cold: the only case where a caller blocks.
	if e.inFlight == nil {
		c.launch(ctx, e, build)
	}
	f := e.inFlight
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Peek returns the cached value for key if one exists, fresh or stale,
// without triggering any refresh.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil && e.hasValue {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Invalidate drops the entry for key, in-flight refresh included: a refresh
// already running completes into the detached entry and is discarded, so a
// read after Invalidate always rebuilds. This is what gives mutating
// operations their read-your-own-write guarantee.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// launch starts the single in-flight refresh for e. Caller must hold c.mu.
func (c *Cache[V]) launch(ctx context.Context, e *entry[V], build BuildFunc[V]) {
	f := &flight[V]{done: make(chan struct{})}
	e.inFlight = f

	buildCtx := context.WithoutCancel(ctx)
	go func() {
		value, err := build(buildCtx)

		c.mu.Lock()
		if err == nil {
			e.value = value
			e.hasValue = true
			e.expiresAt = c.clock().Add(c.ttl)
		}
		if e.inFlight == f {
			e.inFlight = nil
		}
		c.mu.Unlock()

		f.value = value
		f.err = err
		close(f.done)
	}()
}
