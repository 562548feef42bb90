// Package cache provides the two-tier result cache used by the food data
// service: a fast in-process LRU with TTL per namespace, backed by an optional
// shared store reachable by other processes.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// SharedStore is the collaborator interface for the shared (L2) tier. Any
// key-value store with string values and expiry fits; a failing store must be
// tolerated, never required.
type SharedStore interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config holds configuration for a single cache tier namespace.
type Config struct {
	// Name identifies the namespace in logs, stats, and shared-store keys.
	Name string

	// Capacity is the maximum number of L1 entries before LRU eviction.
	Capacity int

	// TTL expires entries regardless of recency, in both tiers.
	TTL time.Duration

	// Shared is the optional L2 store. Nil disables the shared tier.
	Shared SharedStore

	// Logger for swallowed shared-store errors and backfills.
	Logger zerolog.Logger
}

// Stats holds the hit/miss counters and current size of one namespace.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// Tier is one cache namespace. Values are cached wholesale and treated as
// immutable once stored; an empty slice is a valid cached value, distinct from
// absent.
type Tier[T any] struct {
	name   string
	ttl    time.Duration
	local  *expirable.LRU[string, T]
	shared SharedStore
	logger zerolog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewTier creates a cache namespace with the given capacity and TTL.
func NewTier[T any](cfg Config) *Tier[T] {
	return &Tier[T]{
		name:   cfg.Name,
		ttl:    cfg.TTL,
		local:  expirable.NewLRU[string, T](cfg.Capacity, nil, cfg.TTL),
		shared: cfg.Shared,
		logger: cfg.Logger,
	}
}

// Get looks up key in the fast tier first, then the shared tier. A shared hit
// is deserialized and backfilled into the fast tier. The second return is
// false only when neither tier holds the key.
func (t *Tier[T]) Get(ctx context.Context, key string) (T, bool) {
	if v, ok := t.local.Get(key); ok {
		t.hits.Add(1)
		return v, true
	}

	if t.shared != nil {
		raw, ok, err := t.shared.Get(ctx, t.sharedKey(key))
		if err != nil {
			t.logger.Warn().Err(err).Str("namespace", t.name).Str("key", key).
				Msg("shared cache read failed")
		} else if ok {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				t.logger.Warn().Err(err).Str("namespace", t.name).Str("key", key).
					Msg("shared cache entry undecodable")
			} else {
				t.local.Add(key, v)
				t.hits.Add(1)
				return v, true
			}
		}
	}

	var zero T
	t.misses.Add(1)
	return zero, false
}

// Set writes value to the fast tier and, best-effort, to the shared tier.
func (t *Tier[T]) Set(ctx context.Context, key string, value T) {
	t.local.Add(key, value)
	t.setShared(ctx, key, value)
}

// setShared writes to the shared tier, swallowing failures. Caching is a
// performance optimization, never a correctness dependency: a shared-store
// write failure must not fail the caller's request.
func (t *Tier[T]) setShared(ctx context.Context, key string, value T) {
	if t.shared == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		t.logger.Warn().Err(err).Str("namespace", t.name).Str("key", key).
			Msg("shared cache encode failed")
		return
	}
	if err := t.shared.Set(ctx, t.sharedKey(key), string(raw), t.ttl); err != nil {
		t.logger.Warn().Err(err).Str("namespace", t.name).Str("key", key).
			Msg("shared cache write failed")
	}
}

// Clear drops every entry in the fast tier and resets the counters. Shared
// entries are left to expire by TTL.
func (t *Tier[T]) Clear() {
	t.local.Purge()
	t.hits.Store(0)
	t.misses.Store(0)
}

// Stats returns the namespace counters and current fast-tier size.
func (t *Tier[T]) Stats() Stats {
	return Stats{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
		Size:   t.local.Len(),
	}
}

func (t *Tier[T]) sharedKey(key string) string {
	return t.name + ":" + key
}
