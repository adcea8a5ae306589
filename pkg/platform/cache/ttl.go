// Package cache is a bounded LRU with per-entry expiry and partition-wide
// invalidation, used for read-mostly policy data keyed by tenant.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL caches values under "partition:key". Invalidating a partition bumps its
// generation so loads that started earlier cannot write stale values back.
type TTL[V any] struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	gens map[string]uint64
}

// NewTTL creates a cache holding at most size entries for ttl each. A
// non-positive ttl disables caching.
func NewTTL[V any](size int, ttl time.Duration, now func() time.Time) (*TTL[V], error) {
	if now == nil {
		now = time.Now
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &TTL[V]{lru: l, ttl: ttl, now: now, gens: make(map[string]uint64)}, nil
}

// Get returns a live entry.
func (c *TTL[V]) Get(partition, key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}
	k := fullKey(partition, key)
	v, ok := c.lru.Get(k)
	if !ok {
		return zero, false
	}
	e := v.(entry[V])
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(k)
		return zero, false
	}
	return e.value, true
}

// Generation returns the partition's current generation. Pass it to Add.
func (c *TTL[V]) Generation(partition string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[partition]
}

// Add stores value unless the partition was invalidated since gen was read.
func (c *TTL[V]) Add(partition string, gen uint64, key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[partition] != gen {
		return
	}
	c.lru.Add(fullKey(partition, key), entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Remove drops one key and bumps the partition generation.
func (c *TTL[V]) Remove(partition, key string) {
	c.mu.Lock()
	c.gens[partition]++
	c.mu.Unlock()
	c.lru.Remove(fullKey(partition, key))
}

// InvalidatePartition drops every key of the partition.
func (c *TTL[V]) InvalidatePartition(partition string) {
	c.mu.Lock()
	c.gens[partition]++
	c.mu.Unlock()

	prefix := partition + ":"
	for _, k := range c.lru.Keys() {
		if s, ok := k.(string); ok && strings.HasPrefix(s, prefix) {
			c.lru.Remove(k)
		}
	}
}

func (c *TTL[V]) Len() int {
	return c.lru.Len()
}

func fullKey(partition, key string) string {
	return partition + ":" + key
}
