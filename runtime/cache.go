package runtime

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// cacheEntry is what each tier actually stores: the built value plus its
// accounted byte size, so eviction can track total memory independently of
// entry count.
type cacheEntry struct {
	value any
	bytes int64
}

// Cache is the two-tier LRU §4.9 describes: a small protected tier for
// pinned graph outputs that survives probationary churn, and a larger
// probationary tier for intermediates. Both tiers are entry-count bounded
// by the underlying lru.Cache, and jointly byte-bounded by memLimit;
// concurrent builds of the same key are coalesced by a singleflight.Group,
// matching "at most one concurrent build per (node, state-fingerprint)".
type Cache struct {
	mu           sync.Mutex
	protected    *lru.Cache
	probationary *lru.Cache
	memLimit     int64
	memUsed      int64
	building     singleflight.Group
}

// NewCache constructs a Cache sized per config. Eviction callbacks keep
// memUsed consistent even when a tier's own entry-count cap (rather than
// Cache.evictToFit) is what triggers an eviction.
func NewCache(config Config) (*Cache, error) {
	c := &Cache{memLimit: config.MemoryLimitBytes}

	protected, err := lru.NewWithEvict(config.ProtectedCacheSize, c.onEvicted)
	if err != nil {
		return nil, err
	}
	probationary, err := lru.NewWithEvict(config.ProbationaryCacheSize, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.protected = protected
	c.probationary = probationary
	return c, nil
}

// onEvicted is shared by both tiers' NewWithEvict callback; it only needs
// to keep the byte accounting correct, the entry is already gone from its
// tier by the time this runs.
func (c *Cache) onEvicted(_ any, value any) {
	if entry, ok := value.(cacheEntry); ok {
		c.memUsed -= entry.bytes
	}
}

// Get looks up key in either tier, preferring protected; a probationary hit
// does not get promoted. An entry's tier is fixed by the pinned flag the
// caller passes to Put or Build (the query path pins signal and value
// results, see isPinned) — this package never guesses which outputs the
// caller cares about.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.protected.Get(key); ok {
		return v.(cacheEntry).value, true
	}
	if v, ok := c.probationary.Get(key); ok {
		return v.(cacheEntry).value, true
	}
	return nil, false
}

// Put inserts value under key, sized bytes, into the protected tier if
// pinned else the probationary tier, then evicts by memory budget:
// probationary LRU order first, then protected, per §4.9.
func (c *Cache) Put(key string, value any, bytes int64, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probationary.Remove(key)
	c.protected.Remove(key)

	entry := cacheEntry{value: value, bytes: bytes}
	if pinned {
		c.protected.Add(key, entry)
	} else {
		c.probationary.Add(key, entry)
	}
	c.memUsed += bytes
	c.evictToFit()
}

// evictToFit drops entries — probationary oldest-first, then protected
// oldest-first — until memUsed is back under memLimit or both tiers are
// empty. Must be called with mu held.
func (c *Cache) evictToFit() {
	for c.memUsed > c.memLimit {
		if keys := c.probationary.Keys(); len(keys) > 0 {
			c.probationary.Remove(keys[0])
			continue
		}
		if keys := c.protected.Keys(); len(keys) > 0 {
			c.protected.Remove(keys[0])
			continue
		}
		return
	}
}

// Build is a GetOrBuild: a cache hit short-circuits fn; otherwise fn runs
// at most once across concurrently-racing callers for the same key (the
// singleflight coalescing §4.9 requires), and a successful result is
// cached before being returned to every waiter. A cancelled or errored
// build inserts nothing, per §5's "no entry is inserted for a cancelled
// build".
func (c *Cache) Build(key string, pinned bool, fn func() (any, int64, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.building.Do(key, func() (any, error) {
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		value, bytes, err := fn()
		if err != nil {
			return nil, err
		}
		c.Put(key, value, bytes, pinned)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
