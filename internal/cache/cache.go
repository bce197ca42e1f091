// Package cache provides the bounded access cache consulted by every read
// path before falling back to the backing store. Eviction is least-frequently
// used with least-recently-used as the tie break, which keeps steadily hot
// keys resident even when a burst of one-off lookups churns the map.
package cache

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the entry map when Options.Capacity is unset.
	DefaultCapacity = 150

	// DefaultStaleAfter is the staleness window applied by Refresh.
	DefaultStaleAfter = 5 * time.Minute

	// DefaultWarmQuota is how many hot keys Refresh re-primes.
	DefaultWarmQuota = 20
)

// KV is one key/value pair produced by a WarmFunc.
type KV struct {
	Key   string
	Value any
}

// WarmFunc loads the hot set directly from the backing store. Warm inserts
// bypass hit/miss accounting entirely.
type WarmFunc func(ctx context.Context, quota int) ([]KV, error)

// Options configures a Cache. Zero fields take the package defaults.
type Options struct {
	Capacity   int
	StaleAfter time.Duration
	WarmQuota  int
	Warm       WarmFunc
}

type entry struct {
	value       any
	lastAccess  time.Time
	accessCount int64
}

// EntryInfo is a point-in-time view of one cached entry, used by the cache
// console views.
type EntryInfo struct {
	Key         string
	LastAccess  time.Time
	AccessCount int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

// Cache is a bounded key/value store safe for concurrent use by parallel
// report workers. A single mutex guards the entry map and both counters, so
// eviction decisions are serialized and the capacity bound holds strictly.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	capacity   int
	hits       int64
	misses     int64
	staleAfter time.Duration
	warmQuota  int
	warm       WarmFunc

	now func() time.Time
}

// New builds a Cache from opts, applying defaults for zero fields.
func New(opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.WarmQuota <= 0 {
		opts.WarmQuota = DefaultWarmQuota
	}
	return &Cache{
		entries:    make(map[string]*entry),
		capacity:   opts.Capacity,
		staleAfter: opts.StaleAfter,
		warmQuota:  opts.WarmQuota,
		warm:       opts.Warm,
		now:        time.Now,
	}
}

// Get returns the cached value for key, or invokes load on a miss. Loaded
// values are stored only when they are present (non-nil, non-empty,
// non-zero); loader errors propagate to the caller and are never cached.
func (c *Cache) Get(key string, load func() (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		e.accessCount++
		e.lastAccess = c.now()
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		return nil, fmt.Errorf("cache load for %q: %w", key, err)
	}
	if cacheable(v) {
		c.Put(key, v)
	}
	return v, nil
}

// Put inserts or overwrites the entry for key, evicting exactly one entry
// first if the cache is full.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value)
}

func (c *Cache) put(key string, value any) {
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.evictOne()
	}
	c.entries[key] = &entry{value: value, lastAccess: c.now(), accessCount: 1}
}

// evictOne removes the entry with the smallest access count, breaking ties
// by the earliest last-access time. Caller holds the lock.
func (c *Cache) evictOne() {
	var victim string
	var found bool
	var minCount int64
	var oldest time.Time
	for key, e := range c.entries {
		if !found || e.accessCount < minCount ||
			(e.accessCount == minCount && e.lastAccess.Before(oldest)) {
			victim = key
			minCount = e.accessCount
			oldest = e.lastAccess
			found = true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

// Refresh removes every entry unaccessed for longer than the staleness
// window, then re-primes the hot set from the backing store. Warm inserts
// skip keys that are still resident and do not touch the hit/miss counters.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	cutoff := c.now().Add(-c.staleAfter)
	for key, e := range c.entries {
		if e.lastAccess.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if c.warm == nil {
		return nil
	}
	hot, err := c.warm(ctx, c.warmQuota)
	if err != nil {
		return fmt.Errorf("cache warm: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kv := range hot {
		if _, ok := c.entries[kv.Key]; ok {
			continue
		}
		c.put(kv.Key, kv.Value)
	}
	return nil
}

// HitRate returns hits/(hits+misses), or 0 before any access.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Stats returns a snapshot of the current size and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether key is resident without touching access tracking.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Clear drops all entries and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// Contents returns a snapshot of all entries sorted by key.
func (c *Cache) Contents() []EntryInfo {
	c.mu.Lock()
	infos := make([]EntryInfo, 0, len(c.entries))
	for key, e := range c.entries {
		infos = append(infos, EntryInfo{Key: key, LastAccess: e.lastAccess, AccessCount: e.accessCount})
	}
	c.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// cacheable reports whether a loaded value is worth storing: nil values,
// empty strings/slices/maps, and zero numbers all indicate "absent" results
// from the store and are returned to the caller without being cached.
func cacheable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
