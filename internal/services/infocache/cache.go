// Package infocache caches extraction results with restriction-aware
// invalidation. Entries are keyed by (service, normalized URL, content type,
// restricted flag), bounded by an LRU list and expired by per-entry TTL.
package infocache

import (
	"container/list"
	"sync"
	"time"

	"github.com/flowtube/flowtube/internal/models"
)

// Key identifies one cached extraction result. The restricted-mode flag of
// the owning service is folded in by the cache itself so that entries
// resolved under one mode are never served under the other.
type Key struct {
	ServiceID   string
	URL         string
	ContentType models.ContentType
}

// entryKey is the internal composite key. Restricted participates only for
// restriction-sensitive content types; channel and playlist listings are
// identical in both modes and keep a single entry.
type entryKey struct {
	Key
	Restricted bool
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

// InfoCache is the extraction-result cache used by the player and the
// resolve endpoint.
type InfoCache interface {
	// Get retrieves a cached result. Expired entries count as misses.
	Get(key Key) (*models.StreamInfo, bool)
	// Set stores a result with the given TTL, evicting the least recently
	// used entry when the cache is full.
	Set(key Key, info *models.StreamInfo, ttl time.Duration)
	// Delete drops a single entry in both modes.
	Delete(key Key)
	// Invalidate drops entries for a service and content type. Empty
	// contentType matches every type; empty serviceID matches every
	// service. Returns the number of entries dropped.
	Invalidate(serviceID string, contentType models.ContentType) int
	// SetRestrictedMode flips the per-service restricted flag. A change
	// evicts only restriction-sensitive entries of that service and
	// returns how many were dropped; setting the current value is a no-op.
	SetRestrictedMode(serviceID string, restricted bool) int
	// RestrictedMode reports the current flag for a service.
	RestrictedMode(serviceID string) bool
	// Stats returns cache counters.
	Stats() Stats
	// Clear drops everything.
	Clear()
}

type cacheEntry struct {
	key     entryKey
	info    *models.StreamInfo
	expires time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// MemoryCache is the in-process LRU implementation of InfoCache.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[entryKey]*list.Element
	order      *list.List // front = most recently used
	restricted map[string]bool
	stats      Stats
}

// NewMemoryCache creates a bounded in-memory cache. maxEntries must be
// positive; zero falls back to a sane default.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 300
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		entries:    make(map[entryKey]*list.Element),
		order:      list.New(),
		restricted: make(map[string]bool),
	}
}

func (c *MemoryCache) composite(key Key) entryKey {
	ek := entryKey{Key: key}
	if key.ContentType.RestrictionSensitive() {
		ek.Restricted = c.restricted[key.ServiceID]
	}
	return ek
}

func (c *MemoryCache) Get(key Key) (*models.StreamInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.entries[c.composite(key)]
	if !found {
		c.stats.Misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if entry.expired(time.Now()) {
		c.removeElement(elem)
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return entry.info, true
}

func (c *MemoryCache) Set(key Key, info *models.StreamInfo, ttl time.Duration) {
	if info == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ek := c.composite(key)
	if elem, found := c.entries[ek]; found {
		entry := elem.Value.(*cacheEntry)
		entry.info = info
		entry.expires = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		c.stats.Sets++
		return
	}

	entry := &cacheEntry{
		key:     ek,
		info:    info,
		expires: time.Now().Add(ttl),
	}
	c.entries[ek] = c.order.PushFront(entry)
	c.stats.Sets++

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, restricted := range []bool{false, true} {
		ek := entryKey{Key: key, Restricted: restricted}
		if elem, found := c.entries[ek]; found {
			c.removeElement(elem)
		}
	}
}

func (c *MemoryCache) Invalidate(serviceID string, contentType models.ContentType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeMatching(func(ek entryKey) bool {
		if serviceID != "" && ek.ServiceID != serviceID {
			return false
		}
		if contentType != "" && ek.ContentType != contentType {
			return false
		}
		return true
	})
}

func (c *MemoryCache) SetRestrictedMode(serviceID string, restricted bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restricted[serviceID] == restricted {
		return 0
	}
	c.restricted[serviceID] = restricted

	return c.removeMatching(func(ek entryKey) bool {
		return ek.ServiceID == serviceID && ek.ContentType.RestrictionSensitive()
	})
}

func (c *MemoryCache) RestrictedMode(serviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restricted[serviceID]
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[entryKey]*list.Element)
	c.order.Init()
}

// MaxEntries returns the configured bound.
func (c *MemoryCache) MaxEntries() int {
	return c.maxEntries
}

// removeMatching drops every entry the predicate accepts. Caller holds the
// lock.
func (c *MemoryCache) removeMatching(match func(entryKey) bool) int {
	removed := 0
	var next *list.Element
	for elem := c.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*cacheEntry)
		if match(entry.key) {
			c.removeElement(elem)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	return removed
}

// removeElement unlinks an entry. Caller holds the lock.
func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}
