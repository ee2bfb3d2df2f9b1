package goplus

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is a cached provider payload with its expiry deadline.
type cacheEntry struct {
	key       string
	payload   map[string]any
	expiresAt time.Time
}

// payloadCache is a bounded TTL cache for provider responses. Expired
// entries are dropped lazily on read. When the cache grows past maxEntries,
// the entry that was inserted or refreshed longest ago is evicted first; a
// read refreshes the entry's position but not its expiry.
type payloadCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List // front = oldest insertion, back = newest
	entries    map[string]*list.Element
	now        func() time.Time
}

func newPayloadCache(ttl time.Duration, maxEntries int) *payloadCache {
	return &payloadCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

// get returns the cached payload for key, if present and fresh.
func (c *payloadCache) get(key string) (map[string]any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if !entry.expiresAt.After(c.now()) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToBack(elem)
	return entry.payload, true
}

// put stores payload under key with the configured TTL. A zero or negative
// TTL disables caching entirely.
func (c *payloadCache) put(key string, payload map[string]any) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}

	entry := &cacheEntry{key: key, payload: payload, expiresAt: c.now().Add(c.ttl)}
	c.entries[key] = c.order.PushBack(entry)

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// len reports the number of live entries, expired or not.
func (c *payloadCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
