package market

import (
	"container/list"
	"sync"

	"github.com/hxuan190/dmm-router/internal/metrics"
)

// BoundedLRUCache is a thread-safe bounded LRU cache. Hits and misses are
// reported under name.
type BoundedLRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	name    string
	cache   map[K]*list.Element
	lru     *list.List
	maxSize int
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func NewBoundedLRUCache[K comparable, V any](name string, maxSize int) *BoundedLRUCache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &BoundedLRUCache[K, V]{
		name:    name,
		cache:   make(map[K]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *BoundedLRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		var zero V
		return zero, false
	}
	metrics.CacheHits.WithLabelValues(c.name).Inc()
	c.lru.MoveToFront(elem)
	return elem.Value.(*lruEntry[K, V]).value, true
}

// Set adds or updates a value, evicting the least recently used entry when full.
func (c *BoundedLRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry[K, V]).value = value
		return
	}

	for len(c.cache) >= c.maxSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.lru.Remove(back)
		delete(c.cache, back.Value.(*lruEntry[K, V]).key)
	}

	c.cache[key] = c.lru.PushFront(&lruEntry[K, V]{key: key, value: value})
}

func (c *BoundedLRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.Remove(elem)
		delete(c.cache, key)
	}
}

func (c *BoundedLRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Clear drops every entry. Called on chain switch.
func (c *BoundedLRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[K]*list.Element, c.maxSize)
	c.lru.Init()
}
