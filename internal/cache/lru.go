package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size-bounded map whose entries also expire after a TTL.
// The least recently used entry is evicted when the cache is full.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[K]*list.Element
	order   *list.List
	onEvict func(K, V)
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

type LRUOption[K comparable, V any] func(*LRUCache[K, V])

// WithEvictHook is called, outside the cache lock, for entries dropped by
// capacity or expiry. Explicit Delete does not trigger it.
func WithEvictHook[K comparable, V any](fn func(K, V)) LRUOption[K, V] {
	return func(c *LRUCache[K, V]) { c.onEvict = fn }
}

// WithClock replaces time.Now.
func WithClock[K comparable, V any](now func() time.Time) LRUOption[K, V] {
	return func(c *LRUCache[K, V]) { c.now = now }
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
// A non-positive ttl disables expiry.
func NewLRUCache[K comparable, V any](maxSize int, ttl time.Duration, opts ...LRUOption[K, V]) *LRUCache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &LRUCache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[K]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if c.expired(e) {
		c.remove(elem)
		c.mu.Unlock()
		c.evicted(e)
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.mu.Unlock()
	return e.value, true
}

// Has reports whether key holds an unexpired value without touching recency.
func (c *LRUCache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	return ok && !c.expired(elem.Value.(*entry[K, V]))
}

func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	e := &entry[K, V]{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return
	}

	c.items[key] = c.order.PushFront(e)

	var dropped *entry[K, V]
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			dropped = oldest.Value.(*entry[K, V])
			c.remove(oldest)
		}
	}
	c.mu.Unlock()

	if dropped != nil {
		c.evicted(dropped)
	}
}

func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// CleanExpired drops every expired entry and returns how many were removed.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	var dropped []*entry[K, V]
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if e := elem.Value.(*entry[K, V]); c.expired(e) {
			dropped = append(dropped, e)
			c.remove(elem)
		}
		elem = next
	}
	c.mu.Unlock()

	for _, e := range dropped {
		c.evicted(e)
	}
	return len(dropped)
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[K, V]) expired(e *entry[K, V]) bool {
	return c.ttl > 0 && c.now().After(e.expiresAt)
}

func (c *LRUCache[K, V]) remove(elem *list.Element) {
	e := elem.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.order.Remove(elem)
}

func (c *LRUCache[K, V]) evicted(e *entry[K, V]) {
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
