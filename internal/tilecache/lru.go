package tilecache

import (
	"sync"
)

// lruCache is a thread-safe LRU cache for tile bytes, bounded by both entry
// count and total byte cost. Which entries go first is not load-bearing;
// anything evicted is re-fetchable on the next miss.
type lruCache struct {
	maxEntries int
	maxBytes   int64

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
	bytes   int64
	onEvict func()
}

type entry struct {
	key  string
	data []byte
	prev *entry
	next *entry
}

func newLRUCache(maxEntries int, maxBytes int64, onEvict func()) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		entries:    make(map[string]*entry),
		onEvict:    onEvict,
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.data, true
}

func (c *lruCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.bytes += int64(len(data)) - int64(len(e.data))
		e.data = data
		c.moveToFront(e)
		c.evictOverBudget()
		return
	}

	e := &entry{key: key, data: data}
	c.entries[key] = e
	c.addToFront(e)
	c.bytes += int64(len(data))
	c.evictOverBudget()
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) totalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// evictOverBudget drops least-recently-used entries until both budgets hold.
// The most recent entry is always kept, even when it alone exceeds maxBytes.
func (c *lruCache) evictOverBudget() {
	for len(c.entries) > 1 && (len(c.entries) > c.maxEntries || c.bytes > c.maxBytes) {
		c.evictTail()
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	c.bytes -= int64(len(c.tail.data))
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
	if c.onEvict != nil {
		c.onEvict()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}
