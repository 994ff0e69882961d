package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"
)

// Item represents a cached value with sliding and absolute expiration.
// softExp moves forward on each hit (by the entry's sliding window) but is
// always capped by hardExp; either bound passing makes the entry stale.
type Item struct {
	V       any
	sliding time.Duration
	softExp int64 // unix nanos; 0 = no sliding expiry
	hardExp int64 // unix nanos; 0 = no absolute expiry
}

// Cache is an in-memory accelerator safe for concurrent use. It is never
// authoritative; callers must treat a miss as "go ask the store".
type Cache struct {
	mu       sync.RWMutex
	items    map[string]*entry
	order    *list.List // MRU at front, LRU at back
	maxItems int        // 0 = unlimited

	done chan struct{}
	once sync.Once
}

type entry struct {
	key  string
	item Item
	elem *list.Element
}

// New builds a cache and starts its janitor.
func New(maxItems int, janitorInterval time.Duration) *Cache {
	c := &Cache{
		items:    make(map[string]*entry),
		order:    list.New(),
		maxItems: maxItems,
		done:     make(chan struct{}),
	}
	go c.janitor(janitorInterval)
	return c
}

// Close stops the janitor goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

// Get returns the value and whether it exists and is not expired. A hit
// extends the sliding deadline, never past the absolute one.
//
// The whole lookup runs under the write lock: expiry check, sliding update
// and the value read must see one consistent item, since Set replaces
// e.item wholesale for concurrent writers.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if expired(&e.item, now) {
		// lazy delete
		c.removeNoLock(key)
		return nil, false
	}
	if e.item.sliding > 0 {
		soft := now + int64(e.item.sliding)
		if e.item.hardExp != 0 && soft > e.item.hardExp {
			soft = e.item.hardExp
		}
		e.item.softExp = soft
	}
	if e.elem != nil {
		c.order.MoveToFront(e.elem)
	}
	return e.item.V, true
}

// Set stores a value. sliding<=0 disables the sliding window, absolute<=0
// disables the hard cap.
func (c *Cache) Set(key string, v any, sliding, absolute time.Duration) {
	if c == nil {
		return
	}
	now := time.Now()
	item := Item{V: v, sliding: sliding}
	if sliding > 0 {
		item.softExp = now.Add(sliding).UnixNano()
	}
	if absolute > 0 {
		item.hardExp = now.Add(absolute).UnixNano()
		if item.softExp > item.hardExp {
			item.softExp = item.hardExp
		}
	}
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.item = item
		if e.elem != nil {
			c.order.MoveToFront(e.elem)
		}
	} else {
		e := &entry{key: key, item: item}
		e.elem = c.order.PushFront(e)
		c.items[key] = e
		if c.maxItems > 0 && c.order.Len() > c.maxItems {
			c.evictLRUNoLock()
		}
	}
	c.mu.Unlock()
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.removeNoLock(key)
	c.mu.Unlock()
}

// janitor periodically removes expired items.
func (c *Cache) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		}
		now := time.Now().UnixNano()
		c.mu.Lock()
		for k, e := range c.items {
			if expired(&e.item, now) {
				c.removeNoLock(k)
			}
		}
		c.mu.Unlock()
	}
}

func expired(it *Item, now int64) bool {
	if it.softExp != 0 && it.softExp < now {
		return true
	}
	return it.hardExp != 0 && it.hardExp < now
}

// KeyFromStrings creates a compact stable key from parts.
func KeyFromStrings(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(p))
	}
	return string(h.Sum(nil))
}

// removeNoLock removes key from map/list; caller must hold c.mu.
func (c *Cache) removeNoLock(key string) {
	if e, ok := c.items[key]; ok {
		if e.elem != nil {
			c.order.Remove(e.elem)
		}
		delete(c.items, key)
	}
}

// evictLRUNoLock removes one LRU entry; caller must hold c.mu.
func (c *Cache) evictLRUNoLock() {
	back := c.order.Back()
	if back == nil {
		return
	}
	if e, ok := back.Value.(*entry); ok {
		c.order.Remove(back)
		delete(c.items, e.key)
	} else {
		c.order.Remove(back)
	}
}
