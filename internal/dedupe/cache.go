// ABOUTME: Bounded TTL cache of inbound message keys
// ABOUTME: Reports re-delivered messages so they are dropped before dispatch

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds the number of remembered message keys.
const DefaultMaxSize = 10000

// Key builds the cache key for a platform message.
func Key(transport, messageID string) string {
	return transport + ":" + messageID
}

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers message keys for a TTL. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // keys, least recently marked at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a cache and starts its expiry sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweep(sweepInterval(ttl))
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return time.Minute
	case ttl < 2*time.Second:
		return time.Second
	case ttl > 2*time.Minute:
		return time.Minute
	default:
		return ttl / 2
	}
}

// Seen reports whether key was marked within the TTL and marks it either
// way. The first caller for a key gets false.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		fresh := now.Sub(e.seenAt) < c.ttl
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return fresh
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{seenAt: now, element: c.order.PushBack(key)}
	return false
}

// Len returns the number of remembered keys, expired ones included until the
// next sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire drops keys older than the TTL. Keys are ordered by last mark, so
// the walk stops at the first fresh one.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(c.entries[key].seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
