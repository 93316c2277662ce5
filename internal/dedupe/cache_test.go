// ABOUTME: Tests for the inbound message dedupe cache
// ABOUTME: Covers TTL expiry, refresh on re-mark, eviction order, sweeping and concurrency

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache, *manualClock) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newCache(ttl, maxSize, clock.Now), clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "whatsapp:3EB0ABC", Key("whatsapp", "3EB0ABC"))
	assert.NotEqual(t, Key("whatsapp", "x"), Key("matrix", "x"))
}

func TestCache_FirstSightIsNotSeen(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	assert.False(t, c.Seen("a"))
	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	assert.False(t, c.Seen("a"))
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("a"), "re-delivery within the TTL")

	// The second sighting refreshed the key.
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("a"))

	clock.Advance(time.Minute)
	assert.False(t, c.Seen("a"), "expired keys count as new")
}

func TestCache_EvictsOldest(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)

	c.Seen("first")
	c.Seen("second")
	c.Seen("third")
	c.Seen("first") // refresh moves first to the back

	c.Seen("fourth")
	assert.Equal(t, 3, c.Len())

	assert.True(t, c.Seen("first"))
	assert.False(t, c.Seen("second"), "second was the oldest and got evicted")
}

func TestCache_ExpireSweep(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	c.Seen("old-1")
	c.Seen("old-2")
	clock.Advance(40 * time.Second)
	c.Seen("young")
	clock.Advance(30 * time.Second)

	c.expire()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("young"))
}

func TestCache_ConcurrentSeen(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	var fresh int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("contested") {
				atomic.AddInt32(&fresh, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh, "exactly one caller sees the key first")
}

func TestCache_CloseTwice(t *testing.T) {
	c := New(time.Minute, 0)
	c.Close()
	c.Close()
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(0))
	assert.Equal(t, time.Second, sweepInterval(500*time.Millisecond))
	assert.Equal(t, 15*time.Second, sweepInterval(30*time.Second))
	assert.Equal(t, time.Minute, sweepInterval(time.Hour))
}
