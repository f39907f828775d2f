package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*MemoryCache, *manualClock) {
	clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
	c := NewMemoryCache(ttl, 0, nil)
	c.now = clock.Now
	return c, clock
}

func TestMemoryCacheTTLBoundary(t *testing.T) {
	c, clock := newTestCache(30 * time.Minute)
	defer c.Close()

	c.Set("k", []byte(`[1]`))

	clock.Advance(30*time.Minute - time.Nanosecond)
	if got, ok := c.Get("k"); !ok || string(got) != `[1]` {
		t.Fatalf("just before TTL: got %q, %v", got, ok)
	}

	clock.Advance(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be expired at exactly TTL")
	}
	if keys := c.Keys(); len(keys) != 0 {
		t.Errorf("expired key still listed: %v", keys)
	}
}

func TestMemoryCacheSetReplacesAndRefreshes(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	defer c.Close()

	c.Set("k", []byte(`"old"`))
	clock.Advance(50 * time.Second)
	c.Set("k", []byte(`"new"`))
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	if !ok || string(got) != `"new"` {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestMemoryCacheCopiesPayload(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Close()

	buf := []byte(`"a"`)
	c.Set("k", buf)
	buf[1] = 'b'

	got, _ := c.Get("k")
	if string(got) != `"a"` {
		t.Errorf("caller mutation leaked into cache: %q", got)
	}
}

func TestMemoryCacheStatsKeysFlush(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Close()

	c.Set("b", []byte(`1`))
	c.Set("a", []byte(`2`))
	c.Get("a")
	c.Get("missing")

	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys: got %v", keys)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Keys != 2 {
		t.Errorf("stats: got %+v", s)
	}

	c.FlushAll()
	if s := c.Stats(); s.Keys != 0 || s.Hits != 0 {
		t.Errorf("after flush: got %+v", s)
	}
}

func TestMemoryCacheSweep(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte(`1`))
	}
	clock.Advance(2 * time.Minute)
	c.Set("fresh", []byte(`1`))

	if n := c.sweep(); n != 3 {
		t.Errorf("swept: got %d, want 3", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, []byte(`1`))
			c.Get(key)
			c.Keys()
		}(i)
	}
	wg.Wait()
	if n := len(c.Keys()); n != 5 {
		t.Errorf("keys: got %d, want 5", n)
	}
}
