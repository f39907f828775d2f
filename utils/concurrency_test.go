package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock drives a RateLimiter without real sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(max int, window, delay time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := NewRateLimiter(max, window, delay, nil)
	rl.now = clock.Now
	rl.sleep = clock.Sleep
	rl.windowStart = clock.Now()
	return rl, clock
}

func TestRateLimiterWindowAndDelay(t *testing.T) {
	rl, clock := newTestLimiter(2, 60*time.Second, time.Second)

	// Hold the worker on the first task so all five are queued before any
	// delay decision is made.
	release := make(chan struct{})
	var mu sync.Mutex
	var starts []time.Duration
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rl.Execute(context.Background(), func(ctx context.Context) (any, error) {
				if i == 0 {
					<-release
				}
				mu.Lock()
				starts = append(starts, clock.Now().Sub(time.Unix(0, 0)))
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
			if err != nil {
				t.Errorf("task %d: %v", i, err)
			}
		}()
		// Enforce submission order.
		waitForQueue(t, rl, i)
	}
	close(release)
	wg.Wait()

	want := []time.Duration{0, time.Second, 60 * time.Second, 61 * time.Second, 120 * time.Second}
	if len(starts) != len(want) {
		t.Fatalf("starts: got %d, want %d", len(starts), len(want))
	}
	for i := range want {
		if order[i] != i {
			t.Errorf("order[%d]: got task %d", i, order[i])
		}
		if starts[i] != want[i] {
			t.Errorf("start %d: got %v, want %v", i, starts[i], want[i])
		}
	}
}

func TestRateLimiterDelayHoldsAcrossIdle(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute, 5*time.Second)
	epoch := time.Unix(0, 0)

	startAt := func() time.Duration {
		v, err := Run(context.Background(), rl, func(ctx context.Context) (time.Duration, error) {
			return clock.Now().Sub(epoch), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	if got := startAt(); got != 0 {
		t.Fatalf("first start: got %v, want 0", got)
	}
	// The queue is empty now; the next task still waits out the delay.
	if got := startAt(); got != 5*time.Second {
		t.Errorf("start after idle: got %v, want 5s", got)
	}

	clock.Sleep(30 * time.Second)
	if got := startAt(); got != 35*time.Second {
		t.Errorf("start after long idle: got %v, want 35s (no extra wait)", got)
	}
}

// waitForQueue blocks until task i has been taken or queued.
func waitForQueue(t *testing.T, rl *RateLimiter, i int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := rl.Status()
		if s.QueueLength+s.RequestCount >= i+1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %d never queued", i)
}

func TestRateLimiterErrorDoesNotStopQueue(t *testing.T) {
	rl, _ := newTestLimiter(10, time.Minute, 0)
	boom := errors.New("boom")

	_, err := rl.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	_, err = rl.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("bad")
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}

	v, err := Run(context.Background(), rl, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestRateLimiterCancelledWhileQueued(t *testing.T) {
	rl, _ := newTestLimiter(10, time.Minute, 0)

	release := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		rl.Execute(context.Background(), func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()
	waitForQueue(t, rl, 0)

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := rl.Execute(ctx, func(ctx context.Context) (any, error) {
			ran.Store(true)
			return nil, nil
		})
		errCh <- err
	}()
	waitForQueue(t, rl, 1)
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	close(release)
	<-firstDone

	// The next task must still be served once the cancelled one is skipped.
	if _, err := rl.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("cancelled task should never run")
	}
}

func TestRateLimiterClosed(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute, 0)
	rl.Close()
	if _, err := rl.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }); !errors.Is(err, ErrLimiterClosed) {
		t.Fatalf("got %v, want ErrLimiterClosed", err)
	}
}

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	if !s.Add("1 high street") {
		t.Error("first Add should return true")
	}
	if s.Add("1 high street") {
		t.Error("second Add of same key should return false")
	}
	if !s.Contains("1 high street") {
		t.Error("Contains should report added key")
	}
	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestKeySetConcurrency(t *testing.T) {
	s := NewKeySet()
	var added int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}
