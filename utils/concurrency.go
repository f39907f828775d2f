package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"propscout/models"
)

// ErrLimiterClosed is returned by Execute after Close.
var ErrLimiterClosed = errors.New("rate limiter closed")

// Task is one unit of throttled work.
type Task func(ctx context.Context) (any, error)

type taskResult struct {
	value any
	err   error
}

type job struct {
	ctx  context.Context
	task Task
	done chan taskResult
}

// RateLimiter runs tasks one at a time in submission order. No more than
// maxRequests tasks start inside one fixed window, and a task never starts
// less than delay after the previous one finished, even when the queue went
// idle in between.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	delay       time.Duration
	logger      *Logger

	now   func() time.Time
	sleep func(time.Duration)

	mu           sync.Mutex
	queue        []*job
	processing   bool
	closed       bool
	requestCount int
	windowStart  time.Time
	lastDone     time.Time
}

// NewRateLimiter creates a RateLimiter allowing maxRequests task starts per
// window with delay between consecutive tasks.
func NewRateLimiter(maxRequests int, window, delay time.Duration, logger *Logger) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		delay:       delay,
		logger:      logger,
		now:         time.Now,
		sleep:       time.Sleep,
		windowStart: time.Now(),
	}
}

// Execute enqueues task and blocks until it has run, returning its result.
// If ctx ends while the task is still queued, Execute returns ctx.Err() and
// the task is skipped. A task that has started always runs to completion.
func (rl *RateLimiter) Execute(ctx context.Context, task Task) (any, error) {
	j := &job{ctx: ctx, task: task, done: make(chan taskResult, 1)}

	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return nil, ErrLimiterClosed
	}
	rl.queue = append(rl.queue, j)
	if !rl.processing {
		rl.processing = true
		go rl.drain()
	}
	rl.mu.Unlock()

	select {
	case r := <-j.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run is a typed wrapper around Execute.
func Run[T any](ctx context.Context, rl *RateLimiter, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := rl.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Status returns a snapshot of the queue for observability.
func (rl *RateLimiter) Status() models.RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return models.RateLimitStatus{
		QueueLength:  len(rl.queue),
		RequestCount: rl.requestCount,
		MaxRequests:  rl.maxRequests,
		WindowMs:     rl.window.Milliseconds(),
	}
}

// Close rejects new tasks. Tasks already queued still run.
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	rl.closed = true
	rl.mu.Unlock()
}

// drain is the single worker loop. It exits when the queue is empty and is
// restarted by the next Execute.
func (rl *RateLimiter) drain() {
	for {
		rl.mu.Lock()
		if len(rl.queue) == 0 {
			rl.processing = false
			rl.mu.Unlock()
			return
		}
		j := rl.queue[0]
		rl.queue = rl.queue[1:]

		if j.ctx.Err() != nil {
			rl.mu.Unlock()
			j.done <- taskResult{err: j.ctx.Err()}
			continue
		}

		now := rl.now()
		if now.Sub(rl.windowStart) >= rl.window {
			rl.requestCount = 0
			rl.windowStart = now
		}
		var windowWait, delayWait time.Duration
		if rl.requestCount >= rl.maxRequests {
			windowWait = rl.window - now.Sub(rl.windowStart)
		}
		if !rl.lastDone.IsZero() {
			delayWait = rl.delay - now.Sub(rl.lastDone)
		}
		rl.mu.Unlock()

		if windowWait > 0 && rl.logger != nil {
			rl.logger.Info("[ratelimit] Window exhausted (%d requests), waiting %v", rl.maxRequests, windowWait)
		}
		if wait := max(windowWait, delayWait); wait > 0 {
			rl.sleep(wait)
		}

		rl.mu.Lock()
		if now := rl.now(); now.Sub(rl.windowStart) >= rl.window {
			rl.requestCount = 0
			rl.windowStart = now
		}
		rl.requestCount++
		rl.mu.Unlock()

		res := rl.run(j)

		rl.mu.Lock()
		rl.lastDone = rl.now()
		rl.mu.Unlock()
		j.done <- res
	}
}

func (rl *RateLimiter) run(j *job) (res taskResult) {
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{err: fmt.Errorf("rate limited task panicked: %v", r)}
		}
	}()
	v, err := j.task(j.ctx)
	return taskResult{value: v, err: err}
}

// KeySet is a thread-safe set of normalised keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has been added.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
