package http

import (
	"sync"
	"time"
)

const (
	defaultRateLimit  = 60
	defaultRateWindow = time.Minute
	sweepEvery        = 5 * time.Minute
	// idle clients are forgotten after this many windows
	idleWindows = 10
)

// limiter counts requests per key in fixed windows. The window opens on a
// key's first request and is not extended by rejected ones.
type limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	quit      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	opened time.Time
	seen   time.Time
	count  int
}

func newLimiter(limit int, window time.Duration) *limiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	l := &limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		quit:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow records a request for key and reports whether it is within budget.
func (l *limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[key]
	if b == nil || now.Sub(b.opened) >= l.window {
		l.buckets[key] = &bucket{opened: now, seen: now, count: 1}
		return true
	}
	b.seen = now
	b.count++
	return b.count <= l.limit
}

// Clients is the number of keys currently tracked.
func (l *limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep forgets idle keys and returns how many it dropped.
func (l *limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleWindows * l.window)
	n := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// RetryAfter is the window rounded up to whole seconds.
func (l *limiter) RetryAfter() int {
	return int(max((l.window+time.Second-1)/time.Second, 1))
}

func (l *limiter) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

func (l *limiter) janitor() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.Sweep()
		case <-l.quit:
			return
		}
	}
}
