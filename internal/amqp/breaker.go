package amqp

import (
	"errors"
	"sync"
	"time"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// breaker opens after maxFailures consecutive publish failures and lets one
// trial through once openTimeout has passed. A failed trial reopens it.
type breaker struct {
	mu          sync.Mutex
	state       int32
	failures    int
	lastFailure time.Time
	maxFailures int
	openFor     time.Duration
	now         func() time.Time
}

func newBreaker(maxFailures int, openFor time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, openFor: openFor, now: time.Now}
}

// allow reports whether a call may proceed, moving an expired open breaker
// to half-open.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailure) > b.openFor {
		b.state = StateHalfOpen
	}
	return b.state != StateOpen
}

func (b *breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.state = StateClosed
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.maxFailures || b.state == StateHalfOpen {
		b.state = StateOpen
	}
}

func (b *breaker) State() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
