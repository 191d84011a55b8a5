// Package ratelimit provides the process-wide request spacer shared by
// every outbound HTTP call.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a minimum interval between calls to Wait across all
// goroutines. There is no burst credit: each Wait advances the next-ok
// time by exactly the configured interval.
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	nextOK   time.Time
}

// New creates a Limiter with the given minimum interval. A zero or
// negative interval disables limiting entirely.
func New(interval time.Duration) *Limiter {
	if interval < 0 {
		interval = 0
	}
	return &Limiter{interval: interval}
}

// Wait blocks until at least the configured interval has elapsed since
// the previous Wait completed, then claims the next slot. Callers are
// serialized through the mutex, so concurrent Waits return spaced by at
// least the interval.
func (l *Limiter) Wait() {
	if l.interval <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Before(l.nextOK) {
		time.Sleep(l.nextOK.Sub(now))
	}
	if l.nextOK.Before(now) {
		l.nextOK = now
	}
	l.nextOK = l.nextOK.Add(l.interval)
}
