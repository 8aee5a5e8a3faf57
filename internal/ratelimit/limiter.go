package ratelimit

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrInvalidWindow is returned when a policy carries a non-positive window.
var ErrInvalidWindow = errors.New("rate limit window must be positive")

const idleEviction = 10 * time.Minute

// Policy is one fixed-window rate configuration. MinInterval is a hard
// per-key cooldown independent of the counting window; it stops rapid
// double-submits even when the window still has room. Name labels the policy
// in metrics and logs.
type Policy struct {
	Name        string
	Window      time.Duration
	Max         int
	MinInterval time.Duration
}

// Decision is the outcome of a Check. RetryAfter is positive on deny and
// suitable for UI countdowns.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type entry struct {
	windowStart   time.Time
	count         int
	lastRequestAt time.Time
}

// Limiter is an in-memory fixed-window limiter keyed by arbitrary strings.
// State is process-local: it does not survive restarts and does not
// coordinate across instances. Horizontal deployments need a shared atomic
// store in front of it.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewLimiter creates a limiter and starts its housekeeping sweep. Call Close
// to stop the sweep goroutine.
func NewLimiter(sweepEvery time.Duration) *Limiter {
	l := &Limiter{
		entries:    make(map[string]*entry),
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Key builds a composite limiter key. Callers that need to scope limits by
// more than the recipient (e.g. recipient plus caller identity) join the
// dimensions here.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Check records an attempt for key under policy and decides whether it may
// proceed. The check-and-increment is atomic per call.
func (l *Limiter) Check(key string, policy Policy, now time.Time) (Decision, error) {
	if policy.Window <= 0 {
		return Decision{}, ErrInvalidWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		if policy.Max <= 0 {
			return Decision{RetryAfter: policy.Window}, nil
		}
		l.entries[key] = &entry{windowStart: now, count: 1, lastRequestAt: now}
		return Decision{Allowed: true}, nil
	}

	// Hard cooldown between consecutive attempts
	if policy.MinInterval > 0 {
		if gap := now.Sub(e.lastRequestAt); gap < policy.MinInterval {
			return Decision{RetryAfter: policy.MinInterval - gap}, nil
		}
	}

	if now.Sub(e.windowStart) < policy.Window {
		if e.count >= policy.Max {
			return Decision{RetryAfter: e.windowStart.Add(policy.Window).Sub(now)}, nil
		}
		e.count++
		e.lastRequestAt = now
		return Decision{Allowed: true}, nil
	}

	// Window elapsed, start a fresh one
	if policy.Max <= 0 {
		return Decision{RetryAfter: policy.Window}, nil
	}
	e.windowStart = now
	e.count = 1
	e.lastRequestAt = now
	return Decision{Allowed: true}, nil
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// sweep evicts entries idle longer than idleEviction. Keys are snapshotted
// first so eviction never races destructively with concurrent checks.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle(time.Now())
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	l.mu.Lock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.Unlock()

	for _, k := range keys {
		l.mu.Lock()
		if e, ok := l.entries[k]; ok && now.Sub(e.lastRequestAt) > idleEviction {
			delete(l.entries, k)
		}
		l.mu.Unlock()
	}
}

// len reports the tracked key count, for tests.
func (l *Limiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
