package auth

import (
	"sync"
	"time"
)

// AttemptStore tracks failed logins per client.
type AttemptStore interface {
	// Allow reports whether key may try to log in at now. When it may not,
	// retryAfter is how long the block still lasts.
	Allow(key string, now time.Time) (retryAfter time.Duration, ok bool)
	// Fail records a failed attempt and returns the failures in the window.
	Fail(key string, now time.Time) int
	Reset(key string)
}

type Limits struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

var DefaultLimits = Limits{
	MaxAttempts: 5,
	Window:      15 * time.Minute,
	Block:       15 * time.Minute,
}

type attempt struct {
	count        int
	last         time.Time
	blockedUntil time.Time
}

// MemoryAttempts is a process-local AttemptStore. Entries expire once both
// the window and any block have passed.
type MemoryAttempts struct {
	limits Limits

	mu      sync.Mutex
	entries map[string]*attempt
}

func NewMemoryAttempts(limits Limits) *MemoryAttempts {
	if limits.MaxAttempts <= 0 {
		limits.MaxAttempts = DefaultLimits.MaxAttempts
	}
	if limits.Window <= 0 {
		limits.Window = DefaultLimits.Window
	}
	if limits.Block <= 0 {
		limits.Block = DefaultLimits.Block
	}
	return &MemoryAttempts{limits: limits, entries: make(map[string]*attempt)}
}

func (m *MemoryAttempts) Allow(key string, now time.Time) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil {
		return 0, true
	}
	if e.blockedUntil.After(now) {
		return e.blockedUntil.Sub(now), false
	}
	if now.Sub(e.last) > m.limits.Window {
		e.count = 0
	}
	if e.count >= m.limits.MaxAttempts {
		e.blockedUntil = now.Add(m.limits.Block)
		e.count = 0
		return m.limits.Block, false
	}
	return 0, true
}

func (m *MemoryAttempts) Fail(key string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(now)
	e := m.entries[key]
	if e == nil {
		e = &attempt{}
		m.entries[key] = e
	}
	if now.Sub(e.last) > m.limits.Window {
		e.count = 0
	}
	e.count++
	e.last = now
	return e.count
}

func (m *MemoryAttempts) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *MemoryAttempts) prune(now time.Time) {
	for k, e := range m.entries {
		if now.Sub(e.last) > m.limits.Window && !e.blockedUntil.After(now) {
			delete(m.entries, k)
		}
	}
}

// FailureDelay slows down repeated failures: one second per failure, at
// most five.
func FailureDelay(failures int) time.Duration {
	d := time.Duration(failures) * time.Second
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}
