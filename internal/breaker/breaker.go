// Package breaker tracks source-wide blocks. Some registries ban the caller's
// network identity outright rather than a single credential; when that
// happens every in-flight worker for the source must back off together
// instead of hammering a banned endpoint one request at a time.
package breaker

import (
	"sync"
	"time"
)

// Breaker is the shared cooldown state for one blockable source. It is
// mutated by whichever connector instance detects the block and read by all
// instances sharing the source before each request.
type Breaker struct {
	mu        sync.Mutex
	cooldown  time.Duration
	debounce  time.Duration
	blocked   bool
	blockedAt time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a breaker with the given cooldown and trip debounce window.
// A debounce of zero disables debouncing.
func New(cooldown, debounce time.Duration) *Breaker {
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &Breaker{
		cooldown: cooldown,
		debounce: debounce,
		nowFunc:  time.Now,
	}
}

// IsBlocked reports whether the source is currently in cooldown. Once the
// cooldown has elapsed the blocked flag auto-clears.
func (b *Breaker) IsBlocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.blocked {
		return false
	}
	if b.nowFunc().Sub(b.blockedAt) >= b.cooldown {
		b.blocked = false
		return false
	}
	return true
}

// Trip marks the source as blocked and starts the cooldown clock. Concurrent
// callers hitting the same ban all call Trip; only the first within the
// debounce window refreshes blockedAt, so the cooldown is not extended by
// the stragglers. Returns true when this call actually tripped the breaker.
func (b *Breaker) Trip() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()
	if b.blocked && now.Sub(b.blockedAt) < b.debounce {
		return false
	}
	b.blocked = true
	b.blockedAt = now
	return true
}

// Remaining returns how long the current cooldown has left, or zero when the
// source is not blocked.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.blocked {
		return 0
	}
	left := b.cooldown - b.nowFunc().Sub(b.blockedAt)
	if left < 0 {
		return 0
	}
	return left
}

// SourceBreakers manages one breaker per source name.
type SourceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cooldown time.Duration
	debounce time.Duration
}

// NewSourceBreakers creates a registry of per-source breakers sharing one
// cooldown/debounce configuration.
func NewSourceBreakers(cooldown, debounce time.Duration) *SourceBreakers {
	return &SourceBreakers{
		breakers: make(map[string]*Breaker),
		cooldown: cooldown,
		debounce: debounce,
	}
}

// Get returns the breaker for the named source, creating one if needed.
func (sb *SourceBreakers) Get(source string) *Breaker {
	sb.mu.RLock()
	b, ok := sb.breakers[source]
	sb.mu.RUnlock()
	if ok {
		return b
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	// Double-check after acquiring write lock.
	if b, ok = sb.breakers[source]; ok {
		return b
	}
	b = New(sb.cooldown, sb.debounce)
	sb.breakers[source] = b
	return b
}

// Blocked returns the names of sources currently in cooldown.
func (sb *SourceBreakers) Blocked() []string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	var names []string
	for name, b := range sb.breakers {
		if b.IsBlocked() {
			names = append(names, name)
		}
	}
	return names
}
