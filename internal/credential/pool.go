// Package credential manages per-source authentication keys with round-robin
// rotation and consecutive-failure tracking.
package credential

import "sync"

// Pool holds the credentials registered for one source. A pool may be empty,
// in which case Current and Rotate report no key and the source is unusable
// for quota-gated work.
//
// Keys are shared read-only strings; rotation moves a cursor, it never
// transfers ownership.
type Pool struct {
	mu          sync.Mutex
	source      string
	keys        []string
	streaks     map[string]int
	idx         int
	rotateAfter int
}

// NewPool creates a pool for the named source. rotateAfter is the number of
// consecutive failures on one key before FailOver advances past it; values
// below 1 are clamped to 1.
func NewPool(source string, keys []string, rotateAfter int) *Pool {
	if rotateAfter < 1 {
		rotateAfter = 1
	}
	return &Pool{
		source:      source,
		keys:        keys,
		streaks:     make(map[string]int, len(keys)),
		rotateAfter: rotateAfter,
	}
}

// Source returns the source name this pool serves.
func (p *Pool) Source() string { return p.source }

// Size returns the number of registered keys.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Keys returns a copy of the registered keys in rotation order.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Current returns the key under the cursor. ok is false for an empty pool.
func (p *Pool) Current() (key string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", false
	}
	return p.keys[p.idx], true
}

// Rotate advances the cursor round-robin and returns the new current key.
func (p *Pool) Rotate() (key string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", false
	}
	p.idx = (p.idx + 1) % len(p.keys)
	return p.keys[p.idx], true
}

// MarkFailure records one auth/quota failure on key and returns the updated
// consecutive-failure streak.
func (p *Pool) MarkFailure(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streaks[key]++
	return p.streaks[key]
}

// MarkSuccess resets the failure streak for key.
func (p *Pool) MarkSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.streaks, key)
}

// Streak returns the current consecutive-failure count for key.
func (p *Pool) Streak(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaks[key]
}

// FailOver records a failure on key and, once the key's streak reaches the
// rotation threshold, advances past it. The returned key is the one the
// caller should use next; rotated is true when the cursor moved. A single
// transient failure therefore does not abandon a key.
func (p *Pool) FailOver(key string) (next string, rotated bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", false, false
	}

	p.streaks[key]++
	if p.streaks[key] < p.rotateAfter {
		return p.keys[p.idx], false, true
	}

	// Streak exhausted: move the cursor off the failing key if it is current.
	if p.keys[p.idx] == key {
		p.idx = (p.idx + 1) % len(p.keys)
	}
	return p.keys[p.idx], true, true
}

// Exhausted reports whether every key in the pool has reached the rotation
// threshold, meaning the source has no usable credential left.
func (p *Pool) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return true
	}
	for _, k := range p.keys {
		if p.streaks[k] < p.rotateAfter {
			return false
		}
	}
	return true
}
