package breaker

import (
	"sync"
	"testing"
	"time"
)

func TestBreaker_StartsUnblocked(t *testing.T) {
	b := New(10*time.Minute, 30*time.Second)
	if b.IsBlocked() {
		t.Error("new breaker should not be blocked")
	}
	if b.Remaining() != 0 {
		t.Errorf("expected zero remaining, got %s", b.Remaining())
	}
}

func TestBreaker_TripBlocks(t *testing.T) {
	b := New(10*time.Minute, 30*time.Second)

	if !b.Trip() {
		t.Fatal("first trip should take effect")
	}
	if !b.IsBlocked() {
		t.Error("expected blocked after trip")
	}
	if b.Remaining() <= 0 {
		t.Error("expected positive cooldown remaining")
	}
}

func TestBreaker_CooldownAutoClears(t *testing.T) {
	now := time.Now()
	b := New(10*time.Minute, 30*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.Trip()
	if !b.IsBlocked() {
		t.Fatal("expected blocked")
	}

	b.nowFunc = func() time.Time { return now.Add(10 * time.Minute) }
	if b.IsBlocked() {
		t.Error("expected auto-clear after cooldown")
	}
	// Cleared for good, not just for this call.
	b.nowFunc = func() time.Time { return now.Add(10*time.Minute + time.Second) }
	if b.IsBlocked() {
		t.Error("expected breaker to stay cleared")
	}
}

func TestBreaker_TripDebounce(t *testing.T) {
	now := time.Now()
	b := New(10*time.Minute, 30*time.Second)
	b.nowFunc = func() time.Time { return now }

	if !b.Trip() {
		t.Fatal("first trip should take effect")
	}
	firstRemaining := b.Remaining()

	// A second trip inside the debounce window must not reset the clock.
	b.nowFunc = func() time.Time { return now.Add(10 * time.Second) }
	if b.Trip() {
		t.Error("trip within debounce window should be a no-op")
	}
	if got := b.Remaining(); got != firstRemaining-10*time.Second {
		t.Errorf("cooldown was extended: remaining %s, want %s", got, firstRemaining-10*time.Second)
	}

	// Outside the debounce window a trip refreshes blockedAt.
	b.nowFunc = func() time.Time { return now.Add(time.Minute) }
	if !b.Trip() {
		t.Error("trip outside debounce window should take effect")
	}
	if got := b.Remaining(); got != 10*time.Minute {
		t.Errorf("expected full cooldown after refresh, got %s", got)
	}
}

func TestBreaker_ConcurrentTrips(t *testing.T) {
	t.Parallel()
	b := New(10*time.Minute, 30*time.Second)

	var wg sync.WaitGroup
	tripped := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tripped <- b.Trip()
		}()
	}
	wg.Wait()
	close(tripped)

	count := 0
	for took := range tripped {
		if took {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one effective trip, got %d", count)
	}
}

func TestSourceBreakers_GetOrCreate(t *testing.T) {
	sb := NewSourceBreakers(10*time.Minute, 30*time.Second)

	b1 := sb.Get("kontur")
	b2 := sb.Get("kontur")
	b3 := sb.Get("checko")

	if b1 != b2 {
		t.Error("expected same breaker for same source")
	}
	if b1 == b3 {
		t.Error("expected different breakers for different sources")
	}
}

func TestSourceBreakers_Blocked(t *testing.T) {
	sb := NewSourceBreakers(10*time.Minute, 30*time.Second)

	sb.Get("kontur").Trip()
	_ = sb.Get("checko")

	blocked := sb.Blocked()
	if len(blocked) != 1 || blocked[0] != "kontur" {
		t.Errorf("expected [kontur], got %v", blocked)
	}
}
