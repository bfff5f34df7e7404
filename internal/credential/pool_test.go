package credential

import (
	"sync"
	"testing"
)

func TestPool_Empty(t *testing.T) {
	p := NewPool("kontur", nil, 3)

	if _, ok := p.Current(); ok {
		t.Error("expected no current key for empty pool")
	}
	if _, ok := p.Rotate(); ok {
		t.Error("expected no key after rotate on empty pool")
	}
	if !p.Exhausted() {
		t.Error("empty pool should report exhausted")
	}
}

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool("kontur", []string{"k1", "k2", "k3"}, 3)

	key, ok := p.Current()
	if !ok || key != "k1" {
		t.Fatalf("expected k1, got %q (ok=%v)", key, ok)
	}

	want := []string{"k2", "k3", "k1"}
	for _, w := range want {
		key, ok = p.Rotate()
		if !ok || key != w {
			t.Errorf("expected %q, got %q", w, key)
		}
	}
}

func TestPool_FailOver_BelowThreshold_KeepsKey(t *testing.T) {
	p := NewPool("kontur", []string{"k1", "k2"}, 3)

	// Two failures are below the threshold of 3: stay on k1.
	for i := 0; i < 2; i++ {
		next, rotated, ok := p.FailOver("k1")
		if !ok {
			t.Fatal("expected ok")
		}
		if rotated {
			t.Error("should not rotate below threshold")
		}
		if next != "k1" {
			t.Errorf("expected k1, got %q", next)
		}
	}
}

func TestPool_FailOver_AtThreshold_Rotates(t *testing.T) {
	p := NewPool("kontur", []string{"k1", "k2"}, 3)

	var next string
	var rotated bool
	for i := 0; i < 3; i++ {
		next, rotated, _ = p.FailOver("k1")
	}
	if !rotated {
		t.Error("expected rotation at threshold")
	}
	if next != "k2" {
		t.Errorf("expected k2 after failover, got %q", next)
	}
}

func TestPool_MarkSuccess_ResetsStreak(t *testing.T) {
	p := NewPool("kontur", []string{"k1", "k2"}, 3)

	p.MarkFailure("k1")
	p.MarkFailure("k1")
	if p.Streak("k1") != 2 {
		t.Fatalf("expected streak 2, got %d", p.Streak("k1"))
	}

	p.MarkSuccess("k1")
	if p.Streak("k1") != 0 {
		t.Errorf("expected streak reset, got %d", p.Streak("k1"))
	}
}

func TestPool_Exhausted(t *testing.T) {
	p := NewPool("kontur", []string{"k1", "k2"}, 2)

	if p.Exhausted() {
		t.Fatal("fresh pool should not be exhausted")
	}

	for _, k := range []string{"k1", "k2"} {
		p.MarkFailure(k)
		p.MarkFailure(k)
	}
	if !p.Exhausted() {
		t.Error("expected exhausted after all keys hit threshold")
	}

	// A success on any key revives the pool.
	p.MarkSuccess("k2")
	if p.Exhausted() {
		t.Error("pool should not be exhausted after a success")
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	p := NewPool("kontur", []string{"k1", "k2", "k3"}, 3)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, _ := p.Current()
			if i%3 == 0 {
				p.MarkFailure(key)
			} else {
				p.MarkSuccess(key)
			}
			_, _ = p.Rotate()
		}()
	}
	wg.Wait()
	// Just verifying no race/panic.
}
