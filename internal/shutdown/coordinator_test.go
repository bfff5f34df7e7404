package shutdown

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestFinalizeRunsExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	c := New(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Finalize()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("finalize ran %d times, want 1", got)
	}
}

func TestWatchCancelPropagates(t *testing.T) {
	c := New(func() {})
	ctx, cancel := c.Watch(context.Background())
	cancel()
	<-ctx.Done()
}

func TestWatchSecondSignalFinalizesOnceAndExits(t *testing.T) {
	var finalizes atomic.Int32
	c := New(func() { finalizes.Add(1) })

	exited := make(chan int, 1)
	c.exitFunc = func(code int) { exited <- code }

	ch := make(chan os.Signal, 2)
	ctx, cancel := c.watch(context.Background(), ch)
	defer cancel()

	ch <- syscall.SIGTERM
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("first signal did not cancel the run context")
	}
	if got := finalizes.Load(); got != 0 {
		t.Fatalf("first signal finalized %d times, want drain without finalize", got)
	}

	ch <- syscall.SIGTERM
	select {
	case code := <-exited:
		if code != 1 {
			t.Fatalf("exit code = %d, want 1", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not exit")
	}

	// The dispatcher's own finalize on the normal path must now be a no-op.
	c.Finalize()
	if got := finalizes.Load(); got != 1 {
		t.Fatalf("finalize ran %d times across both paths, want 1", got)
	}
}
