// Package shutdown funnels every exit path through a single finalizer so the
// final flush happens exactly once, whether the run completes, errors out, or
// is interrupted.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Coordinator guards a finalize function with sync.Once. All exit paths call
// Finalize; only the first invocation runs the function.
type Coordinator struct {
	log      *zap.Logger
	once     sync.Once
	finalize func()
	exitFunc func(int)
}

// New creates a Coordinator around finalize.
func New(finalize func()) *Coordinator {
	return &Coordinator{
		log:      zap.L().With(zap.String("component", "shutdown")),
		finalize: finalize,
		exitFunc: os.Exit,
	}
}

// Finalize runs the finalizer if it has not run yet. Safe to call from any
// goroutine and any number of times.
func (c *Coordinator) Finalize() {
	c.once.Do(c.finalize)
}

// Watch returns a child context cancelled on the first SIGINT or SIGTERM,
// letting in-flight work drain to the next safe point. A second signal
// finalizes and exits immediately.
func (c *Coordinator) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return c.watch(parent, ch)
}

func (c *Coordinator) watch(parent context.Context, ch chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			c.log.Warn("signal received, draining in-flight work", zap.String("signal", sig.String()))
			cancel()
			<-ch
			c.log.Warn("second signal, exiting immediately")
			c.Finalize()
			c.exitFunc(1)
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
