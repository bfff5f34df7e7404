// Package dispatcher drives an enrichment run: it filters already-completed
// entities, partitions the remainder across sources and credentials, and
// executes lookups under bounded parallelism with durable checkpoints
// between batches.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/enrich-cli/internal/connector"
	"github.com/sells-group/enrich-cli/internal/input"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// State tracks the dispatcher through its run lifecycle.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateDistributing
	StateRunning
	StateDraining
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDistributing:
		return "distributing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Options configures a Dispatcher.
type Options struct {
	// Workers bounds the number of assignments executed concurrently.
	Workers int
	// BatchSize is the number of entities a connector processes between
	// durable checkpoints.
	BatchSize int
}

// Dispatcher runs one enrichment pass. It is single-use: create a new one
// per run.
type Dispatcher struct {
	opts  Options
	reg   *connector.Registry
	store *store.RecordStore
	log   *zap.Logger

	state atomic.Int32

	mu      sync.Mutex
	summary model.RunSummary
	halted  map[string]bool
}

// New creates a Dispatcher over the given registry and store.
func New(opts Options, reg *connector.Registry, st *store.RecordStore) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Dispatcher{
		opts:   opts,
		reg:    reg,
		store:  st,
		log:    zap.L().With(zap.String("component", "dispatcher")),
		halted: make(map[string]bool),
	}
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Run executes one enrichment pass over rows. It returns a summary of the
// run even when the context is cancelled mid-flight; cancellation drains
// in-flight lookups to the next safe point rather than failing the run.
func (d *Dispatcher) Run(ctx context.Context, rows []input.Row) (model.RunSummary, error) {
	started := time.Now()
	d.mu.Lock()
	d.summary = model.RunSummary{
		StartedAt: started,
		PerSource: make(map[string]model.SourceCounts),
	}
	d.mu.Unlock()

	if len(rows) == 0 {
		return d.finish(started), eris.New("dispatcher: no input rows")
	}

	d.state.Store(int32(StateLoading))
	candidates := d.filter(rows)

	sources := d.reg.Usable()
	if len(sources) == 0 {
		return d.finish(started), eris.New("dispatcher: no usable sources")
	}

	if len(candidates) == 0 {
		d.log.Info("nothing to do, all rows already resolved")
		return d.finish(started), nil
	}

	d.state.Store(int32(StateDistributing))
	assignments := Partition(candidates, sources)
	d.log.Info("run starting",
		zap.Int("candidates", len(candidates)),
		zap.Int("assignments", len(assignments)),
		zap.Int("sources", len(sources)),
		zap.Int("workers", d.opts.Workers),
	)

	d.state.Store(int32(StateRunning))
	g := &errgroup.Group{}
	g.SetLimit(d.opts.Workers)
	for _, a := range assignments {
		a := a
		g.Go(func() error {
			d.runAssignment(ctx, a)
			return nil
		})
	}
	g.Wait()

	d.state.Store(int32(StateDraining))
	if err := d.store.Flush(true); err != nil {
		d.log.Error("final batch flush failed", zap.Error(err))
	}

	sum := d.finish(started)
	d.log.Info("run finished",
		zap.Int("attempted", sum.Attempted()),
		zap.Int("found", sum.Found),
		zap.Int("not_found", sum.NotFound),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Strings("halted_sources", sum.HaltedSources()),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// filter splits input rows into dispatchable candidates, marking rows that
// already carry an answer or are recorded as complete.
func (d *Dispatcher) filter(rows []input.Row) []model.Entity {
	var candidates []model.Entity
	skipped := 0
	for _, row := range rows {
		switch {
		case row.PreCompleted():
			d.store.MarkCompleted(row.Entity.ID)
			skipped++
		case d.store.IsComplete(row.Entity.ID):
			skipped++
		default:
			candidates = append(candidates, row.Entity)
		}
	}

	d.mu.Lock()
	d.summary.Candidates = len(rows)
	d.summary.Skipped = skipped
	d.mu.Unlock()
	return candidates
}

// runAssignment processes one assignment's entities in batches, checkpointing
// the store after each batch. Lookups within a batch are sequential so the
// connector's rate limiter shapes the request stream.
func (d *Dispatcher) runAssignment(ctx context.Context, a Assignment) {
	conn := a.Source.New(a.PinnedKey)
	defer conn.Close()

	log := d.log.With(zap.String("source", a.Source.Name))

	for _, batch := range chunk(a.Entities, d.opts.BatchSize) {
		for _, entity := range batch {
			if ctx.Err() != nil {
				log.Warn("run cancelled, abandoning remaining entities",
					zap.Int("remaining", len(a.Entities)))
				return
			}
			if d.isHalted(a.Source.Name) {
				d.countFailed(a.Source.Name, 1)
				continue
			}

			result, err := conn.Lookup(ctx, entity)
			switch {
			case err == nil:
				d.store.Record(result)
				d.countResult(a.Source.Name, result)
			case connector.IsTerminal(err):
				log.Error("source exhausted, halting", zap.Error(err))
				d.halt(a.Source.Name)
				d.countFailed(a.Source.Name, 1)
			default:
				log.Warn("lookup unresolved",
					zap.String("entity_id", entity.ID),
					zap.Error(err),
				)
				d.countFailed(a.Source.Name, 1)
			}

			// Mid-batch checkpoint once enough results or time accumulate,
			// so a slow rate-limited batch is not a durability gap.
			if d.store.ShouldFlush(false) {
				if err := d.store.Flush(true); err != nil {
					log.Error("checkpoint flush failed, delta retained", zap.Error(err))
				}
			}
		}

		if err := d.store.Flush(true); err != nil {
			log.Error("batch flush failed, delta retained", zap.Error(err))
		}
	}
}

func (d *Dispatcher) isHalted(source string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.halted[source]
}

func (d *Dispatcher) halt(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted[source] = true
	sc := d.summary.PerSource[source]
	sc.Halted = true
	d.summary.PerSource[source] = sc
}

func (d *Dispatcher) countResult(source string, r model.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.summary.PerSource[source]
	switch r.Status {
	case model.StatusFound:
		d.summary.Found++
		sc.Found++
	case model.StatusNotFound:
		d.summary.NotFound++
		sc.NotFound++
	default:
		d.summary.Failed++
		sc.Failed++
	}
	d.summary.PerSource[source] = sc
}

func (d *Dispatcher) countFailed(source string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.summary.PerSource[source]
	sc.Failed += n
	d.summary.Failed += n
	d.summary.PerSource[source] = sc
}

func (d *Dispatcher) finish(started time.Time) model.RunSummary {
	d.state.Store(int32(StateFinalized))
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summary.Elapsed = time.Since(started)
	return d.summary
}
