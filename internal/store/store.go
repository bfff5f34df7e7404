// Package store persists enrichment outcomes across runs. The snapshot cache
// is the single source of truth; the CSV export is a human-facing view
// reconciled against it. No other component writes either file.
package store

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Snapshot is the on-disk cache format.
type Snapshot struct {
	CompletedIDs []string       `json:"completed_ids"`
	Results      []model.Result `json:"results"`
}

// Options configures a RecordStore.
type Options struct {
	CachePath  string
	ExportPath string

	// FlushInterval is the pending-result count that triggers a flush.
	FlushInterval int
	// FlushEvery is the wall-clock span after which a flush is due even if
	// the interval threshold is not reached.
	FlushEvery time.Duration
}

// RecordStore accumulates enrichment results in memory and merges them into
// a durable snapshot at flush points. Safe for concurrent Record calls; Flush
// holds the store lock for the whole merge+write so concurrent merges cannot
// interleave.
type RecordStore struct {
	mu   sync.Mutex
	opts Options
	log  *zap.Logger

	completed map[string]struct{}
	results   map[string]model.Result

	// pending holds every result produced this run. It is merged into the
	// snapshot on each flush but deliberately not cleared until the process
	// ends: a crash between flushes re-derives a consistent snapshot from
	// the last good write plus whatever is still here.
	pending map[string]model.Result
	// sinceFlush counts results recorded since the last successful flush.
	sinceFlush int

	lastFlush time.Time
	nowFunc   func() time.Time
}

// New creates a RecordStore. Call Load before dispatching work.
func New(opts Options) *RecordStore {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 50
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 5 * time.Minute
	}
	s := &RecordStore{
		opts:      opts,
		log:       zap.L().With(zap.String("component", "store")),
		completed: make(map[string]struct{}),
		results:   make(map[string]model.Result),
		pending:   make(map[string]model.Result),
		nowFunc:   time.Now,
	}
	s.lastFlush = s.nowFunc()
	return s
}

// Load reads the snapshot cache and the previously exported result set,
// reconciling by entity id with the cache taking precedence. Corrupt or
// missing files degrade to an empty store; load never fails the run.
func (s *RecordStore) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, err := readSnapshot(s.opts.CachePath); err != nil {
		s.log.Warn("cache unreadable, starting empty",
			zap.String("path", s.opts.CachePath),
			zap.Error(err),
		)
	} else if snap != nil {
		for _, id := range snap.CompletedIDs {
			s.completed[model.CanonicalID(id)] = struct{}{}
		}
		for _, r := range snap.Results {
			r.EntityID = model.CanonicalID(r.EntityID)
			s.results[r.EntityID] = r
			s.completed[r.EntityID] = struct{}{}
		}
	}

	// Export rows with a chairman answer count as completed; the cache wins
	// on conflicting ids so a resumed run trusts its own snapshot first.
	rows, err := readExport(s.opts.ExportPath)
	if err != nil {
		s.log.Warn("export unreadable, ignoring",
			zap.String("path", s.opts.ExportPath),
			zap.Error(err),
		)
	}
	for _, r := range rows {
		if r.ChairmanName == "" {
			continue
		}
		if _, exists := s.results[r.EntityID]; exists {
			continue
		}
		r.Status = model.StatusFound
		s.results[r.EntityID] = r
		s.completed[r.EntityID] = struct{}{}
	}

	s.log.Info("store loaded",
		zap.Int("completed", len(s.completed)),
		zap.Int("results", len(s.results)),
	)
}

// PendingCount returns the number of results recorded since the last flush.
func (s *RecordStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinceFlush
}

// Record appends a completed result to the pending delta, last-write-wins on
// duplicate entity id. It never decides to flush; that is the dispatcher's
// call via ShouldFlush.
func (s *RecordStore) Record(r model.Result) {
	if !r.Completed() {
		// Unresolved outcomes must not suppress retries on resume.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.EntityID = model.CanonicalID(r.EntityID)
	s.pending[r.EntityID] = r
	s.sinceFlush++
}

// MarkCompleted registers an entity as done without a stored result, e.g.
// when the input row already carried the answer.
func (s *RecordStore) MarkCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[model.CanonicalID(id)] = struct{}{}
}

// IsComplete reports whether the entity needs no further lookups.
func (s *RecordStore) IsComplete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[model.CanonicalID(id)]
	return ok
}

// ShouldFlush reports whether a flush is due: forced, enough pending
// results, or enough time since the last flush.
func (s *RecordStore) ShouldFlush(force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if force {
		return true
	}
	if s.sinceFlush >= s.opts.FlushInterval {
		return true
	}
	return s.sinceFlush > 0 && s.nowFunc().Sub(s.lastFlush) > s.opts.FlushEvery
}

// Flush merges the pending delta into the snapshot and writes the cache
// atomically, backing up the previous file first. With export set it also
// reconciles and rewrites the CSV export view. A write failure skips that
// file and leaves the delta counted so the next trigger retries; flushing
// twice with no new deltas rewrites identical content.
func (s *RecordStore) Flush(export bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.pending {
		s.results[id] = r
		s.completed[id] = struct{}{}
	}

	snap := s.snapshotLocked()
	if err := writeSnapshot(s.opts.CachePath, snap); err != nil {
		s.log.Error("cache write failed, keeping delta in memory", zap.Error(err))
		return eris.Wrap(err, "store: write cache")
	}
	s.sinceFlush = 0
	s.lastFlush = s.nowFunc()

	if export {
		if err := writeExport(s.opts.ExportPath, snap.Results); err != nil {
			s.log.Error("export write failed", zap.Error(err))
			return eris.Wrap(err, "store: write export")
		}
	}

	s.log.Debug("flushed",
		zap.Int("completed", len(snap.CompletedIDs)),
		zap.Int("results", len(snap.Results)),
		zap.Bool("export", export),
	)
	return nil
}

// Results returns a copy of all merged and pending results, for reporting.
func (s *RecordStore) Results() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]model.Result, len(s.results)+len(s.pending))
	for id, r := range s.results {
		merged[id] = r
	}
	for id, r := range s.pending {
		merged[id] = r
	}
	out := make([]model.Result, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// snapshotLocked builds the serializable snapshot. Caller holds s.mu.
func (s *RecordStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		CompletedIDs: make([]string, 0, len(s.completed)),
		Results:      make([]model.Result, 0, len(s.results)),
	}
	for id := range s.completed {
		snap.CompletedIDs = append(snap.CompletedIDs, id)
	}
	sort.Strings(snap.CompletedIDs)
	for _, id := range snap.CompletedIDs {
		if r, ok := s.results[id]; ok {
			snap.Results = append(snap.Results, r)
		}
	}
	return snap
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: read snapshot")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "store: decode snapshot")
	}
	return &snap, nil
}

// writeSnapshot backs up the previous cache, writes to a temp file, and
// renames it into place so a crash mid-write never destroys the last good
// state.
func writeSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: encode snapshot")
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
			zap.L().Warn("store: backup write failed", zap.Error(err))
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "store: write temp snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "store: rename snapshot")
	}
	return nil
}
