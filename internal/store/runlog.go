package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// RunLog records per-run summaries in a local sqlite database so operators
// can review enrichment history without trawling logs.
type RunLog struct {
	db *sql.DB
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Candidates int
	Skipped    int
	Found      int
	NotFound   int
	Failed     int
}

const runLogSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	candidates  INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	found       INTEGER NOT NULL,
	not_found   INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// OpenRunLog opens (creating if needed) the run history database.
func OpenRunLog(path string) (*RunLog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(runLogSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "runlog: apply schema")
	}
	return &RunLog{db: db}, nil
}

// Append writes one run summary and returns its id.
func (l *RunLog) Append(ctx context.Context, sum model.RunSummary, finishedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, candidates, skipped, found, not_found, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sum.StartedAt, finishedAt, sum.Candidates, sum.Skipped, sum.Found, sum.NotFound, sum.Failed,
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: insert run")
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, candidates, skipped, found, not_found, failed
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: query runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Candidates, &r.Skipped, &r.Found, &r.NotFound, &r.Failed); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "runlog: iterate runs")
}

// Close releases the database handle.
func (l *RunLog) Close() error {
	return l.db.Close()
}
