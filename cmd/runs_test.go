package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

func TestFormatRuns(t *testing.T) {
	started := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	runs := []store.RunRecord{{
		ID:         "3f2c1a90-0000-0000-0000-000000000000",
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Minute),
		Candidates: 500,
		Skipped:    120,
		Found:      300,
		NotFound:   60,
		Failed:     20,
	}}

	var buf bytes.Buffer
	formatRuns(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "3f2c1a90")
	assert.NotContains(t, out, "3f2c1a90-0000", "ids are truncated for display")
	assert.Contains(t, out, "2026-08-01 09:30")
	assert.Contains(t, out, "12m0s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestPrintSummaryHaltedSources(t *testing.T) {
	sum := model.RunSummary{
		PerSource: map[string]model.SourceCounts{
			"beta":  {Halted: true},
			"alpha": {Halted: true},
		},
	}
	assert.Equal(t, []string{"alpha", "beta"}, sum.HaltedSources())
}
