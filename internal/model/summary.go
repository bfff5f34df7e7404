package model

import (
	"sort"
	"time"
)

// SourceCounts breaks a run down per connector.
type SourceCounts struct {
	Found    int  `json:"found"`
	NotFound int  `json:"not_found"`
	Failed   int  `json:"failed"`
	Halted   bool `json:"halted,omitempty"`
}

// RunSummary aggregates the outcome of one dispatcher run.
type RunSummary struct {
	Candidates int                     `json:"candidates"`
	Skipped    int                     `json:"skipped"`
	Found      int                     `json:"found"`
	NotFound   int                     `json:"not_found"`
	Failed     int                     `json:"failed"`
	PerSource  map[string]SourceCounts `json:"per_source,omitempty"`
	Elapsed    time.Duration           `json:"elapsed"`
	StartedAt  time.Time               `json:"started_at"`
}

// Attempted returns the number of entities actually dispatched.
func (s RunSummary) Attempted() int {
	return s.Candidates - s.Skipped
}

// HaltedSources lists sources stopped by a terminal failure, sorted by name.
func (s RunSummary) HaltedSources() []string {
	var halted []string
	for name, sc := range s.PerSource {
		if sc.Halted {
			halted = append(halted, name)
		}
	}
	sort.Strings(halted)
	return halted
}
