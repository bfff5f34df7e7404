// Package model defines the core types shared across the enrichment pipeline.
package model

import "strings"

// Entity is one business entity to enrich, identified by its national tax ID.
// The ID is kept in canonical string form: spreadsheet ingestion must not
// coerce it to a number, or leading zeros are lost.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CanonicalID normalizes a raw tax ID cell value. Leading zeros are preserved;
// only surrounding whitespace is stripped.
func CanonicalID(raw string) string {
	return strings.TrimSpace(raw)
}

// ResultStatus classifies the outcome of a single lookup.
type ResultStatus string

const (
	// StatusFound means the source returned chairman data.
	StatusFound ResultStatus = "found"
	// StatusNotFound is a terminal outcome: the source answered and the
	// entity is not listed. Cached, never retried on resume.
	StatusNotFound ResultStatus = "not_found"
	// StatusUnresolved marks a retryable failure. Never persisted as a
	// completion, so a later run retries the entity.
	StatusUnresolved ResultStatus = "unresolved"
)

// Result is the enrichment outcome for one entity from one source.
type Result struct {
	EntityID     string       `json:"entity_id"`
	EntityName   string       `json:"entity_name,omitempty"`
	ChairmanName string       `json:"chairman_name,omitempty"`
	ChairmanID   string       `json:"chairman_id,omitempty"`
	Source       string       `json:"source"`
	Status       ResultStatus `json:"status"`
}

// Completed reports whether this result should mark the entity as done.
// Unresolved results accumulate in counters but never suppress a retry.
func (r Result) Completed() bool {
	return r.Status == StatusFound || r.Status == StatusNotFound
}
