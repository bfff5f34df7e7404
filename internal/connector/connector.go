// Package connector defines the contract every external data source must
// implement, plus the failure taxonomy the dispatcher reacts to. The
// page-specific extraction logic lives behind the LookupFunc boundary;
// this package owns everything orchestration-facing: pacing, credential
// consultation, block detection, and error classification.
package connector

import (
	"context"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Connector performs one lookup for one entity against one external source.
//
// Instances are disposable: the dispatcher creates one per batch (bound to a
// pinned credential where the source supports several) and never shares an
// instance across goroutines, so implementations need no internal locking
// around per-lookup state. Heavyweight session resources must be released by
// Close on every exit path of a batch.
type Connector interface {
	// Name is the stable identifier used for result attribution and routing.
	Name() string

	// RateLimit is the minimum spacing the dispatcher enforces between
	// successive calls on this instance.
	RateLimit() time.Duration

	// Lookup resolves one entity. On success it returns a Result with status
	// Found or NotFound. Failures are reported through the error taxonomy in
	// errors.go: RetryableError, CredentialError, BlockedError, TerminalError.
	Lookup(ctx context.Context, entity model.Entity) (model.Result, error)

	// Close releases any session resources held by this instance.
	Close() error
}

// Factory builds fresh connector instances for a source. pinnedKey is the
// credential assigned to the instance for its batch; empty when the source
// has no credentials.
type Factory func(pinnedKey string) Connector
