package connector

import (
	"errors"
	"fmt"
)

// RetryableError marks a one-off lookup failure (timeout, transient HTTP
// error, bad page load). The dispatcher may retry the entity a bounded
// number of times; the outcome is never cached as a completion.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// CredentialError marks an authorization or quota rejection on a single key.
// It triggers credential rotation; the source keeps running unless every key
// is exhausted.
type CredentialError struct {
	Key string
	Err error
}

func (e *CredentialError) Error() string { return fmt.Sprintf("credential rejected: %v", e.Err) }
func (e *CredentialError) Unwrap() error { return e.Err }

// BlockedError marks a source-wide block (anti-bot lockout). The connector
// that detects it trips the source's breaker before returning this.
type BlockedError struct {
	Err error
}

func (e *BlockedError) Error() string { return fmt.Sprintf("source blocked: %v", e.Err) }
func (e *BlockedError) Unwrap() error { return e.Err }

// TerminalError signals source-wide exhaustion for the remainder of the run
// (e.g. daily quota hit across all credentials). The dispatcher stops
// issuing work to the source and flushes immediately; other sources are
// unaffected.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return fmt.Sprintf("source exhausted: %v", e.Err) }
func (e *TerminalError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried or requeued.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsCredential extracts a CredentialError from err's chain.
func IsCredential(err error) (*CredentialError, bool) {
	var ce *CredentialError
	ok := errors.As(err, &ce)
	return ce, ok
}

// IsBlocked reports whether err carries a source-wide block.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsTerminal reports whether err halts the source for the rest of the run.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
