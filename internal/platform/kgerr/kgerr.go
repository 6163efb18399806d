package kgerr

import (
	"errors"
	"fmt"
)

// Resolver errors.
var (
	// ErrUnknownNamespace marks a lookup against a namespace that was never registered.
	ErrUnknownNamespace = errors.New("unknown namespace")
	// ErrIdentifierNotFound marks a namespace/external-id pair with no alias.
	ErrIdentifierNotFound = errors.New("identifier not found")
	// ErrAmbiguousMapping marks an alias registration that conflicts with an
	// existing mapping to a different canonical id. The caller must merge the
	// nodes explicitly before re-registering.
	ErrAmbiguousMapping = errors.New("ambiguous mapping")
)

// Store errors.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrStoreCorrupt is the only fatal category: an invariant broke at merge
	// time (for example one canonical id claimed with two node types).
	// Ingestion halts for manual review instead of accepting bad data.
	ErrStoreCorrupt = errors.New("graph store corrupt")
)

// Traversal errors. Both are recoverable; the caller offers another action.
var (
	ErrMaxDepthExceeded = errors.New("max depth exceeded")
	ErrCycleRejected    = errors.New("cycle rejected")
	ErrSessionNotFound  = errors.New("session not found")
)

// Rationale errors.
var (
	// ErrCitationViolation means generated text cited an identifier outside the
	// evidence set it was given. It is always recovered locally (retry, then
	// fallback) and never surfaced to a caller as narrative text.
	ErrCitationViolation = errors.New("rationale citation violation")
)

// Ingestion errors.
var (
	// ErrSourceIngestFailure wraps a per-row failure; the row is skipped and
	// counted, the batch continues.
	ErrSourceIngestFailure = errors.New("source ingest failure")
)

// RowError ties a skipped ingestion row to its position and cause.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, ErrSourceIngestFailure, e.Reason)
}

func (e *RowError) Unwrap() error { return ErrSourceIngestFailure }
