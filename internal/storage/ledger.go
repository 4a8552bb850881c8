package storage

import (
	"context"

	"lemoncrawl/internal/domain"
)

// Ledger records the outcome of every attempt at a work item.
// It is observational: whether an item is skipped is decided by its output file,
// the ledger only remembers what happened on each run.
type Ledger interface {
	// RecordAttempt stores attempt as the latest state of its item and increments
	// the item's attempt counter. It returns the stored entry.
	Recorder

	// Get returns the latest entry for one item.
	Get(ctx context.Context, kind domain.ItemKind, id string) (domain.ItemAttempt, bool, error)

	// List returns all entries of kind, or of every kind when kind is empty,
	// most recently updated first.
	List(ctx context.Context, kind domain.ItemKind) ([]domain.ItemAttempt, error)

	// Close gracefully shuts down the ledger.
	Close() error
}

// Recorder is the write side of a Ledger, which is all the pipelines need.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt domain.ItemAttempt) (domain.ItemAttempt, error)
}

// NopRecorder drops every attempt. It backs one-off debugging commands.
type NopRecorder struct{}

func (NopRecorder) RecordAttempt(_ context.Context, attempt domain.ItemAttempt) (domain.ItemAttempt, error) {
	return attempt, nil
}
