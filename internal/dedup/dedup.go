// Package dedup provides the deduplicating writer that sits between
// ingestion and the record store. Identity is the exact (name, state)
// pair after normalization; no fuzzy matching is attempted.
package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/store"
)

// Outcome reports what happened to an admitted candidate.
type Outcome int

const (
	Inserted Outcome = iota
	SkippedDuplicate
)

// Writer admits candidates into the store, skipping identity duplicates.
type Writer struct {
	store store.Store

	inserted int
	skipped  int
}

// NewWriter creates a deduplicating writer over a store.
func NewWriter(st store.Store) *Writer {
	return &Writer{store: st}
}

// Admit inserts the candidate unless a record with the same identity key
// already exists. Re-admitting the same candidate is idempotent: the first
// call inserts, every later call skips. Existing records are never updated.
func (w *Writer) Admit(ctx context.Context, cand model.LeadCandidate) (Outcome, error) {
	if cand.Name == "" {
		return SkippedDuplicate, eris.New("dedup: candidate has no name")
	}

	rec := model.NewLeadRecord(cand)
	_, err := w.store.Insert(ctx, &rec)
	if eris.Is(err, store.ErrDuplicate) {
		w.skipped++
		zap.L().Debug("dedup: skipped duplicate",
			zap.String("name", cand.Name),
			zap.String("state", cand.State),
		)
		return SkippedDuplicate, nil
	}
	if err != nil {
		return SkippedDuplicate, eris.Wrapf(err, "dedup: admit %q", cand.Name)
	}

	w.inserted++
	return Inserted, nil
}

// Counts returns how many candidates were inserted and skipped so far.
func (w *Writer) Counts() (inserted, skipped int) {
	return w.inserted, w.skipped
}
