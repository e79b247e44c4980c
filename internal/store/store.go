// Package store persists lead records. Two implementations exist: SQLite
// for single-machine runs and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// ErrDuplicate is returned by Insert when a record with the same identity
// key (name, state) already exists.
var ErrDuplicate = eris.New("store: duplicate lead identity")

// ListFilter specifies criteria for listing leads.
type ListFilter struct {
	State     string  `json:"state,omitempty"`
	Source    string  `json:"source,omitempty"`
	Qualified *bool   `json:"qualified,omitempty"`
	MinScore  float64 `json:"min_score,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Offset    int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Ingestion
	Insert(ctx context.Context, rec *model.LeadRecord) (int64, error)
	FindByIdentity(ctx context.Context, name, state string) (*model.LeadRecord, error)

	// Enrichment
	ListPendingEnrichment(ctx context.Context, country string, limit int) ([]model.LeadRecord, error)
	UpdateEnrichment(ctx context.Context, rec *model.LeadRecord) error
	MarkPending(ctx context.Context, ids []int64) error

	// Reporting
	List(ctx context.Context, filter ListFilter) ([]model.LeadRecord, error)
	ListQualified(ctx context.Context, minScore float64, limit int) ([]model.LeadRecord, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
