// Package ingest pulls lead candidates from upstream organic registries.
// BulkSource streams the full federal registry export, PagedSource walks
// its paginated search API, and CDPHSource reads the California state
// processor workbook.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// ErrEnd signals normal cursor exhaustion.
var ErrEnd = eris.New("ingest: end of source")

// Cursor yields candidates one at a time. Implementations are lazy: no
// network traffic happens before the first Next call. After ErrEnd every
// later call returns ErrEnd again.
type Cursor interface {
	Next(ctx context.Context) (model.LeadCandidate, error)
}

// Filter restricts which candidates a cursor yields.
type Filter struct {
	// States limits candidates to these two-letter codes. Empty = all.
	States []string
	// MaxLeads caps how many candidates the cursor yields. Zero = unlimited.
	MaxLeads int
}

// stateSet builds the uppercase lookup set for the filter, or nil when the
// filter is open.
func (f Filter) stateSet() map[string]bool {
	if len(f.States) == 0 {
		return nil
	}
	set := make(map[string]bool, len(f.States))
	for _, s := range f.States {
		set[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return set
}

// admits reports whether a candidate passes the state filter.
func admits(states map[string]bool, cand model.LeadCandidate) bool {
	if states == nil {
		return true
	}
	return states[strings.ToUpper(cand.State)]
}

// joinNonEmpty joins the non-empty parts with the separator.
func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
