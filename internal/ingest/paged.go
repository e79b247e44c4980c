package ingest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/requester"
	"github.com/harvestline/leadgen-cli/internal/resilience"
)

const maxConsecutiveFailures = 3

// PagedSource walks the registry's paginated search API. It is the
// fallback path when the bulk export is unavailable.
type PagedSource struct {
	req       *requester.Requester
	countURL  string
	searchURL string
	batchSize int
	filter    Filter

	started  bool
	done     bool
	total    int
	startIdx int
	yielded  int
	failures int
	buf      []model.LeadCandidate
}

// PagedOptions configures a PagedSource.
type PagedOptions struct {
	CountURL  string
	SearchURL string
	BatchSize int
	Filter    Filter
}

// NewPagedSource creates a cursor over the paginated search API.
func NewPagedSource(req *requester.Requester, opts PagedOptions) *PagedSource {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &PagedSource{
		req:       req,
		countURL:  opts.CountURL,
		searchURL: opts.SearchURL,
		batchSize: opts.BatchSize,
		filter:    opts.Filter,
	}
}

// searchPayload is the request body for both count and search endpoints.
// Empty countries means all; null dates mean no range restriction.
type searchPayload struct {
	Countries []string `json:"countries"`
	States    []string `json:"states"`
	FromDate  *string  `json:"fromDate"`
	ToDate    *string  `json:"toDate"`
	StartIdx  int      `json:"startIdx,omitempty"`
	Count     int      `json:"count,omitempty"`
}

// searchResponse is the search endpoint's envelope.
type searchResponse struct {
	Operations   []operation `json:"operations"`
	Success      *bool       `json:"success"`
	ErrorMessage string      `json:"errorMessage"`
}

// Next yields the next candidate, fetching pages on demand.
func (p *PagedSource) Next(ctx context.Context) (model.LeadCandidate, error) {
	if p.done {
		return model.LeadCandidate{}, ErrEnd
	}
	if !p.started {
		if err := p.start(ctx); err != nil {
			p.done = true
			return model.LeadCandidate{}, resilience.NewFatalIngestError(err, 0)
		}
	}

	for {
		if p.filter.MaxLeads > 0 && p.yielded >= p.filter.MaxLeads {
			p.done = true
			return model.LeadCandidate{}, ErrEnd
		}

		if len(p.buf) > 0 {
			cand := p.buf[0]
			p.buf = p.buf[1:]
			p.yielded++
			return cand, nil
		}

		more, err := p.fetchBatch(ctx)
		if err != nil {
			p.done = true
			return model.LeadCandidate{}, err
		}
		if !more && len(p.buf) == 0 {
			p.done = true
			return model.LeadCandidate{}, ErrEnd
		}
	}
}

// Reset makes the cursor restartable from the first page.
func (p *PagedSource) Reset() {
	p.started = false
	p.done = false
	p.total = 0
	p.startIdx = 0
	p.yielded = 0
	p.failures = 0
	p.buf = nil
}

func (p *PagedSource) start(ctx context.Context) error {
	total, err := p.fetchCount(ctx)
	if err != nil {
		// A failed count is not fatal: paginate until an empty page.
		zap.L().Warn("ingest: count unavailable, paginating until empty page",
			zap.Error(err),
		)
		total = 0
	}
	p.total = total
	if total > 0 {
		zap.L().Info("ingest: registry count", zap.Int("total", total))
	}
	p.started = true
	return nil
}

// fetchCount asks the count endpoint for the total matching records.
// The endpoint returns either a bare integer or {"count": n}.
func (p *PagedSource) fetchCount(ctx context.Context) (int, error) {
	payload, err := json.Marshal(searchPayload{
		Countries: []string{},
		States:    p.filter.States,
	})
	if err != nil {
		return 0, eris.Wrap(err, "ingest: marshal count payload")
	}

	body, status, err := p.req.PostJSON(ctx, p.countURL, payload)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, eris.Errorf("ingest: count endpoint returned %d", status)
	}

	var bare int
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	var wrapped struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return 0, eris.Wrap(err, "ingest: decode count response")
	}
	return wrapped.Count, nil
}

// fetchBatch pulls one page into the buffer. Returns false when the source
// is exhausted. Empty or failed pages count toward the consecutive-failure
// cutoff; a successful page resets it.
func (p *PagedSource) fetchBatch(ctx context.Context) (bool, error) {
	if p.total > 0 && p.startIdx >= p.total {
		return false, nil
	}

	batch, err := p.searchPage(ctx, p.startIdx)
	if err != nil || len(batch) == 0 {
		p.failures++
		if err != nil {
			zap.L().Warn("ingest: page fetch failed",
				zap.Int("start_idx", p.startIdx),
				zap.Int("consecutive_failures", p.failures),
				zap.Error(err),
			)
		}
		if p.failures >= maxConsecutiveFailures {
			if err != nil {
				return false, resilience.NewFatalIngestError(
					eris.Wrap(err, "ingest: too many consecutive page failures"), p.yielded)
			}
			return false, nil
		}
		if err == nil && p.total == 0 {
			// No count and an empty page: treat as exhaustion.
			return false, nil
		}
		return true, nil
	}
	p.failures = 0

	states := p.filter.stateSet()
	for _, op := range batch {
		cand, ok := op.candidate()
		if !ok || !admits(states, cand) {
			continue
		}
		p.buf = append(p.buf, cand)
	}

	p.startIdx += p.batchSize
	zap.L().Debug("ingest: fetched page",
		zap.Int("start_idx", p.startIdx),
		zap.Int("page_size", len(batch)),
	)

	// A short page is the final page.
	if len(batch) < p.batchSize {
		p.total = p.startIdx
		return len(p.buf) > 0, nil
	}
	return true, nil
}

func (p *PagedSource) searchPage(ctx context.Context, startIdx int) ([]operation, error) {
	payload, err := json.Marshal(searchPayload{
		Countries: []string{},
		States:    p.filter.States,
		StartIdx:  startIdx,
		Count:     p.batchSize,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: marshal search payload")
	}

	body, status, err := p.req.PostJSON(ctx, p.searchURL, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("ingest: search endpoint returned %d", status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// Some deployments return a bare array.
		var bare []operation
		if err2 := json.Unmarshal(body, &bare); err2 == nil {
			return bare, nil
		}
		return nil, eris.Wrap(err, "ingest: decode search response")
	}
	if resp.Success != nil && !*resp.Success {
		return nil, eris.Errorf("ingest: search error: %s", resp.ErrorMessage)
	}
	return resp.Operations, nil
}
