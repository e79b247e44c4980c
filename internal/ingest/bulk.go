package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/requester"
	"github.com/harvestline/leadgen-cli/internal/resilience"
)

const (
	sourceName       = "usda_organic"
	archiveFileName  = "operations.zip"
	payloadFileName  = "operations.xml"
	defaultCacheTTL  = 24 * time.Hour
	operationElement = "Operation"
)

// BulkSource streams the full registry export: a ZIP archive holding one
// XML payload. The archive is cached on disk and reused while fresh, so
// repeated runs inside the cache window cost no network traffic.
type BulkSource struct {
	req      *requester.Requester
	bulkURL  string
	cacheDir string
	cacheTTL time.Duration
	filter   Filter

	started  bool
	done     bool
	yielded  int
	states   map[string]bool
	payload  *os.File
	ops      <-chan operation
	errs     <-chan error
	cancelFn context.CancelFunc
}

// BulkOptions configures a BulkSource.
type BulkOptions struct {
	BulkURL  string
	CacheDir string
	CacheTTL time.Duration
	Filter   Filter
}

// NewBulkSource creates a cursor over the bulk registry export.
func NewBulkSource(req *requester.Requester, opts BulkOptions) *BulkSource {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &BulkSource{
		req:      req,
		bulkURL:  opts.BulkURL,
		cacheDir: opts.CacheDir,
		cacheTTL: opts.CacheTTL,
		filter:   opts.Filter,
	}
}

// Next yields the next candidate passing the filter. Returns ErrEnd at
// exhaustion or when the max-lead cutoff is reached. Acquisition failures
// after exhausted retries surface as FatalIngestError.
func (b *BulkSource) Next(ctx context.Context) (model.LeadCandidate, error) {
	if b.done {
		return model.LeadCandidate{}, ErrEnd
	}
	if !b.started {
		if err := b.start(ctx); err != nil {
			b.finish()
			return model.LeadCandidate{}, resilience.NewFatalIngestError(err, b.yielded)
		}
	}

	for {
		if b.filter.MaxLeads > 0 && b.yielded >= b.filter.MaxLeads {
			b.finish()
			return model.LeadCandidate{}, ErrEnd
		}

		op, ok := <-b.ops
		if !ok {
			err := <-b.errs
			b.finish()
			if err != nil {
				return model.LeadCandidate{}, eris.Wrap(err, "ingest: bulk stream")
			}
			return model.LeadCandidate{}, ErrEnd
		}

		cand, ok := op.candidate()
		if !ok || !admits(b.states, cand) {
			continue
		}

		b.yielded++
		return cand, nil
	}
}

// Reset makes the cursor restartable from the beginning. The on-disk cache
// is kept, so a restart inside the cache window does not refetch.
func (b *BulkSource) Reset() {
	b.finish()
	b.started = false
	b.done = false
	b.yielded = 0
}

func (b *BulkSource) start(ctx context.Context) error {
	path, err := b.ensurePayload(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open payload %s", path)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	b.payload = f
	b.cancelFn = cancel
	b.states = b.filter.stateSet()
	b.ops, b.errs = streamOperations(streamCtx, f)
	b.started = true
	return nil
}

// ensurePayload returns the path of a fresh extracted payload, downloading
// and extracting the archive when the cache is stale or missing.
func (b *BulkSource) ensurePayload(ctx context.Context) (string, error) {
	payloadPath := filepath.Join(b.cacheDir, payloadFileName)

	if info, err := os.Stat(payloadPath); err == nil {
		age := time.Since(info.ModTime())
		if age < b.cacheTTL {
			zap.L().Info("ingest: using cached registry export",
				zap.String("path", payloadPath),
				zap.Duration("age", age),
			)
			return payloadPath, nil
		}
	}

	archivePath := filepath.Join(b.cacheDir, archiveFileName)
	zap.L().Info("ingest: downloading registry export", zap.String("url", b.bulkURL))

	n, err := b.req.DownloadToFile(ctx, b.bulkURL, archivePath)
	if err != nil {
		return "", eris.Wrap(err, "ingest: download registry export")
	}
	zap.L().Info("ingest: downloaded registry export",
		zap.Int64("bytes", n),
		zap.String("path", archivePath),
	)

	if err := extractSinglePayload(archivePath, payloadPath); err != nil {
		return "", err
	}
	return payloadPath, nil
}

func (b *BulkSource) finish() {
	b.done = true
	if b.cancelFn != nil {
		b.cancelFn()
		b.cancelFn = nil
	}
	if b.ops != nil {
		// Drain so the decoder goroutine can exit.
		go func(ops <-chan operation) {
			for range ops {
			}
		}(b.ops)
		b.ops = nil
	}
	if b.payload != nil {
		b.payload.Close()
		b.payload = nil
	}
}

// operation mirrors one registry record. The bulk export carries them as
// <Operation> XML elements, the search API as JSON objects with the same
// field names.
type operation struct {
	Name         string `xml:"op_name" json:"op_name"`
	OperationID  string `xml:"op_nopOpID" json:"op_nopOpID"`
	ContactFirst string `xml:"op_contFirstName" json:"op_contFirstName"`
	ContactLast  string `xml:"op_contLastName" json:"op_contLastName"`
	AddressLine1 string `xml:"opPA_line1" json:"opPA_line1"`
	AddressLine2 string `xml:"opPA_line2" json:"opPA_line2"`
	City         string `xml:"opPA_city" json:"opPA_city"`
	State        string `xml:"opPA_state" json:"opPA_state"`
	ZipCode      string `xml:"opPA_zip" json:"opPA_zip"`
	Country      string `xml:"opPA_country" json:"opPA_country"`
	Phone        string `xml:"op_phone" json:"op_phone"`
	Email        string `xml:"op_email" json:"op_email"`
	Website      string `xml:"op_url" json:"op_url"`
	Status       string `xml:"op_status" json:"op_status"`
	Certifier    string `xml:"op_certifierName" json:"op_certifierName"`
}

// candidate converts the raw record to a normalized LeadCandidate.
// Returns false for unusable records (no name), which are skipped silently.
func (op operation) candidate() (model.LeadCandidate, bool) {
	name := trimmed(op.Name)
	if name == "" {
		return model.LeadCandidate{}, false
	}

	return model.LeadCandidate{
		Name:        name,
		ContactName: joinNonEmpty(" ", op.ContactFirst, op.ContactLast),
		Address:     joinNonEmpty(", ", op.AddressLine1, op.AddressLine2),
		City:        trimmed(op.City),
		State:       NormalizeState(op.State),
		ZipCode:     trimmed(op.ZipCode),
		Country:     trimmed(op.Country),
		Phone:       trimmed(op.Phone),
		Email:       trimmed(op.Email),
		Website:     trimmed(op.Website),
		Source:      sourceName,
		SourceID:    trimmed(op.OperationID),
	}, true
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
