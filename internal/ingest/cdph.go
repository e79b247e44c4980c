package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/requester"
	"github.com/harvestline/leadgen-cli/internal/resilience"
)

const (
	cdphSourceName   = "cdph_organic"
	cdphWorkbookName = "RegisteredOrganic.xlsx"

	// The spreadsheet repeats its header row inside the data.
	cdphHeaderMarker = "Business Name"
)

// cdph column layout: business name, DBA, license type, license status, city.
const (
	cdphColBusinessName = 0
	cdphColDBA          = 1
	cdphColLicStatus    = 3
	cdphColCity         = 4
	cdphColumnCount     = 5
)

var cityCaser = cases.Title(language.AmericanEnglish)

// CDPHSource walks the California Department of Public Health registered
// organic processor workbook, a single-sheet xlsx export. Rows carry only a
// business name, DBA, license status, and city; every candidate lands in CA.
// The workbook is cached on disk and reused while fresh, like the bulk
// registry export.
type CDPHSource struct {
	req      *requester.Requester
	dataURL  string
	cacheDir string
	cacheTTL time.Duration
	filter   Filter

	started bool
	done    bool
	yielded int
	states  map[string]bool
	rows    []*xlsx.Row
	pos     int
}

// CDPHOptions configures a CDPHSource.
type CDPHOptions struct {
	DataURL  string
	CacheDir string
	CacheTTL time.Duration
	Filter   Filter
}

// NewCDPHSource creates a cursor over the CDPH processor workbook.
func NewCDPHSource(req *requester.Requester, opts CDPHOptions) *CDPHSource {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &CDPHSource{
		req:      req,
		dataURL:  opts.DataURL,
		cacheDir: opts.CacheDir,
		cacheTTL: opts.CacheTTL,
		filter:   opts.Filter,
	}
}

// Next yields the next registered processor passing the filter. Returns
// ErrEnd at exhaustion or when the max-lead cutoff is reached. Acquisition
// failures surface as FatalIngestError.
func (c *CDPHSource) Next(ctx context.Context) (model.LeadCandidate, error) {
	if c.done {
		return model.LeadCandidate{}, ErrEnd
	}
	if !c.started {
		if err := c.start(ctx); err != nil {
			c.done = true
			return model.LeadCandidate{}, resilience.NewFatalIngestError(err, c.yielded)
		}
	}

	for {
		if c.filter.MaxLeads > 0 && c.yielded >= c.filter.MaxLeads {
			c.done = true
			return model.LeadCandidate{}, ErrEnd
		}
		if c.pos >= len(c.rows) {
			c.done = true
			return model.LeadCandidate{}, ErrEnd
		}

		row := c.rows[c.pos]
		c.pos++

		cand, ok := cdphCandidate(row)
		if !ok || !admits(c.states, cand) {
			continue
		}

		c.yielded++
		return cand, nil
	}
}

// Reset makes the cursor restartable from the beginning. The on-disk cache
// is kept, so a restart inside the cache window does not refetch.
func (c *CDPHSource) Reset() {
	c.started = false
	c.done = false
	c.yielded = 0
	c.pos = 0
	c.rows = nil
}

func (c *CDPHSource) start(ctx context.Context) error {
	path, err := c.ensureWorkbook(ctx)
	if err != nil {
		return err
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open workbook %s", path)
	}
	if len(f.Sheets) == 0 {
		return eris.New("ingest: cdph workbook has no sheets")
	}

	c.rows = f.Sheets[0].Rows
	// First row is the column header.
	if len(c.rows) > 0 {
		c.pos = 1
	}
	c.states = c.filter.stateSet()
	c.started = true
	return nil
}

// ensureWorkbook returns the path of a fresh workbook, downloading it when
// the cache is stale or missing.
func (c *CDPHSource) ensureWorkbook(ctx context.Context) (string, error) {
	path := filepath.Join(c.cacheDir, cdphWorkbookName)

	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime())
		if age < c.cacheTTL {
			zap.L().Info("ingest: using cached processor workbook",
				zap.String("path", path),
				zap.Duration("age", age),
			)
			return path, nil
		}
	}

	zap.L().Info("ingest: downloading processor workbook", zap.String("url", c.dataURL))
	n, err := c.req.DownloadToFile(ctx, c.dataURL, path)
	if err != nil {
		return "", eris.Wrap(err, "ingest: download processor workbook")
	}
	zap.L().Info("ingest: downloaded processor workbook",
		zap.Int64("bytes", n),
		zap.String("path", path),
	)
	return path, nil
}

// cdphCandidate maps a workbook row to a candidate. Repeated header rows
// and licenses that are not currently registered are dropped. The DBA name
// wins over the legal business name when they differ.
func cdphCandidate(row *xlsx.Row) (model.LeadCandidate, bool) {
	cells := make([]string, cdphColumnCount)
	for i := 0; i < cdphColumnCount && i < len(row.Cells); i++ {
		cells[i] = strings.TrimSpace(row.Cells[i].String())
	}

	businessName := cells[cdphColBusinessName]
	if businessName == "" || strings.EqualFold(businessName, cdphHeaderMarker) {
		return model.LeadCandidate{}, false
	}
	if !strings.Contains(strings.ToLower(cells[cdphColLicStatus]), "registered") {
		return model.LeadCandidate{}, false
	}

	name := businessName
	if dba := cells[cdphColDBA]; dba != "" && dba != businessName {
		name = dba
	}

	return model.LeadCandidate{
		Name:    name,
		City:    cityCaser.String(cells[cdphColCity]),
		State:   "CA",
		Country: "USA",
		Source:  cdphSourceName,
	}, true
}
