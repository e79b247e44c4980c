// Package pipeline sequences the full acquisition run: ingest candidates
// from the registry source, admit them through the deduplicating writer,
// then enrich and score everything pending.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/dedup"
	"github.com/harvestline/leadgen-cli/internal/enrich"
	"github.com/harvestline/leadgen-cli/internal/ingest"
	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/resilience"
	"github.com/harvestline/leadgen-cli/internal/store"
)

// Options selects which stages run and how far they go.
type Options struct {
	SkipIngest      bool
	SkipEnrich      bool
	EnrichBatchSize int
	MaxEnrich       int
}

// Result summarizes a run. IngestionAborted marks a run whose source died
// partway; the admitted counts still stand.
type Result struct {
	RunID            string       `json:"run_id"`
	Admitted         int          `json:"admitted"`
	Duplicates       int          `json:"duplicates"`
	Enriched         int          `json:"enriched"`
	IngestionAborted bool         `json:"ingestion_aborted,omitempty"`
	Stats            *model.Stats `json:"stats,omitempty"`
}

// Pipeline wires the source cursor, deduplicating writer, and enrichment
// coordinator over one store.
type Pipeline struct {
	source ingest.Cursor
	writer *dedup.Writer
	coord  *enrich.Coordinator
	store  store.Store
}

func New(source ingest.Cursor, writer *dedup.Writer, coord *enrich.Coordinator, st store.Store) *Pipeline {
	return &Pipeline{source: source, writer: writer, coord: coord, store: st}
}

// Run executes ingest then enrich. A fatal ingestion failure aborts only
// the ingestion stage; enrichment still runs over whatever was admitted.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("pipeline: starting run")

	if !opts.SkipIngest && p.source != nil {
		admitted, duplicates, err := p.ingestAll(ctx, log)
		res.Admitted = admitted
		res.Duplicates = duplicates
		if err != nil {
			if _, fatal := resilience.IsFatalIngest(err); !fatal {
				return res, eris.Wrap(err, "pipeline: ingest")
			}
			res.IngestionAborted = true
			log.Warn("pipeline: ingestion aborted, continuing with admitted leads",
				zap.Int("admitted", admitted),
				zap.Error(err),
			)
		}
	}

	if !opts.SkipEnrich && p.coord != nil {
		enriched, err := p.coord.EnrichBatch(ctx, opts.EnrichBatchSize, opts.MaxEnrich)
		res.Enriched = enriched
		if err != nil {
			return res, eris.Wrap(err, "pipeline: enrich")
		}
	}

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return res, eris.Wrap(err, "pipeline: stats")
	}
	res.Stats = stats

	log.Info("pipeline: run complete",
		zap.Int("admitted", res.Admitted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("enriched", res.Enriched),
		zap.Int("total", stats.Total),
		zap.Int("qualified", stats.Qualified),
	)
	return res, nil
}

// ingestAll drains the cursor into the writer. A failing candidate is
// logged and skipped; only a cursor error stops the stage.
func (p *Pipeline) ingestAll(ctx context.Context, log *zap.Logger) (admitted, duplicates int, err error) {
	for {
		cand, err := p.source.Next(ctx)
		if eris.Is(err, ingest.ErrEnd) {
			return admitted, duplicates, nil
		}
		if err != nil {
			return admitted, duplicates, err
		}

		outcome, err := p.writer.Admit(ctx, cand)
		if err != nil {
			log.Warn("pipeline: admit failed",
				zap.String("name", cand.Name),
				zap.String("state", cand.State),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case dedup.Inserted:
			admitted++
		case dedup.SkippedDuplicate:
			duplicates++
		}
	}
}
