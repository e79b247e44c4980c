package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/scoring"
	"github.com/harvestline/leadgen-cli/internal/store"
)

// Options bounds the coordinator.
type Options struct {
	Concurrency  int
	StageTimeout time.Duration
	HomeCountry  string
}

// Coordinator drains pending leads from the store, runs each through the
// enrichment chain with bounded parallelism, rescores, and commits. Leads
// whose every stage failed are left pending for a later run.
type Coordinator struct {
	store  store.Store
	engine *scoring.Engine
	chain  []Enricher
	opts   Options
}

func NewCoordinator(st store.Store, engine *scoring.Engine, chain []Enricher, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 30 * time.Second
	}
	return &Coordinator{store: st, engine: engine, chain: chain, opts: opts}
}

// EnrichBatch processes pending leads in batches of batchSize until none
// remain or maxTotal leads have been committed (0 = unbounded). Returns
// the number committed.
func (c *Coordinator) EnrichBatch(ctx context.Context, batchSize, maxTotal int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	log := zap.L().With(zap.String("run_id", uuid.NewString()))

	total := 0
	for {
		limit := batchSize
		if maxTotal > 0 && total+limit > maxTotal {
			limit = maxTotal - total
		}
		if limit <= 0 {
			break
		}

		leads, err := c.store.ListPendingEnrichment(ctx, c.opts.HomeCountry, limit)
		if err != nil {
			return total, eris.Wrap(err, "enrich: list pending")
		}
		if len(leads) == 0 {
			break
		}

		// Enrichment runs on copies; results holds the leads worth
		// committing, indexed to avoid locking.
		results := make([]*model.LeadRecord, len(leads))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.Concurrency)
		for i := range leads {
			i := i
			g.Go(func() error {
				lead := leads[i]
				if c.enrichLead(gctx, &lead, log) {
					results[i] = &lead
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, eris.Wrap(err, "enrich: batch")
		}

		persisted := 0
		for _, rec := range results {
			if rec == nil {
				continue
			}
			if err := c.store.UpdateEnrichment(ctx, rec); err != nil {
				log.Warn("enrich: commit failed",
					zap.Int64("lead_id", rec.ID),
					zap.Error(err),
				)
				continue
			}
			persisted++
		}
		total += persisted

		log.Info("enrich: batch committed",
			zap.Int("selected", len(leads)),
			zap.Int("persisted", persisted),
			zap.Int("total", total),
		)

		// Every lead in the batch failed outright; stop rather than
		// reselecting the same ones.
		if persisted == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// enrichLead runs the chain over one lead copy, scores it, and reports
// whether it should be committed. The chain is strictly sequential: later
// stages read fields earlier stages filled.
func (c *Coordinator) enrichLead(ctx context.Context, lead *model.LeadRecord, log *zap.Logger) bool {
	succeeded := 0
	for _, stage := range c.chain {
		stageCtx, cancel := context.WithTimeout(ctx, c.opts.StageTimeout)
		p, err := stage.Probe(stageCtx, *lead)
		cancel()
		if err != nil {
			log.Warn("enrich: stage failed",
				zap.String("stage", stage.Name()),
				zap.String("lead", lead.Name),
				zap.Error(err),
			)
			continue
		}
		succeeded++
		if p == nil {
			continue
		}
		merge(lead, p)
	}
	if succeeded == 0 {
		return false
	}

	c.engine.Apply(lead)
	now := time.Now().UTC()
	lead.LastEnrichedAt = &now
	return true
}
