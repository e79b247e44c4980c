package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestline/leadgen-cli/internal/dedup"
	"github.com/harvestline/leadgen-cli/internal/enrich"
	"github.com/harvestline/leadgen-cli/internal/ingest"
	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/resilience"
	"github.com/harvestline/leadgen-cli/internal/scoring"
	"github.com/harvestline/leadgen-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// sliceCursor yields fixed candidates, then an optional terminal error,
// then ErrEnd.
type sliceCursor struct {
	cands    []model.LeadCandidate
	terminal error
	pos      int
}

func (s *sliceCursor) Next(_ context.Context) (model.LeadCandidate, error) {
	if s.pos >= len(s.cands) {
		if s.terminal != nil {
			err := s.terminal
			s.terminal = nil
			return model.LeadCandidate{}, err
		}
		return model.LeadCandidate{}, ingest.ErrEnd
	}
	cand := s.cands[s.pos]
	s.pos++
	return cand, nil
}

type noopStage struct{}

func (noopStage) Name() string { return "noop" }

func (noopStage) Probe(_ context.Context, _ model.LeadRecord) (*enrich.Partial, error) {
	return &enrich.Partial{Email: "found@lead.example"}, nil
}

func candidate(name, state string) model.LeadCandidate {
	return model.LeadCandidate{
		Name:    name,
		State:   state,
		Country: "USA",
		Source:  "usda_organic",
	}
}

func newTestPipeline(st store.Store, cursor ingest.Cursor) *Pipeline {
	coord := enrich.NewCoordinator(st, scoring.NewEngine(scoring.DefaultWeights()),
		[]enrich.Enricher{noopStage{}}, enrich.Options{
			Concurrency:  2,
			StageTimeout: time.Second,
			HomeCountry:  "USA",
		})
	return New(cursor, dedup.NewWriter(st), coord, st)
}

func TestPipeline_Run_FullPass(t *testing.T) {
	st := newTestStore(t)
	cursor := &sliceCursor{cands: []model.LeadCandidate{
		candidate("Acme Creamery", "WI"),
		candidate("Birch Hollow Farm", "MN"),
		candidate("Acme Creamery", "WI"),
	}}

	res, err := newTestPipeline(st, cursor).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Admitted)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 2, res.Enriched)
	assert.False(t, res.IngestionAborted)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Enriched)
	assert.Equal(t, 2, res.Stats.WithEmail)
}

func TestPipeline_Run_FatalIngestStillEnriches(t *testing.T) {
	st := newTestStore(t)
	cursor := &sliceCursor{
		cands:    []model.LeadCandidate{candidate("Acme Creamery", "WI")},
		terminal: resilience.NewFatalIngestError(eris.New("source went away"), 1),
	}

	res, err := newTestPipeline(st, cursor).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.True(t, res.IngestionAborted)
	assert.Equal(t, 1, res.Admitted)
	assert.Equal(t, 1, res.Enriched)
}

func TestPipeline_Run_UnexpectedIngestErrorAborts(t *testing.T) {
	st := newTestStore(t)
	cursor := &sliceCursor{terminal: eris.New("cursor corrupted")}

	res, err := newTestPipeline(st, cursor).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Zero(t, res.Admitted)
}

func TestPipeline_Run_SkipStages(t *testing.T) {
	st := newTestStore(t)
	cursor := &sliceCursor{cands: []model.LeadCandidate{candidate("Acme Creamery", "WI")}}
	p := newTestPipeline(st, cursor)

	res, err := p.Run(context.Background(), Options{SkipEnrich: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Admitted)
	assert.Zero(t, res.Enriched)

	res, err = p.Run(context.Background(), Options{SkipIngest: true})
	require.NoError(t, err)
	assert.Zero(t, res.Admitted)
	assert.Equal(t, 1, res.Enriched)
}

func TestPipeline_Run_RepeatIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	cands := []model.LeadCandidate{
		candidate("Acme Creamery", "WI"),
		candidate("Birch Hollow Farm", "MN"),
	}

	first, err := newTestPipeline(st, &sliceCursor{cands: cands}).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Admitted)

	second, err := newTestPipeline(st, &sliceCursor{cands: cands}).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, second.Admitted)
	assert.Equal(t, 2, second.Duplicates)
	assert.Zero(t, second.Enriched)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}
