package enrich

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestline/leadgen-cli/internal/model"
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

func seedLead(t *testing.T, st store.Store, name, state string) int64 {
	t.Helper()
	rec := model.NewLeadRecord(model.LeadCandidate{
		Name:    name,
		State:   state,
		Country: "USA",
		Source:  "usda_organic",
	})
	id, err := st.Insert(context.Background(), &rec)
	require.NoError(t, err)
	return id
}

// stubStage returns a fixed partial, or an error, and counts probes.
type stubStage struct {
	name    string
	partial *Partial
	err     error
	probes  int
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Probe(_ context.Context, _ model.LeadRecord) (*Partial, error) {
	s.probes++
	return s.partial, s.err
}

func newTestCoordinator(st store.Store, chain ...Enricher) *Coordinator {
	return NewCoordinator(st, scoring.NewEngine(scoring.DefaultWeights()), chain, Options{
		Concurrency:  2,
		StageTimeout: time.Second,
		HomeCountry:  "USA",
	})
}

func TestCoordinator_EnrichesAndCommits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := seedLead(t, st, "Acme Creamery", "WI")
	seedLead(t, st, "Birch Hollow Farm", "MN")

	stage := &stubStage{name: "contact", partial: &Partial{
		Email: "info@acme.example",
		Phone: "(608) 555-0142",
	}}
	c := newTestCoordinator(st, stage)

	n, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, stage.probes)

	rec, err := st.FindByIdentity(ctx, "Acme Creamery", "WI")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "info@acme.example", rec.Email)
	require.NotNil(t, rec.LastEnrichedAt)
	// email 15 + phone 10 + basic website 5
	assert.Equal(t, 30.0, rec.Score)
	assert.Equal(t, model.StateQualified, rec.LifecycleState())

	// Second run finds nothing pending.
	n, err = c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, stage.probes)
}

func TestCoordinator_DisqualifiesThroughScoring(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedLead(t, st, "Acme Creamery", "WI")

	stage := &stubStage{name: "tech", partial: &Partial{
		HasCRM:      boolPtr(true),
		CRMDetected: "salesforce",
	}}
	c := newTestCoordinator(st, stage)

	_, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)

	rec, err := st.FindByIdentity(ctx, "Acme Creamery", "WI")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Qualified)
	assert.Equal(t, "has CRM: salesforce", rec.DisqualificationReason)
	assert.Equal(t, model.StateDisqualified, rec.LifecycleState())
}

func TestCoordinator_AllStagesFailedLeavesPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedLead(t, st, "Acme Creamery", "WI")

	stage := &stubStage{name: "broken", err: eris.New("probe exploded")}
	c := newTestCoordinator(st, stage)

	n, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec, err := st.FindByIdentity(ctx, "Acme Creamery", "WI")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, rec.LastEnrichedAt)
	assert.Equal(t, model.StateEnrichmentPending, rec.LifecycleState())
}

func TestCoordinator_FailedStageDoesNotBlockOthers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedLead(t, st, "Acme Creamery", "WI")

	broken := &stubStage{name: "broken", err: eris.New("probe exploded")}
	working := &stubStage{name: "contact", partial: &Partial{Email: "info@acme.example"}}
	c := newTestCoordinator(st, broken, working)

	n, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := st.FindByIdentity(ctx, "Acme Creamery", "WI")
	require.NoError(t, err)
	assert.Equal(t, "info@acme.example", rec.Email)
	require.NotNil(t, rec.LastEnrichedAt)
}

func TestCoordinator_MaxTotalBounds(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"One", "Two", "Three", "Four", "Five"} {
		seedLead(t, st, name, "WI")
	}

	stage := &stubStage{name: "noop", partial: &Partial{Email: "x@y.example"}}
	c := newTestCoordinator(st, stage)

	n, err := c.EnrichBatch(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := st.ListPendingEnrichment(ctx, "USA", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestCoordinator_SkipsForeignLeads(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	foreign := model.NewLeadRecord(model.LeadCandidate{
		Name:    "Abroad Organics",
		State:   "ON",
		Country: "Canada",
		Source:  "usda_organic",
	})
	_, err := st.Insert(ctx, &foreign)
	require.NoError(t, err)

	stage := &stubStage{name: "noop", partial: &Partial{Email: "x@y.example"}}
	c := newTestCoordinator(st, stage)

	n, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, stage.probes)
}

func TestCoordinator_EmptyResultStillCommits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedLead(t, st, "Acme Creamery", "WI")

	stage := &stubStage{name: "quiet", partial: nil}
	c := newTestCoordinator(st, stage)

	n, err := c.EnrichBatch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := st.FindByIdentity(ctx, "Acme Creamery", "WI")
	require.NoError(t, err)
	require.NotNil(t, rec.LastEnrichedAt)
}
