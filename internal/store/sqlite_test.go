package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestline/leadgen-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func insertTestLead(t *testing.T, st *SQLiteStore, name, state string) *model.LeadRecord {
	t.Helper()
	rec := model.NewLeadRecord(model.LeadCandidate{
		Name:    name,
		State:   state,
		City:    "Madison",
		Country: "USA",
		Source:  "usda_organic",
	})
	_, err := st.Insert(context.Background(), &rec)
	require.NoError(t, err)
	return &rec
}

func TestSQLite_Insert_AssignsID(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec := insertTestLead(t, st, "Acme Organics", "wi")
	assert.Greater(t, rec.ID, int64(0))
	assert.Equal(t, "WI", rec.State)
	assert.True(t, rec.Qualified)
}

func TestSQLite_Insert_DuplicateIdentity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insertTestLead(t, st, "Acme Organics", "WI")

	// Same name modulo case and whitespace, same state.
	dup := model.NewLeadRecord(model.LeadCandidate{Name: "  ACME ORGANICS ", State: "wi"})
	_, err := st.Insert(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSQLite_Insert_SameNameDifferentState(t *testing.T) {
	st := newTestSQLiteStore(t)

	a := insertTestLead(t, st, "Acme Organics", "WI")
	b := insertTestLead(t, st, "Acme Organics", "MN")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSQLite_FindByIdentity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insertTestLead(t, st, "Acme Organics", "WI")

	found, err := st.FindByIdentity(ctx, "acme organics", "wi")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Acme Organics", found.Name)

	missing, err := st.FindByIdentity(ctx, "Nobody Farms", "WI")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_ListPendingEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insertTestLead(t, st, "Pending One", "WI")
	insertTestLead(t, st, "Pending Two", "MN")
	enriched := insertTestLead(t, st, "Already Done", "IA")

	now := time.Now().UTC()
	enriched.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, enriched))

	pending, err := st.ListPendingEnrichment(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "Pending One", pending[0].Name)
	assert.Equal(t, "Pending Two", pending[1].Name)
}

func TestSQLite_ListPendingEnrichment_FiltersCountry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insertTestLead(t, st, "Domestic Farm", "WI")
	foreign := model.NewLeadRecord(model.LeadCandidate{
		Name:    "Abroad Organics",
		State:   "ON",
		Country: "Canada",
		Source:  "usda_organic",
	})
	_, err := st.Insert(ctx, &foreign)
	require.NoError(t, err)

	pending, err := st.ListPendingEnrichment(ctx, "USA", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Domestic Farm", pending[0].Name)
}

func TestSQLite_ListPendingEnrichment_RespectsLimit(t *testing.T) {
	st := newTestSQLiteStore(t)

	for _, name := range []string{"A", "B", "C"} {
		insertTestLead(t, st, name, "WI")
	}

	pending, err := st.ListPendingEnrichment(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSQLite_UpdateEnrichment_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := insertTestLead(t, st, "Roundtrip Farm", "WI")

	hasCRM := true
	now := time.Now().UTC().Truncate(time.Second)
	rec.Email = "info@roundtrip.example"
	rec.Phone = "(608) 555-0142"
	rec.Website = "https://roundtrip.example"
	rec.HasCRM = &hasCRM
	rec.CRMDetected = "hubspot"
	rec.IsSPA = true
	rec.HasJobPostings = true
	rec.CompanyType = model.TypeFarm
	rec.EmployeeCount = 12
	rec.Score = 35
	rec.Qualified = false
	rec.DisqualificationReason = "has CRM: hubspot"
	rec.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, rec))

	got, err := st.FindByIdentity(ctx, "Roundtrip Farm", "WI")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.HasCRM)
	assert.True(t, *got.HasCRM)
	assert.Equal(t, "hubspot", got.CRMDetected)
	assert.Equal(t, model.TypeFarm, got.CompanyType)
	assert.Equal(t, 12, got.EmployeeCount)
	assert.Equal(t, float64(35), got.Score)
	assert.False(t, got.Qualified)
	assert.Equal(t, "has CRM: hubspot", got.DisqualificationReason)
	require.NotNil(t, got.LastEnrichedAt)
	assert.Equal(t, model.StateDisqualified, got.LifecycleState())
}

func TestSQLite_UpdateEnrichment_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec := model.NewLeadRecord(model.LeadCandidate{Name: "Ghost", State: "WI"})
	rec.ID = 9999
	err := st.UpdateEnrichment(context.Background(), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
}

func TestSQLite_MarkPending_ResetsEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := insertTestLead(t, st, "Reset Me", "WI")
	now := time.Now().UTC()
	rec.Qualified = false
	rec.DisqualificationReason = "too large"
	rec.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, rec))

	require.NoError(t, st.MarkPending(ctx, []int64{rec.ID}))

	got, err := st.FindByIdentity(ctx, "Reset Me", "WI")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.LastEnrichedAt)
	assert.True(t, got.Qualified)
	assert.Empty(t, got.DisqualificationReason)
	assert.Equal(t, model.StateEnrichmentPending, got.LifecycleState())
}

func TestSQLite_MarkPending_EmptyIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.MarkPending(context.Background(), nil))
}

func TestSQLite_List_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := insertTestLead(t, st, "High Scorer", "WI")
	a.Score = 60
	now := time.Now().UTC()
	a.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, a))

	b := insertTestLead(t, st, "Low Scorer", "MN")
	b.Score = 10
	b.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, b))

	byState, err := st.List(ctx, ListFilter{State: "wi"})
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, "High Scorer", byState[0].Name)

	byScore, err := st.List(ctx, ListFilter{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, byScore, 1)
	assert.Equal(t, "High Scorer", byScore[0].Name)

	all, err := st.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Ordered by score descending.
	assert.Equal(t, "High Scorer", all[0].Name)
}

func TestSQLite_ListQualified(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	q := insertTestLead(t, st, "Qualified Farm", "WI")
	q.Score = 45
	q.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, q))

	dq := insertTestLead(t, st, "Disqualified Inc", "WI")
	dq.Qualified = false
	dq.DisqualificationReason = "too large"
	dq.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, dq))

	leads, err := st.ListQualified(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Qualified Farm", leads[0].Name)
}

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()

	a := insertTestLead(t, st, "With Email", "WI")
	a.Email = "a@example.com"
	a.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, a))

	b := insertTestLead(t, st, "With Phone", "MN")
	b.Phone = "(608) 555-0100"
	b.Qualified = false
	b.DisqualificationReason = "too large"
	b.LastEnrichedAt = &now
	require.NoError(t, st.UpdateEnrichment(ctx, b))

	insertTestLead(t, st, "Untouched", "IA")

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Qualified)
	assert.Equal(t, 1, stats.WithEmail)
	assert.Equal(t, 1, stats.WithPhone)
	assert.Equal(t, 2, stats.Enriched)
}
