package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the expected
// argument count to match the actual call even when values are irrelevant.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var leadColumnNames = []string{
	"id", "name", "contact_name", "source", "source_id",
	"address", "city", "state", "zip_code", "country",
	"phone", "email", "website", "linkedin_url",
	"has_crm", "crm_detected", "tech_stack", "is_spa", "has_job_postings", "has_linkedin",
	"company_type", "employee_count",
	"score", "qualified", "disqualification_reason",
	"created_at", "updated_at", "last_enriched_at",
}

func leadRow(mock pgxmock.PgxPoolIface, id int64, name, state string) *pgxmock.Rows {
	now := time.Now().UTC()
	return mock.NewRows(leadColumnNames).AddRow(
		id, name, "", "usda_organic", "",
		"", "", state, "", "",
		"", "", "", "",
		nil, "", "", false, false, false,
		"", 0,
		0.0, true, "",
		now, now, nil,
	)
}

func TestPostgres_Insert_ReturnsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(anyArgs(17)...).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(42)))

	rec := model.NewLeadRecord(model.LeadCandidate{Name: "Acme Organics", State: "wi"})
	id, err := s.Insert(context.Background(), &rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "WI", rec.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Insert_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// ON CONFLICT DO NOTHING yields no rows for a duplicate identity.
	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(anyArgs(17)...).
		WillReturnRows(mock.NewRows([]string{"id"}))

	rec := model.NewLeadRecord(model.LeadCandidate{Name: "Acme Organics", State: "WI"})
	_, err := s.Insert(context.Background(), &rec)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByIdentity_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE name_key = \$1 AND state = \$2`).
		WithArgs("acme organics", "WI").
		WillReturnRows(leadRow(mock, 7, "Acme Organics", "WI"))

	rec, err := s.FindByIdentity(context.Background(), " Acme Organics ", "wi")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.ID)
	assert.Nil(t, rec.HasCRM)
	assert.Nil(t, rec.LastEnrichedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByIdentity_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE name_key = \$1 AND state = \$2`).
		WithArgs("nobody farms", "WI").
		WillReturnRows(mock.NewRows(leadColumnNames))

	rec, err := s.FindByIdentity(context.Background(), "Nobody Farms", "WI")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListPendingEnrichment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := leadRow(mock, 1, "Pending One", "WI")
	mock.ExpectQuery(`SELECT .+ FROM leads\s+WHERE last_enriched_at IS NULL AND qualified AND country = \$1`).
		WithArgs("USA", 25).
		WillReturnRows(rows)

	leads, err := s.ListPendingEnrichment(context.Background(), "USA", 25)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Pending One", leads[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateEnrichment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rec := model.NewLeadRecord(model.LeadCandidate{Name: "Ghost", State: "WI"})
	rec.ID = 9999
	err := s.UpdateEnrichment(context.Background(), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MarkPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET last_enriched_at = NULL`).
		WithArgs(anyArgs(2)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	err := s.MarkPending(context.Background(), []int64{1, 2})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MarkPending_EmptyIDs(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.NoError(t, s.MarkPending(context.Background(), nil))
}

func TestPostgres_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(mock.NewRows([]string{"total", "qualified", "with_email", "with_phone", "enriched"}).
			AddRow(10, 7, 4, 5, 8))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 7, stats.Qualified)
	assert.Equal(t, 4, stats.WithEmail)
	assert.Equal(t, 5, stats.WithPhone)
	assert.Equal(t, 8, stats.Enriched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
