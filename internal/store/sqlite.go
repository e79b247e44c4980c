package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harvestline/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	name                    TEXT NOT NULL,
	name_key                TEXT NOT NULL,
	contact_name            TEXT NOT NULL DEFAULT '',
	source                  TEXT NOT NULL DEFAULT '',
	source_id               TEXT NOT NULL DEFAULT '',
	address                 TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	state                   TEXT NOT NULL DEFAULT '',
	zip_code                TEXT NOT NULL DEFAULT '',
	country                 TEXT NOT NULL DEFAULT '',
	phone                   TEXT NOT NULL DEFAULT '',
	email                   TEXT NOT NULL DEFAULT '',
	website                 TEXT NOT NULL DEFAULT '',
	linkedin_url            TEXT NOT NULL DEFAULT '',
	has_crm                 INTEGER,
	crm_detected            TEXT NOT NULL DEFAULT '',
	tech_stack              TEXT NOT NULL DEFAULT '',
	is_spa                  INTEGER NOT NULL DEFAULT 0,
	has_job_postings        INTEGER NOT NULL DEFAULT 0,
	has_linkedin            INTEGER NOT NULL DEFAULT 0,
	company_type            TEXT NOT NULL DEFAULT '',
	employee_count          INTEGER NOT NULL DEFAULT 0,
	score                   REAL NOT NULL DEFAULT 0,
	qualified               INTEGER NOT NULL DEFAULT 1,
	disqualification_reason TEXT NOT NULL DEFAULT '',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	last_enriched_at        DATETIME,
	UNIQUE(name_key, state)
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment ON leads(last_enriched_at) WHERE last_enriched_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_leads_qualified ON leads(qualified, score);
CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// leadColumns is the SELECT list shared by every read query, in scanLead order.
const leadColumns = `id, name, contact_name, source, source_id,
	address, city, state, zip_code, country,
	phone, email, website, linkedin_url,
	has_crm, crm_detected, tech_stack, is_spa, has_job_postings, has_linkedin,
	company_type, employee_count,
	score, qualified, disqualification_reason,
	created_at, updated_at, last_enriched_at`

func (s *SQLiteStore) Insert(ctx context.Context, rec *model.LeadRecord) (int64, error) {
	nameKey, stateKey := model.IdentityKey(rec.Name, rec.State)
	now := time.Now().UTC()
	rec.State = stateKey
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (
			name, name_key, contact_name, source, source_id,
			address, city, state, zip_code, country,
			phone, email, website, linkedin_url,
			qualified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, nameKey, rec.ContactName, rec.Source, rec.SourceID,
		rec.Address, rec.City, stateKey, rec.ZipCode, rec.Country,
		rec.Phone, rec.Email, rec.Website, rec.LinkedInURL,
		rec.Qualified, now, now,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, eris.Wrapf(err, "sqlite: insert lead %q", rec.Name)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	rec.ID = id
	return id, nil
}

func (s *SQLiteStore) FindByIdentity(ctx context.Context, name, state string) (*model.LeadRecord, error) {
	nameKey, stateKey := model.IdentityKey(name, state)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE name_key = ? AND state = ?`,
		nameKey, stateKey,
	)

	rec, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find by identity")
	}
	return rec, nil
}

func (s *SQLiteStore) ListPendingEnrichment(ctx context.Context, country string, limit int) ([]model.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads
		 WHERE last_enriched_at IS NULL AND qualified = 1`
	args := []any{}
	if country != "" {
		query += ` AND country = ?`
		args = append(args, country)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending enrichment")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) UpdateEnrichment(ctx context.Context, rec *model.LeadRecord) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now

	var hasCRM any
	if rec.HasCRM != nil {
		hasCRM = *rec.HasCRM
	}
	var enrichedAt any
	if rec.LastEnrichedAt != nil {
		enrichedAt = rec.LastEnrichedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			phone = ?, email = ?, website = ?, linkedin_url = ?,
			has_crm = ?, crm_detected = ?, tech_stack = ?, is_spa = ?,
			has_job_postings = ?, has_linkedin = ?, company_type = ?, employee_count = ?,
			score = ?, qualified = ?, disqualification_reason = ?,
			updated_at = ?, last_enriched_at = ?
		 WHERE id = ?`,
		rec.Phone, rec.Email, rec.Website, rec.LinkedInURL,
		hasCRM, rec.CRMDetected, rec.TechStack, rec.IsSPA,
		rec.HasJobPostings, rec.HasLinkedIn, string(rec.CompanyType), rec.EmployeeCount,
		rec.Score, rec.Qualified, rec.DisqualificationReason,
		now, enrichedAt,
		rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update enrichment %d", rec.ID)
	}
	return checkRowsAffected(res, "lead", rec.ID)
}

func (s *SQLiteStore) MarkPending(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET last_enriched_at = NULL, qualified = 1,
		 disqualification_reason = '', updated_at = ?
		 WHERE id IN (`+placeholders+`)`,
		args...,
	)
	return eris.Wrap(err, "sqlite: mark pending")
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]model.LeadRecord, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, strings.ToUpper(filter.State))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Qualified != nil {
		query += ` AND qualified = ?`
		args = append(args, *filter.Qualified)
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) ListQualified(ctx context.Context, minScore float64, limit int) ([]model.LeadRecord, error) {
	qualified := true
	return s.List(ctx, ListFilter{Qualified: &qualified, MinScore: minScore, Limit: limit})
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(qualified), 0),
			COALESCE(SUM(email != ''), 0),
			COALESCE(SUM(phone != ''), 0),
			COALESCE(SUM(last_enriched_at IS NOT NULL), 0)
		 FROM leads`,
	)

	var st model.Stats
	if err := row.Scan(&st.Total, &st.Qualified, &st.WithEmail, &st.WithPhone, &st.Enriched); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

// helpers

func isSQLiteUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_UNIQUE in the message.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.LeadRecord, error) {
	var rec model.LeadRecord
	var hasCRM sql.NullBool
	var companyType string
	var enrichedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.ContactName, &rec.Source, &rec.SourceID,
		&rec.Address, &rec.City, &rec.State, &rec.ZipCode, &rec.Country,
		&rec.Phone, &rec.Email, &rec.Website, &rec.LinkedInURL,
		&hasCRM, &rec.CRMDetected, &rec.TechStack, &rec.IsSPA, &rec.HasJobPostings, &rec.HasLinkedIn,
		&companyType, &rec.EmployeeCount,
		&rec.Score, &rec.Qualified, &rec.DisqualificationReason,
		&rec.CreatedAt, &rec.UpdatedAt, &enrichedAt,
	)
	if err != nil {
		return nil, err
	}

	if hasCRM.Valid {
		v := hasCRM.Bool
		rec.HasCRM = &v
	}
	rec.CompanyType = model.CompanyType(companyType)
	if enrichedAt.Valid {
		t := enrichedAt.Time.UTC()
		rec.LastEnrichedAt = &t
	}
	return &rec, nil
}

func collectLeads(rows *sql.Rows) ([]model.LeadRecord, error) {
	var leads []model.LeadRecord
	for rows.Next() {
		rec, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan lead")
		}
		leads = append(leads, *rec)
	}
	return leads, eris.Wrap(rows.Err(), "iterate leads")
}
