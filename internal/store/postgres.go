package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harvestline/leadgen-cli/internal/db"
	"github.com/harvestline/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"find_identity": `SELECT id FROM leads WHERE name_key = $1 AND state = $2`,
	"mark_enriched": `UPDATE leads SET last_enriched_at = $1, updated_at = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk ingestion).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                      BIGSERIAL PRIMARY KEY,
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
	has_crm                 BOOLEAN,
	crm_detected            TEXT NOT NULL DEFAULT '',
	tech_stack              TEXT NOT NULL DEFAULT '',
	is_spa                  BOOLEAN NOT NULL DEFAULT false,
	has_job_postings        BOOLEAN NOT NULL DEFAULT false,
	has_linkedin            BOOLEAN NOT NULL DEFAULT false,
	company_type            TEXT NOT NULL DEFAULT '',
	employee_count          INTEGER NOT NULL DEFAULT 0,
	score                   DOUBLE PRECISION NOT NULL DEFAULT 0,
	qualified               BOOLEAN NOT NULL DEFAULT true,
	disqualification_reason TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_enriched_at        TIMESTAMPTZ,
	UNIQUE(name_key, state)
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment ON leads(id) WHERE last_enriched_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_leads_qualified ON leads(qualified, score DESC);
CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(state);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *model.LeadRecord) (int64, error) {
	nameKey, stateKey := model.IdentityKey(rec.Name, rec.State)
	now := time.Now().UTC()
	rec.State = stateKey
	rec.CreatedAt = now
	rec.UpdatedAt = now

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (
			name, name_key, contact_name, source, source_id,
			address, city, state, zip_code, country,
			phone, email, website, linkedin_url,
			qualified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (name_key, state) DO NOTHING
		RETURNING id`,
		rec.Name, nameKey, rec.ContactName, rec.Source, rec.SourceID,
		rec.Address, rec.City, stateKey, rec.ZipCode, rec.Country,
		rec.Phone, rec.Email, rec.Website, rec.LinkedInURL,
		rec.Qualified, now, now,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert lead %q", rec.Name)
	}
	rec.ID = id
	return id, nil
}

// BulkInsert admits a batch of candidates in one round trip via COPY and
// INSERT ... ON CONFLICT DO NOTHING. Duplicates are silently skipped; the
// return value is the number of rows that landed.
func (s *PostgresStore) BulkInsert(ctx context.Context, recs []model.LeadRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		nameKey, stateKey := model.IdentityKey(rec.Name, rec.State)
		rows = append(rows, []any{
			rec.Name, nameKey, rec.ContactName, rec.Source, rec.SourceID,
			rec.Address, rec.City, stateKey, rec.ZipCode, rec.Country,
			rec.Phone, rec.Email, rec.Website, rec.LinkedInURL,
			true, now, now,
		})
	}

	return db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table: "leads",
		Columns: []string{
			"name", "name_key", "contact_name", "source", "source_id",
			"address", "city", "state", "zip_code", "country",
			"phone", "email", "website", "linkedin_url",
			"qualified", "created_at", "updated_at",
		},
		ConflictKeys: []string{"name_key", "state"},
	}, rows)
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, name, state string) (*model.LeadRecord, error) {
	nameKey, stateKey := model.IdentityKey(name, state)
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE name_key = $1 AND state = $2`,
		nameKey, stateKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find by identity")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "postgres: find by identity")
	}
	rec, err := scanLead(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	return rec, nil
}

func (s *PostgresStore) ListPendingEnrichment(ctx context.Context, country string, limit int) ([]model.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads
		 WHERE last_enriched_at IS NULL AND qualified`
	args := []any{}
	if country != "" {
		query += ` AND country = $1 ORDER BY id LIMIT $2`
		args = append(args, country, limit)
	} else {
		query += ` ORDER BY id LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending enrichment")
	}
	defer rows.Close()
	return collectPgxLeads(rows)
}

func (s *PostgresStore) UpdateEnrichment(ctx context.Context, rec *model.LeadRecord) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			phone = $1, email = $2, website = $3, linkedin_url = $4,
			has_crm = $5, crm_detected = $6, tech_stack = $7, is_spa = $8,
			has_job_postings = $9, has_linkedin = $10, company_type = $11, employee_count = $12,
			score = $13, qualified = $14, disqualification_reason = $15,
			updated_at = $16, last_enriched_at = $17
		 WHERE id = $18`,
		rec.Phone, rec.Email, rec.Website, rec.LinkedInURL,
		rec.HasCRM, rec.CRMDetected, rec.TechStack, rec.IsSPA,
		rec.HasJobPostings, rec.HasLinkedIn, string(rec.CompanyType), rec.EmployeeCount,
		rec.Score, rec.Qualified, rec.DisqualificationReason,
		now, rec.LastEnrichedAt,
		rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update enrichment %d", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %d", rec.ID)
	}
	return nil
}

func (s *PostgresStore) MarkPending(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET last_enriched_at = NULL, qualified = true,
		 disqualification_reason = '', updated_at = $1
		 WHERE id = ANY($2)`,
		time.Now().UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark pending")
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]model.LeadRecord, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, strings.ToUpper(filter.State))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.Qualified != nil {
		query += fmt.Sprintf(` AND qualified = $%d`, argIdx)
		args = append(args, *filter.Qualified)
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY score DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()
	return collectPgxLeads(rows)
}

func (s *PostgresStore) ListQualified(ctx context.Context, minScore float64, limit int) ([]model.LeadRecord, error) {
	qualified := true
	return s.List(ctx, ListFilter{Qualified: &qualified, MinScore: minScore, Limit: limit})
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE qualified),
			COUNT(*) FILTER (WHERE email != ''),
			COUNT(*) FILTER (WHERE phone != ''),
			COUNT(*) FILTER (WHERE last_enriched_at IS NOT NULL)
		 FROM leads`,
	).Scan(&st.Total, &st.Qualified, &st.WithEmail, &st.WithPhone, &st.Enriched)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

func collectPgxLeads(rows pgx.Rows) ([]model.LeadRecord, error) {
	var leads []model.LeadRecord
	for rows.Next() {
		rec, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *rec)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
