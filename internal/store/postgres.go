package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/db"
	"github.com/sells-group/research-agent/internal/model"
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

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
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

// Pool exposes the underlying pool for the seed path.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	campaign_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS people (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	company_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS context_snippets (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	snippet_type TEXT NOT NULL,
	payload      JSONB NOT NULL,
	source_urls  JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_logs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id             TEXT NOT NULL,
	context_snippet_id TEXT,
	iteration          INTEGER NOT NULL,
	query              TEXT NOT NULL,
	top_results        JSONB NOT NULL,
	search_error       TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_people_company_id ON people(company_id);
CREATE INDEX IF NOT EXISTS idx_snippets_entity ON context_snippets(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_search_logs_run_id ON search_logs(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
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

func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	var p model.Person
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, title, email, role, company_id FROM people WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Title, &p.Email, &p.Role, &p.CompanyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get person %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, domain, campaign_id FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Domain, &c.CampaignID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListPeople(ctx context.Context, limit int) ([]model.Person, error) {
	query := `SELECT id, name, title, email, role, company_id FROM people ORDER BY name`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list people")
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Title, &p.Email, &p.Role, &p.CompanyID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate people")
}

var (
	companyUpsert = db.UpsertConfig{
		Table:        "companies",
		Columns:      []string{"id", "name", "domain", "campaign_id"},
		ConflictKeys: []string{"id"},
	}
	personUpsert = db.UpsertConfig{
		Table:        "people",
		Columns:      []string{"id", "name", "title", "email", "role", "company_id"},
		ConflictKeys: []string{"id"},
	}
)

func (s *PostgresStore) UpsertCompanies(ctx context.Context, companies []model.Company) (int64, error) {
	rows := make([][]any, len(companies))
	for i, c := range companies {
		rows[i] = []any{c.ID, c.Name, c.Domain, c.CampaignID}
	}
	n, err := db.BulkUpsert(ctx, s.pool, companyUpsert, rows)
	return n, eris.Wrap(err, "postgres: upsert companies")
}

func (s *PostgresStore) UpsertPeople(ctx context.Context, people []model.Person) (int64, error) {
	rows := make([][]any, len(people))
	for i, p := range people {
		rows[i] = []any{p.ID, p.Name, p.Title, p.Email, p.Role, p.CompanyID}
	}
	n, err := db.BulkUpsert(ctx, s.pool, personUpsert, rows)
	return n, eris.Wrap(err, "postgres: upsert people")
}

func (s *PostgresStore) AppendLog(ctx context.Context, rec model.SearchLogRecord) error {
	results, err := jsonArg(nonNilResults(rec.TopResults))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal top results")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_logs (id, run_id, context_snippet_id, iteration, query, top_results, search_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.RunID, rec.ContextSnippetID, rec.Iteration, rec.Query, results, rec.SearchError, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append log %s", rec.ID)
}

func (s *PostgresStore) BackfillSnippetID(ctx context.Context, runID, snippetID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_logs SET context_snippet_id = $1 WHERE run_id = $2 AND context_snippet_id IS NULL`,
		snippetID, runID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: backfill run %s", runID)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.SearchLogRecord, error) {
	query := `SELECT id, run_id, context_snippet_id, iteration, query, top_results, search_error, created_at FROM search_logs`
	var args []any
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(` WHERE run_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at, iteration`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var out []model.SearchLogRecord
	for rows.Next() {
		var (
			rec     model.SearchLogRecord
			results []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ContextSnippetID, &rec.Iteration, &rec.Query, &results, &rec.SearchError, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log")
		}
		if err := unmarshalJSON(results, &rec.TopResults); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal top results for %s", rec.ID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate logs")
}

func (s *PostgresStore) SaveSnippet(ctx context.Context, snip model.ContextSnippet) error {
	payload, urls, err := encodeSnippet(snip)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO context_snippets (id, entity_type, entity_id, snippet_type, payload, source_urls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snip.ID, string(snip.EntityType), snip.EntityID, snip.SnippetType, string(payload), string(urls), snip.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save snippet %s", snip.ID)
}

func (s *PostgresStore) ListSnippets(ctx context.Context, filter SnippetFilter) ([]model.ContextSnippet, error) {
	query := `SELECT id, entity_type, entity_id, snippet_type, payload, source_urls, created_at FROM context_snippets WHERE true`
	var args []any
	if filter.EntityType != "" {
		args = append(args, string(filter.EntityType))
		query += fmt.Sprintf(` AND entity_type = $%d`, len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(` AND entity_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snippets")
	}
	defer rows.Close()

	var out []model.ContextSnippet
	for rows.Next() {
		var (
			snip          model.ContextSnippet
			entityType    string
			payload, urls []byte
		)
		if err := rows.Scan(&snip.ID, &entityType, &snip.EntityID, &snip.SnippetType, &payload, &urls, &snip.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snippet")
		}
		snip.EntityType = model.EntityType(entityType)
		if err := decodeSnippet(&snip, payload, urls); err != nil {
			return nil, err
		}
		out = append(out, snip)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate snippets")
}
