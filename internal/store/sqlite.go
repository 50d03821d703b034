package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/research-agent/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	id           TEXT PRIMARY KEY,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	snippet_type TEXT NOT NULL,
	payload      TEXT NOT NULL,
	source_urls  TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_logs (
	id                 TEXT PRIMARY KEY,
	run_id             TEXT NOT NULL,
	context_snippet_id TEXT,
	iteration          INTEGER NOT NULL,
	query              TEXT NOT NULL,
	top_results        TEXT NOT NULL,
	search_error       TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_people_company_id ON people(company_id);
CREATE INDEX IF NOT EXISTS idx_snippets_entity ON context_snippets(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_search_logs_run_id ON search_logs(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	var p model.Person
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, title, email, role, company_id FROM people WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Title, &p.Email, &p.Role, &p.CompanyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get person %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, campaign_id FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Domain, &c.CampaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListPeople(ctx context.Context, limit int) ([]model.Person, error) {
	query := `SELECT id, name, title, email, role, company_id FROM people ORDER BY name`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list people")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Title, &p.Email, &p.Role, &p.CompanyID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate people")
}

func (s *SQLiteStore) UpsertCompanies(ctx context.Context, companies []model.Company) (int64, error) {
	return s.upsert(ctx, "companies",
		`INSERT INTO companies (id, name, domain, campaign_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, domain = excluded.domain, campaign_id = excluded.campaign_id`,
		len(companies), func(i int) []any {
			c := companies[i]
			return []any{c.ID, c.Name, c.Domain, c.CampaignID}
		})
}

func (s *SQLiteStore) UpsertPeople(ctx context.Context, people []model.Person) (int64, error) {
	return s.upsert(ctx, "people",
		`INSERT INTO people (id, name, title, email, role, company_id) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, title = excluded.title, email = excluded.email,
		 role = excluded.role, company_id = excluded.company_id`,
		len(people), func(i int) []any {
			p := people[i]
			return []any{p.ID, p.Name, p.Title, p.Email, p.Role, p.CompanyID}
		})
}

// upsert runs stmt once per row inside a single transaction.
func (s *SQLiteStore) upsert(ctx context.Context, table, stmt string, n int, row func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin upsert %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare upsert %s", table)
	}
	defer prepared.Close() //nolint:errcheck

	var total int64
	for i := 0; i < n; i++ {
		res, err := prepared.ExecContext(ctx, row(i)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s row %d", table, i)
		}
		affected, _ := res.RowsAffected()
		total += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit upsert %s", table)
	}
	return total, nil
}

func (s *SQLiteStore) AppendLog(ctx context.Context, rec model.SearchLogRecord) error {
	results, err := json.Marshal(nonNilResults(rec.TopResults))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal top results")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_logs (id, run_id, context_snippet_id, iteration, query, top_results, search_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.ContextSnippetID, rec.Iteration, rec.Query, string(results), rec.SearchError, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append log %s", rec.ID)
}

func (s *SQLiteStore) BackfillSnippetID(ctx context.Context, runID, snippetID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_logs SET context_snippet_id = ? WHERE run_id = ? AND context_snippet_id IS NULL`,
		snippetID, runID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: backfill run %s", runID)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.SearchLogRecord, error) {
	query := `SELECT id, run_id, context_snippet_id, iteration, query, top_results, search_error, created_at FROM search_logs`
	var args []any
	if filter.RunID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, filter.RunID)
	}
	query += ` ORDER BY created_at, iteration`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list logs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SearchLogRecord
	for rows.Next() {
		var (
			rec       model.SearchLogRecord
			snippetID sql.NullString
			results   string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &snippetID, &rec.Iteration, &rec.Query, &results, &rec.SearchError, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log")
		}
		if snippetID.Valid {
			rec.ContextSnippetID = &snippetID.String
		}
		if err := json.Unmarshal([]byte(results), &rec.TopResults); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal top results for %s", rec.ID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate logs")
}

func (s *SQLiteStore) SaveSnippet(ctx context.Context, snip model.ContextSnippet) error {
	payload, urls, err := encodeSnippet(snip)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO context_snippets (id, entity_type, entity_id, snippet_type, payload, source_urls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snip.ID, string(snip.EntityType), snip.EntityID, snip.SnippetType, string(payload), string(urls), snip.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save snippet %s", snip.ID)
}

func (s *SQLiteStore) ListSnippets(ctx context.Context, filter SnippetFilter) ([]model.ContextSnippet, error) {
	query := `SELECT id, entity_type, entity_id, snippet_type, payload, source_urls, created_at FROM context_snippets WHERE 1=1`
	var args []any
	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snippets")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ContextSnippet
	for rows.Next() {
		var (
			snip          model.ContextSnippet
			entityType    string
			payload, urls string
		)
		if err := rows.Scan(&snip.ID, &entityType, &snip.EntityID, &snip.SnippetType, &payload, &urls, &snip.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snippet")
		}
		snip.EntityType = model.EntityType(entityType)
		if err := decodeSnippet(&snip, []byte(payload), []byte(urls)); err != nil {
			return nil, err
		}
		out = append(out, snip)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate snippets")
}
