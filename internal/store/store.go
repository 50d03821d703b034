// Package store persists the enrichment audit trail and context snippets and
// resolves people and companies. Implementations: in-memory, SQLite,
// Postgres, and a Salesforce-backed Lookup.
package store

import (
	"context"

	"github.com/sells-group/research-agent/internal/model"
)

// Lookup resolves entities by ID. A missing entity is (nil, nil).
type Lookup interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
}

// Directory is a Lookup that can also enumerate people.
type Directory interface {
	Lookup
	ListPeople(ctx context.Context, limit int) ([]model.Person, error)
}

// LogSink receives one SearchLogRecord per enrichment round.
type LogSink interface {
	AppendLog(ctx context.Context, rec model.SearchLogRecord) error
	// BackfillSnippetID sets context_snippet_id on every record of runID
	// that does not have one yet and returns how many were updated.
	BackfillSnippetID(ctx context.Context, runID, snippetID string) (int64, error)
}

// SnippetSink receives the final ContextSnippet of a run.
type SnippetSink interface {
	SaveSnippet(ctx context.Context, snip model.ContextSnippet) error
}

// LogFilter narrows ListLogs. Zero values match everything.
type LogFilter struct {
	RunID string
	Limit int
}

// SnippetFilter narrows ListSnippets. Zero values match everything.
type SnippetFilter struct {
	EntityType model.EntityType
	EntityID   string
	Limit      int
}

// Store is a full persistence backend.
type Store interface {
	Directory
	LogSink
	SnippetSink

	ListLogs(ctx context.Context, filter LogFilter) ([]model.SearchLogRecord, error)
	ListSnippets(ctx context.Context, filter SnippetFilter) ([]model.ContextSnippet, error)

	// Seeding.
	UpsertCompanies(ctx context.Context, companies []model.Company) (int64, error)
	UpsertPeople(ctx context.Context, people []model.Person) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
