package model

import "time"

// SnippetTypeResearch is the only snippet type written by the enrichment loop.
const SnippetTypeResearch = "research"

// SearchLogRecord is the audit entry for one enrichment round.
// ContextSnippetID stays nil until the run's snippet has been saved and
// backfilled.
type SearchLogRecord struct {
	ID               string         `json:"id"`
	RunID            string         `json:"run_id"`
	ContextSnippetID *string        `json:"context_snippet_id"`
	Iteration        int            `json:"iteration"`
	Query            string         `json:"query"`
	TopResults       []SearchResult `json:"top_results"`
	SearchError      string         `json:"search_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ContextSnippet is the final enrichment output of a run.
type ContextSnippet struct {
	ID          string       `json:"id"`
	EntityType  EntityType   `json:"entity_type"`
	EntityID    string       `json:"entity_id"`
	SnippetType string       `json:"snippet_type"`
	Payload     FieldMapping `json:"payload"`
	SourceURLs  []string     `json:"source_urls"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RunStatus describes how a finished enrichment run went.
type RunStatus string

const (
	// RunCompleted means the result was computed and fully persisted.
	RunCompleted RunStatus = "completed"
	// RunPartial means the result was computed but at least one write failed.
	RunPartial RunStatus = "partial"
)
