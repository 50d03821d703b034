package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/research-agent/internal/model"
)

// MemoryStore is a process-local Store. Listings are ordered the same way
// as the SQL stores.
type MemoryStore struct {
	mu        sync.RWMutex
	people    map[string]model.Person
	companies map[string]model.Company
	logs      []model.SearchLogRecord
	snippets  []model.ContextSnippet
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		people:    make(map[string]model.Person),
		companies: make(map[string]model.Company),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) GetPerson(_ context.Context, id string) (*model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) GetCompany(_ context.Context, id string) (*model.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) ListPeople(_ context.Context, limit int) ([]model.Person, error) {
	s.mu.RLock()
	out := make([]model.Person, 0, len(s.people))
	for _, p := range s.people {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return capLimit(out, limit), nil
}

func (s *MemoryStore) UpsertCompanies(_ context.Context, companies []model.Company) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range companies {
		s.companies[c.ID] = c
	}
	return int64(len(companies)), nil
}

func (s *MemoryStore) UpsertPeople(_ context.Context, people []model.Person) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range people {
		s.people[p.ID] = p
	}
	return int64(len(people)), nil
}

func (s *MemoryStore) AppendLog(_ context.Context, rec model.SearchLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.TopResults = append([]model.SearchResult{}, rec.TopResults...)
	s.logs = append(s.logs, rec)
	return nil
}

func (s *MemoryStore) BackfillSnippetID(_ context.Context, runID, snippetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.logs {
		if s.logs[i].RunID == runID && s.logs[i].ContextSnippetID == nil {
			id := snippetID
			s.logs[i].ContextSnippetID = &id
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListLogs(_ context.Context, filter LogFilter) ([]model.SearchLogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SearchLogRecord
	for _, rec := range s.logs {
		if filter.RunID != "" && rec.RunID != filter.RunID {
			continue
		}
		if rec.ContextSnippetID != nil {
			id := *rec.ContextSnippetID
			rec.ContextSnippetID = &id
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Iteration < out[j].Iteration
	})
	return capLimit(out, filter.Limit), nil
}

func (s *MemoryStore) SaveSnippet(_ context.Context, snip model.ContextSnippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snip.Payload = snip.Payload.Clone()
	snip.SourceURLs = append([]string(nil), snip.SourceURLs...)
	s.snippets = append(s.snippets, snip)
	return nil
}

func (s *MemoryStore) ListSnippets(_ context.Context, filter SnippetFilter) ([]model.ContextSnippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ContextSnippet
	for _, snip := range s.snippets {
		if filter.EntityType != "" && snip.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && snip.EntityID != filter.EntityID {
			continue
		}
		snip.Payload = snip.Payload.Clone()
		out = append(out, snip)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return capLimit(out, filter.Limit), nil
}

func capLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
