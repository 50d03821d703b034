package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/pkg/jina"
	"github.com/sells-group/research-agent/pkg/serpapi"
)

// Provider names accepted by config.
const (
	ProviderSerpAPI = "serpapi"
	ProviderJina    = "jina"
	ProviderMock    = "mock"
)

// SerpAPI adapts the SerpAPI client. Organic results keep their full record;
// an answer box, when present, is appended as one more result.
type SerpAPI struct {
	client serpapi.Client
	num    int
}

// NewSerpAPI wraps client. num caps results per query (0 = provider default).
func NewSerpAPI(client serpapi.Client, num int) *SerpAPI {
	return &SerpAPI{client: client, num: num}
}

func (p *SerpAPI) Name() string { return ProviderSerpAPI }

func (p *SerpAPI) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := p.client.Search(ctx, serpapi.SearchRequest{Query: query, Num: p.num})
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.OrganicResults)+1)
	for _, raw := range resp.OrganicResults {
		out = append(out, model.ResultFromMap(raw))
	}
	if len(resp.AnswerBox) > 0 {
		box := model.ResultFromMap(resp.AnswerBox)
		if box.Extra == nil {
			box.Extra = map[string]any{}
		}
		box.Extra["type"] = "answer_box"
		out = append(out, box)
	}
	return out, nil
}

// Jina adapts the Jina search client.
type Jina struct {
	client jina.Client
}

// NewJina wraps client.
func NewJina(client jina.Client) *Jina { return &Jina{client: client} }

func (p *Jina) Name() string { return ProviderJina }

func (p *Jina) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{URL: r.URL, Title: r.Title, Snippet: snippet})
	}
	return out, nil
}

// Mock returns Results fabricated results per query, each with a fresh
// URL. It needs no network or credentials.
type Mock struct {
	Results int
	Host    string
}

// NewMock returns a mock provider yielding n results per query.
func NewMock(n int) *Mock {
	if n <= 0 {
		n = 3
	}
	return &Mock{Results: n, Host: "search.mock"}
}

func (p *Mock) Name() string { return ProviderMock }

func (p *Mock) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "search: mock")
	}
	slug := []rune(strings.ToLower(strings.Join(strings.Fields(query), "-")))
	if len(slug) > 40 {
		slug = slug[:40]
	}
	out := make([]model.SearchResult, p.Results)
	for i := range out {
		out[i] = model.SearchResult{
			URL:     fmt.Sprintf("https://%s/%s/%s", p.Host, url.PathEscape(string(slug)), uuid.NewString()),
			Title:   fmt.Sprintf("Result %d for %s", i+1, query),
			Snippet: fmt.Sprintf("Mock snippet %d about %s", i+1, query),
			Extra:   map[string]any{"position": i + 1},
		}
	}
	return out, nil
}
