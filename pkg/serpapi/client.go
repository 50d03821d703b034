// Package serpapi provides a client for the SerpAPI Google search endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs web searches through SerpAPI.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest holds the query parameters for GET /search.
type SearchRequest struct {
	Query string
	// Num caps the organic results returned. Zero leaves it to SerpAPI.
	Num      int
	Location string
}

// SearchResponse is the subset of the SerpAPI payload the agent reads.
type SearchResponse struct {
	OrganicResults []map[string]any `json:"organic_results"`
	AnswerBox      map[string]any   `json:"answer_box,omitempty"`
	KnowledgeGraph map[string]any   `json:"knowledge_graph,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithEngine selects the SerpAPI engine (default "google").
func WithEngine(engine string) Option {
	return func(c *httpClient) {
		c.engine = engine
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	engine  string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		engine:  "google",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("engine", c.engine)
	q.Set("q", req.Query)
	q.Set("api_key", c.apiKey)
	q.Set("output", "json")
	if req.Num > 0 {
		q.Set("num", strconv.Itoa(req.Num))
	}
	if req.Location != "" {
		q.Set("location", req.Location)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}

	// SerpAPI reports "no results" as an error string on a 200.
	if result.Error != "" && len(result.OrganicResults) == 0 && !isNoResults(result.Error) {
		return nil, eris.Errorf("serpapi: %s", result.Error)
	}

	return &result, nil
}

func isNoResults(msg string) bool {
	return msg == "Google hasn't returned any results for this query."
}
