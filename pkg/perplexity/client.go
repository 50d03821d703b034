// Package perplexity talks to the Sonar chat completions endpoint. Sonar
// models search the web themselves, so a reply carries the sources it was
// grounded on next to the answer text.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/resilience"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.perplexity.ai"
	// DefaultModel is used when a request names no model.
	DefaultModel = "sonar-pro"

	// Error bodies are quoted into the returned error up to this size.
	maxErrorBody = 4 << 10
)

// Client answers a research prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is one completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message is a chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is a completion choice.
type Choice struct {
	Message Message `json:"message"`
}

// SearchResult is a page Sonar consulted.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Response keeps the parts of a completion the reasoner reads.
type Response struct {
	Choices       []Choice       `json:"choices"`
	Citations     []string       `json:"citations,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
}

// Text returns the content of the first choice, or "".
func (r *Response) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Sources returns citations followed by search result URLs. Duplicates are
// kept.
func (r *Response) Sources() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Citations)+len(r.SearchResults))
	out = append(out, r.Citations...)
	for _, sr := range r.SearchResults {
		if sr.URL != "" {
			out = append(out, sr.URL)
		}
	}
	return out
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at another host, such as a test server.
func WithBaseURL(url string) Option {
	return func(c *HTTPClient) { c.baseURL = url }
}

// HTTPClient is the Client backed by the REST API.
type HTTPClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient returns a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete posts req and decodes the reply. 429 and 5xx responses come back
// as resilience.TransientError.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := eris.Errorf("perplexity: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "perplexity: decode response")
	}
	return &out, nil
}
