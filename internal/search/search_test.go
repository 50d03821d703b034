package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/resilience"
	"github.com/sells-group/research-agent/internal/search/mocks"
	"github.com/sells-group/research-agent/pkg/jina"
	"github.com/sells-group/research-agent/pkg/serpapi"
	serpmocks "github.com/sells-group/research-agent/pkg/serpapi/mocks"
)

func testGatewayConfig() GatewayConfig {
	cfg := DefaultGatewayConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return cfg
}

func newMockProvider(t *testing.T) *mocks.MockProvider {
	p := mocks.NewMockProvider(t)
	p.On("Name").Return("stub").Maybe()
	return p
}

func TestGateway_Success(t *testing.T) {
	p := newMockProvider(t)
	results := []model.SearchResult{{URL: "https://a.example"}, {URL: "https://b.example"}, {URL: "https://c.example"}}
	p.On("Search", mock.Anything, "acme pricing").Return(results, nil).Once()

	cfg := testGatewayConfig()
	cfg.MaxResults = 2
	out := NewGateway(p, cfg).Search(context.Background(), "acme pricing")

	require.NoError(t, out.Err)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, model.PayloadResults, out.Payload().Kind)
}

func TestGateway_PermanentFailureIsContained(t *testing.T) {
	p := newMockProvider(t)
	p.On("Search", mock.Anything, "q").Return(nil, errors.New("invalid api key")).Once()

	out := NewGateway(p, testGatewayConfig()).Search(context.Background(), "q")

	require.Error(t, out.Err)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.True(t, out.Payload().IsEmpty())
}

func TestGateway_RetriesTransientFailure(t *testing.T) {
	p := newMockProvider(t)
	p.On("Search", mock.Anything, "q").Return(nil, resilience.NewTransientError(errors.New("503"), 503)).Once()
	p.On("Search", mock.Anything, "q").Return([]model.SearchResult{{URL: "https://ok.example"}}, nil).Once()

	out := NewGateway(p, testGatewayConfig()).Search(context.Background(), "q")

	require.NoError(t, out.Err)
	assert.Len(t, out.Results, 1)
}

func TestGateway_TimeoutBoundsEachCall(t *testing.T) {
	p := newMockProvider(t)
	p.On("Search", mock.Anything, "slow").Return(func(ctx context.Context, _ string) ([]model.SearchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	out := NewGateway(p, testGatewayConfig()).Search(context.Background(), "slow")

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Empty(t, out.Results)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateway_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	p := newMockProvider(t)
	p.On("Search", mock.Anything, "q").Return(nil, errors.New("down")).Times(2)

	cfg := testGatewayConfig()
	cfg.Breaker = resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}
	g := NewGateway(p, cfg)

	g.Search(context.Background(), "q")
	g.Search(context.Background(), "q")
	out := g.Search(context.Background(), "q")

	assert.ErrorIs(t, out.Err, resilience.ErrCircuitOpen)
}

func TestGateway_RateLimitWaitRespectsContext(t *testing.T) {
	p := newMockProvider(t)
	p.On("Search", mock.Anything, "q").Return([]model.SearchResult{}, nil).Once()

	cfg := testGatewayConfig()
	cfg.RateLimit = 0.001
	g := NewGateway(p, cfg)
	require.NoError(t, g.Search(context.Background(), "q").Err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out := g.Search(ctx, "q")
	assert.Error(t, out.Err)
}

func TestMock_UniqueURLs(t *testing.T) {
	m := NewMock(3)
	a, err := m.Search(context.Background(), "Acme Jane Doe CTO pricing model")
	require.NoError(t, err)
	b, err := m.Search(context.Background(), "Acme Jane Doe CTO pricing model")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range append(a, b...) {
		assert.True(t, strings.HasPrefix(r.URL, "https://search.mock/acme-jane-doe-cto-pricing-model/"))
		assert.False(t, seen[r.URL], "duplicate url %s", r.URL)
		seen[r.URL] = true
	}
	assert.Len(t, seen, 6)
}

func TestSerpAPIProvider(t *testing.T) {
	client := serpmocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.SearchRequest{Query: "acme", Num: 5}).Return(&serpapi.SearchResponse{
		OrganicResults: []map[string]any{
			{"position": 1, "title": "Acme", "link": "https://acme.com", "snippet": "Widgets"},
		},
		AnswerBox: map[string]any{"snippet": "Acme is a widget maker", "link": "https://wiki.example/acme"},
	}, nil)

	results, err := NewSerpAPI(client, 5).Search(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://acme.com", results[0].URL)
	assert.Equal(t, 1, results[0].Extra["position"])
	assert.Equal(t, "answer_box", results[1].Extra["type"])
}

func TestJinaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":[
			{"title":"Acme","url":"https://acme.com","description":"Widgets"},
			{"title":"Docs","url":"https://docs.acme.com","content":"Full page text"}
		]}`))
	}))
	defer srv.Close()

	p := NewJina(jina.NewClient("k", jina.WithSearchBaseURL(srv.URL)))
	results, err := p.Search(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Widgets", results[0].Snippet)
	assert.Equal(t, "Full page text", results[1].Snippet)
	assert.Equal(t, ProviderJina, p.Name())
}
