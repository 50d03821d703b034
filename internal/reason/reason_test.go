package reason

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/resilience"
	"github.com/sells-group/research-agent/pkg/anthropic"
	"github.com/sells-group/research-agent/pkg/perplexity"
)

func testRequest() Request {
	return Request{
		Query:   "Acme Jane Doe CTO pricing model",
		Person:  model.Person{ID: "p1", Name: "Jane Doe", Title: "CTO"},
		Company: model.Company{ID: "c1", Name: "Acme", Domain: "acme.io"},
		Fields:  []string{"Pricing model"},
		Results: []model.SearchResult{
			{URL: "https://acme.io/pricing", Title: "Pricing", Snippet: "Per seat"},
			{URL: "https://news.example/acme", Title: "Acme raises"},
			{URL: "https://acme.io/pricing", Title: "dup"},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(testRequest())
	assert.Contains(t, p, "Research question: Acme Jane Doe CTO pricing model")
	assert.Contains(t, p, "Company: Acme (acme.io)")
	assert.Contains(t, p, "Contact: Jane Doe, CTO")
	assert.Contains(t, p, "Find: Pricing model")
	assert.Contains(t, p, "1. Pricing: Per seat <https://acme.io/pricing>")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", normalize(" NOT_FOUND. "))
	assert.Equal(t, "", normalize("not_found"))
	assert.Equal(t, "Per seat pricing.", normalize("\nPer seat pricing.\n"))
}

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	model string
	conf  *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, conf *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.conf = conf
	return f.resp, f.err
}

func TestGemini_GroundedAnswer(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "Acme charges per seat."}}},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://acme.io/pricing"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://acme.io/pricing"}},
				{Web: &genai.GroundingChunkWeb{URI: "https://g2.example/acme"}},
			}},
		}},
	}}
	g := &Gemini{models: gen, cfg: GeminiConfig{Model: "gemini-test", Grounding: true}}

	ans, err := g.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Acme charges per seat.", ans.Text)
	assert.Equal(t, []string{"https://acme.io/pricing", "https://g2.example/acme"}, ans.Sources)
	assert.Equal(t, "gemini-test", gen.model)
	require.Len(t, gen.conf.Tools, 1)
	assert.NotNil(t, gen.conf.Tools[0].GoogleSearch)
}

func TestGemini_TransientAPIError(t *testing.T) {
	g := &Gemini{models: &fakeGenerator{err: genai.APIError{Code: 429}}, cfg: GeminiConfig{}}
	_, err := g.Reason(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	g = &Gemini{models: &fakeGenerator{err: genai.APIError{Code: 400}}, cfg: GeminiConfig{}}
	_, err = g.Reason(context.Background(), testRequest())
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{APIKey: " "})
	assert.Error(t, err)
}

type fakeAnthropic struct {
	req  anthropic.MessageRequest
	text string
	err  error
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}}}, nil
}

func TestAnthropic_SourcesFromResults(t *testing.T) {
	fc := &fakeAnthropic{text: "Per seat, billed annually."}
	a := NewAnthropic(fc, "", 0, 0.2)

	ans, err := a.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Per seat, billed annually.", ans.Text)
	assert.Equal(t, []string{"https://acme.io/pricing", "https://news.example/acme"}, ans.Sources)
	assert.Equal(t, int64(512), fc.req.MaxTokens)
	assert.Equal(t, systemPrompt, fc.req.System)
}

func TestAnthropic_NotFound(t *testing.T) {
	a := NewAnthropic(&fakeAnthropic{text: "NOT_FOUND"}, "m", 100, 0)
	ans, err := a.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, ans.Text)
	assert.Empty(t, ans.Sources)
}

type fakePerplexity struct {
	resp *perplexity.Response
	err  error
	got  perplexity.Request
}

func (f *fakePerplexity) Complete(_ context.Context, req perplexity.Request) (*perplexity.Response, error) {
	f.got = req
	return f.resp, f.err
}

func TestPerplexity_CitationsAndSearchResults(t *testing.T) {
	fake := &fakePerplexity{resp: &perplexity.Response{
		Choices:       []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: "Usage based."}}},
		Citations:     []string{"https://a.example"},
		SearchResults: []perplexity.SearchResult{{URL: "https://b.example"}, {URL: "https://a.example"}},
	}}
	p := NewPerplexity(fake, "sonar", 0.2)

	ans, err := p.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Usage based.", ans.Text)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ans.Sources)
	assert.Equal(t, "sonar", fake.got.Model)
	assert.InDelta(t, 0.2, fake.got.Temperature, 1e-9)
	require.Len(t, fake.got.Messages, 2)
	assert.Equal(t, "system", fake.got.Messages[0].Role)
}

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f.resp, f.err
}

func TestOpenAI_Answer(t *testing.T) {
	o := &OpenAI{client: &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Freemium."}}},
	}}, model: "m"}

	ans, err := o.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Freemium.", ans.Text)
	assert.Len(t, ans.Sources, 2)
}

func TestOpenAI_NoChoices(t *testing.T) {
	o := &OpenAI{client: &fakeChat{}, model: "m"}
	_, err := o.Reason(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestOpenAI_TransientStatus(t *testing.T) {
	o := &OpenAI{client: &fakeChat{err: &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}}, model: "m"}
	_, err := o.Reason(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestMock(t *testing.T) {
	ans, err := Mock{}.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Acme: mock findings for Pricing model.", ans.Text)
	assert.Equal(t, []string{"https://acme.io/pricing"}, ans.Sources)
}

type flakyReasoner struct {
	calls int
	fails int
}

func (f *flakyReasoner) Name() string { return "flaky" }

func (f *flakyReasoner) Reason(context.Context, Request) (Answer, error) {
	f.calls++
	if f.calls <= f.fails {
		return Answer{}, resilience.NewTransientError(errors.New("busy"), http.StatusTooManyRequests)
	}
	return Answer{Text: "ok"}, nil
}

func TestGuarded_RetriesTransient(t *testing.T) {
	inner := &flakyReasoner{fails: 2}
	g := WithResilience(inner, time.Second, resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	ans, err := g.Reason(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", ans.Text)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "flaky", g.Name())
}

func TestGuarded_GivesUp(t *testing.T) {
	inner := &flakyReasoner{fails: 5}
	g := WithResilience(inner, 0, resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond})

	_, err := g.Reason(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Contains(t, err.Error(), "reason: flaky")
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	r, err := New(ctx, Options{Provider: "none"}, "")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = New(ctx, Options{Provider: "mock"}, "")
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, r.Name())

	_, err = New(ctx, Options{Provider: "anthropic"}, "")
	assert.Error(t, err)

	r, err = New(ctx, Options{Provider: "Perplexity"}, "k")
	require.NoError(t, err)
	assert.Equal(t, ProviderPerplexity, r.Name())

	r, err = New(ctx, Options{Provider: "openai", BaseURL: "http://localhost:1"}, "k")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, r.Name())

	_, err = New(ctx, Options{Provider: "cohere"}, "k")
	assert.Error(t, err)
}
