// Package reason runs the LLM step of an enrichment round: given the round's
// query and search results it asks a model for a short free-text answer and
// the sources it relied on.
package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/resilience"
)

// Request is the input for one reasoning call.
type Request struct {
	Query   string
	Person  model.Person
	Company model.Company
	// Fields are the human readable labels of the fields being sought.
	Fields  []string
	Results []model.SearchResult
}

// Answer is the model's reply.
type Answer struct {
	Text    string
	Sources []string
}

// Payload wraps the answer text as a SearchPayload.
func (a Answer) Payload() model.SearchPayload {
	return model.TextPayload(a.Text)
}

// Reasoner produces an Answer for a Request.
type Reasoner interface {
	Name() string
	Reason(ctx context.Context, req Request) (Answer, error)
}

// Provider names accepted by config.
const (
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderOpenAI     = "openai"
	ProviderMock       = "mock"
	ProviderNone       = "none"
)

// notFound is the sentinel the prompt asks models to reply with when the
// search material does not answer the question.
const notFound = "NOT_FOUND"

const systemPrompt = `You are a B2B sales research assistant. Answer the research question about the company using the search results and your own web search when available.
Reply with plain prose, at most four sentences, naming concrete facts. Do not speculate.
If the information cannot be found, reply with exactly ` + notFound + `.`

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n", req.Query)
	fmt.Fprintf(&b, "Company: %s", req.Company.Name)
	if req.Company.Domain != "" {
		fmt.Fprintf(&b, " (%s)", req.Company.Domain)
	}
	b.WriteString("\n")
	if req.Person.Name != "" {
		fmt.Fprintf(&b, "Contact: %s", req.Person.Name)
		if req.Person.Title != "" {
			fmt.Fprintf(&b, ", %s", req.Person.Title)
		}
		b.WriteString("\n")
	}
	if len(req.Fields) > 0 {
		fmt.Fprintf(&b, "Find: %s\n", strings.Join(req.Fields, ", "))
	}
	if len(req.Results) > 0 {
		b.WriteString("\nSearch results:\n")
		for i, r := range req.Results {
			fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(r.Title))
			if r.Snippet != "" {
				fmt.Fprintf(&b, ": %s", strings.TrimSpace(r.Snippet))
			}
			if r.URL != "" {
				fmt.Fprintf(&b, " <%s>", r.URL)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// normalize trims the reply and maps the not-found sentinel to "".
func normalize(text string) string {
	text = strings.TrimSpace(text)
	if strings.EqualFold(strings.Trim(text, ".\"' "), notFound) {
		return ""
	}
	return text
}

// Guarded adds a per-call timeout and retries on transient errors.
type Guarded struct {
	inner   Reasoner
	timeout time.Duration
	retry   resilience.RetryConfig
}

// WithResilience wraps r. A zero timeout means no per-call deadline.
func WithResilience(r Reasoner, timeout time.Duration, retry resilience.RetryConfig) *Guarded {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(r.Name(), "reason")
	}
	return &Guarded{inner: r, timeout: timeout, retry: retry}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Reason(ctx context.Context, req Request) (Answer, error) {
	start := time.Now()
	ans, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (Answer, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.inner.Reason(ctx, req)
	})
	if err != nil {
		return Answer{}, eris.Wrapf(err, "reason: %s", g.inner.Name())
	}
	zap.L().Debug("reason: answer received",
		zap.String("provider", g.inner.Name()),
		zap.Int("chars", len(ans.Text)),
		zap.Int("sources", len(ans.Sources)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ans, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
