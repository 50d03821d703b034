package reason

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/resilience"
	"github.com/sells-group/research-agent/pkg/anthropic"
	"github.com/sells-group/research-agent/pkg/perplexity"
)

// Options selects and tunes a reasoner backend.
type Options struct {
	Provider    string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	Grounding   bool
	Timeout     time.Duration
	Retry       resilience.RetryConfig
}

// New builds the reasoner named by opts.Provider using key, wrapped with
// timeout and retry handling. It returns (nil, nil) for ProviderNone.
func New(ctx context.Context, opts Options, key string) (Reasoner, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == ProviderNone || provider == "" {
		return nil, nil
	}
	if provider != ProviderMock && strings.TrimSpace(key) == "" {
		return nil, eris.Errorf("reason: provider %q requires an api key", provider)
	}

	var r Reasoner
	switch provider {
	case ProviderGemini:
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:      key,
			Model:       opts.Model,
			BaseURL:     opts.BaseURL,
			Temperature: float32(opts.Temperature),
			Grounding:   opts.Grounding,
		})
		if err != nil {
			return nil, err
		}
		r = g
	case ProviderAnthropic:
		var copts []anthropic.Option
		if opts.BaseURL != "" {
			copts = append(copts, anthropic.WithBaseURL(opts.BaseURL))
		}
		r = NewAnthropic(anthropic.NewClient(key, copts...), opts.Model, opts.MaxTokens, opts.Temperature)
	case ProviderPerplexity:
		var copts []perplexity.Option
		if opts.BaseURL != "" {
			copts = append(copts, perplexity.WithBaseURL(opts.BaseURL))
		}
		r = NewPerplexity(perplexity.NewClient(key, copts...), opts.Model, opts.Temperature)
	case ProviderOpenAI:
		r = NewOpenAI(key, opts.BaseURL, opts.Model, opts.Temperature)
	case ProviderMock:
		r = Mock{}
	default:
		return nil, eris.Errorf("reason: unknown provider %q", opts.Provider)
	}
	return WithResilience(r, opts.Timeout, opts.Retry), nil
}
