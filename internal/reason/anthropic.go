package reason

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/pkg/anthropic"
)

// Anthropic answers with Claude. It has no web access of its own, so its
// sources are the URLs of the search results it was shown.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic wraps an anthropic.Client.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64, temperature float64) *Anthropic {
	if model == "" {
		model = "claude-haiku-4-5"
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens, temperature: temperature}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Reason(ctx context.Context, req Request) (Answer, error) {
	temp := a.temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: BuildPrompt(req)}},
		Temperature: &temp,
	})
	if err != nil {
		return Answer{}, eris.Wrap(err, "reason: anthropic message")
	}
	resp.Usage.LogUsage(a.model, "reason")

	text := normalize(resp.Text())
	if text == "" {
		return Answer{}, nil
	}
	return Answer{Text: text, Sources: resultURLs(req)}, nil
}

func resultURLs(req Request) []string {
	urls := make([]string, 0, len(req.Results))
	for _, r := range req.Results {
		urls = append(urls, r.URL)
	}
	return dedupe(urls)
}
