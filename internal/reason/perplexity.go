package reason

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/pkg/perplexity"
)

// Perplexity answers with a Sonar model, which searches the web itself and
// reports citations alongside the reply.
type Perplexity struct {
	client      perplexity.Client
	model       string
	temperature float64
}

// NewPerplexity wraps a perplexity.Client. An empty model uses perplexity.DefaultModel.
func NewPerplexity(client perplexity.Client, model string, temperature float64) *Perplexity {
	return &Perplexity{client: client, model: model, temperature: temperature}
}

func (p *Perplexity) Name() string { return ProviderPerplexity }

func (p *Perplexity) Reason(ctx context.Context, req Request) (Answer, error) {
	resp, err := p.client.Complete(ctx, perplexity.Request{
		Model: p.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return Answer{}, eris.Wrap(err, "reason: perplexity completion")
	}

	text := normalize(resp.Text())
	if text == "" {
		return Answer{}, nil
	}
	return Answer{Text: text, Sources: dedupe(resp.Sources())}, nil
}
