package reason

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/resilience"
)

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI answers with any OpenAI-compatible chat completions endpoint.
// Like Anthropic it only sees the search results it is given.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
}

// NewOpenAI creates a reasoner for key. A non-empty baseURL targets a
// compatible server instead of api.openai.com.
func NewOpenAI(key, baseURL, model string, temperature float64) *OpenAI {
	conf := openai.DefaultConfig(key)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(conf),
		model:       model,
		temperature: float32(temperature),
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Reason(ctx context.Context, req Request) (Answer, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		Temperature: o.temperature,
	})
	if err != nil {
		return Answer{}, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, eris.New("openai: no choices in response")
	}
	zap.L().Debug("openai usage",
		zap.String("model", o.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	text := normalize(resp.Choices[0].Message.Content)
	if text == "" {
		return Answer{}, nil
	}
	return Answer{Text: text, Sources: resultURLs(req)}, nil
}

func classifyOpenAI(err error) error {
	wrapped := eris.Wrap(err, "openai: chat completion")
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode) {
		return resilience.NewTransientError(wrapped, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && resilience.IsTransientHTTPStatus(reqErr.HTTPStatusCode) {
		return resilience.NewTransientError(wrapped, reqErr.HTTPStatusCode)
	}
	return wrapped
}
