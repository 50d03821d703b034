package reason

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/research-agent/internal/resilience"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini reasoner.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	// Grounding enables the Google Search tool.
	Grounding bool
}

// Gemini answers with Gemini, optionally grounded on Google Search. The
// grounding chunks' URIs become the answer's sources.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
}

// NewGemini creates a Gemini reasoner against the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("reason: gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "reason: gemini client")
	}
	return &Gemini{models: client.Models, cfg: cfg}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Reason(ctx context.Context, req Request) (Answer, error) {
	temp := g.cfg.Temperature
	conf := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		CandidateCount:    1,
	}
	if g.cfg.Grounding {
		conf.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, genai.Text(BuildPrompt(req)), conf)
	if err != nil {
		return Answer{}, classifyGemini(err)
	}
	return Answer{Text: normalize(resp.Text()), Sources: groundingSources(resp)}, nil
}

func classifyGemini(err error) error {
	wrapped := eris.Wrap(err, "gemini: generate content")
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(wrapped, apiErr.Code)
	}
	return wrapped
}

func groundingSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var out []string
	for _, chunk := range meta.GroundingChunks {
		if chunk != nil && chunk.Web != nil {
			out = append(out, chunk.Web.URI)
		}
	}
	return dedupe(out)
}
