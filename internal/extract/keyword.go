package extract

import (
	"strings"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/registry"
)

// Keyword assigns a field the first candidate text that mentions one of the
// field's keywords, its key or its label. Free-text payloads are searched
// before result snippets.
type Keyword struct {
	schema *registry.Schema
	maxLen int
}

// NewKeyword returns a keyword extractor over schema.
func NewKeyword(schema *registry.Schema, maxValueLen int) *Keyword {
	if maxValueLen <= 0 {
		maxValueLen = DefaultMaxValueLen
	}
	return &Keyword{schema: schema, maxLen: maxValueLen}
}

func (k *Keyword) Extract(in Input, current model.FieldMapping) model.FieldMapping {
	next := current.Clone()
	candidates := candidateTexts(in.Payloads)
	if len(candidates) == 0 {
		return next
	}
	for _, key := range missingTargets(in.Targets, current) {
		signals := k.signals(key)
		for _, text := range candidates {
			if mentions(text, signals) {
				next[key] = model.TextValue(clip(text, k.maxLen))
				break
			}
		}
	}
	return next
}

func (k *Keyword) signals(key model.FieldKey) []string {
	out := []string{strings.ToLower(string(key))}
	if k.schema == nil {
		return append(out, strings.ReplaceAll(out[0], "_", " "))
	}
	out = append(out, strings.ToLower(k.schema.Label(key)))
	if f, ok := k.schema.Field(key); ok {
		for _, kw := range f.Keywords {
			out = append(out, strings.ToLower(kw))
		}
	}
	return out
}

func mentions(text string, signals []string) bool {
	lower := strings.ToLower(text)
	for _, s := range signals {
		if s != "" && strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func candidateTexts(payloads []model.SearchPayload) []string {
	var free, snippets []string
	for _, p := range payloads {
		switch p.Kind {
		case model.PayloadFreeText:
			if t := strings.TrimSpace(p.Text); t != "" {
				free = append(free, t)
			}
		case model.PayloadResults:
			for _, r := range p.Results {
				if t := strings.TrimSpace(r.Snippet); t != "" {
					snippets = append(snippets, t)
				} else if t := strings.TrimSpace(r.Title); t != "" {
					snippets = append(snippets, t)
				}
			}
		}
	}
	return append(free, snippets...)
}
