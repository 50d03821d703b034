// Package extract turns search payloads into field values. Every extractor
// is pure: it never overwrites a field that is already known and returns
// the same mapping for the same input.
package extract

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/registry"
)

// Input is what one round hands to an extractor.
type Input struct {
	// Targets are the fields the round's query asked for.
	Targets  []model.FieldKey
	Payloads []model.SearchPayload
}

// Extractor produces an updated mapping from one round's payloads.
type Extractor interface {
	Extract(in Input, current model.FieldMapping) model.FieldMapping
}

// Names of the available extractors.
const (
	NameKeyword = "keyword"
	NameAnswer  = "answer"
	NameCanned  = "canned"
)

// DefaultMaxValueLen caps stored free-text values.
const DefaultMaxValueLen = 2000

// New builds the named extractor.
func New(name string, schema *registry.Schema, maxValueLen int) (Extractor, error) {
	switch name {
	case "", NameKeyword:
		return NewKeyword(schema, maxValueLen), nil
	case NameAnswer:
		return NewAnswer(maxValueLen), nil
	case NameCanned:
		return NewCanned(nil), nil
	default:
		return nil, eris.Errorf("extract: unknown extractor %q", name)
	}
}

// missingTargets returns the targets current does not have, deduplicated.
func missingTargets(targets []model.FieldKey, current model.FieldMapping) []model.FieldKey {
	seen := make(map[model.FieldKey]bool, len(targets))
	var out []model.FieldKey
	for _, k := range targets {
		if seen[k] || current.Has(k) {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// Cut on a rune boundary.
	cut := limit
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
