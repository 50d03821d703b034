package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/registry"
)

func deepSearch(t *testing.T) *registry.Schema {
	t.Helper()
	s, err := registry.Builtin(registry.SchemaDeepSearch)
	require.NoError(t, err)
	return s
}

func allExtractors(t *testing.T) map[string]Extractor {
	return map[string]Extractor{
		NameKeyword: NewKeyword(deepSearch(t), 0),
		NameAnswer:  NewAnswer(0),
		NameCanned:  NewCanned(model.FieldMapping{"pricing_model": model.TextValue("per seat")}),
	}
}

func sampleInput() Input {
	return Input{
		Targets: []model.FieldKey{"pricing_model", "product_names"},
		Payloads: []model.SearchPayload{
			model.TextPayload("Acme uses a per seat pricing model and sells the Acme Platform product."),
			model.ResultsPayload([]model.SearchResult{{URL: "https://acme.com", Snippet: "Acme pricing starts at $10"}}),
		},
	}
}

func TestExtractors_NeverOverwrite(t *testing.T) {
	for name, ex := range allExtractors(t) {
		t.Run(name, func(t *testing.T) {
			current := model.FieldMapping{"pricing_model": model.TextValue("freemium")}
			next := ex.Extract(sampleInput(), current)
			assert.Equal(t, "freemium", next["pricing_model"].Text)
			assert.Equal(t, "freemium", current["pricing_model"].Text)
			assert.Len(t, current, 1)
		})
	}
}

func TestExtractors_Idempotent(t *testing.T) {
	for name, ex := range allExtractors(t) {
		t.Run(name, func(t *testing.T) {
			once := ex.Extract(sampleInput(), model.FieldMapping{})
			twice := ex.Extract(sampleInput(), once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestExtractors_EmptyPayloadsLeaveMappingAlone(t *testing.T) {
	in := Input{Targets: []model.FieldKey{"pricing_model"}, Payloads: []model.SearchPayload{{}}}
	for name, ex := range allExtractors(t) {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, ex.Extract(in, model.FieldMapping{}))
		})
	}
}

func TestKeyword_PrefersFreeText(t *testing.T) {
	next := NewKeyword(deepSearch(t), 0).Extract(sampleInput(), model.FieldMapping{})
	assert.Equal(t, "Acme uses a per seat pricing model and sells the Acme Platform product.", next["pricing_model"].Text)
	assert.True(t, next.Has("product_names"))
}

func TestKeyword_FallsBackToSnippets(t *testing.T) {
	in := Input{
		Targets: []model.FieldKey{"key_competitors"},
		Payloads: []model.SearchPayload{
			model.TextPayload("nothing relevant"),
			model.ResultsPayload([]model.SearchResult{
				{Snippet: "unrelated"},
				{Title: "Acme vs Globex: top alternative tools"},
			}),
		},
	}
	next := NewKeyword(deepSearch(t), 0).Extract(in, model.FieldMapping{})
	assert.Equal(t, "Acme vs Globex: top alternative tools", next["key_competitors"].Text)
}

func TestKeyword_OnlyTargets(t *testing.T) {
	in := sampleInput()
	in.Targets = []model.FieldKey{"company_domain"}
	next := NewKeyword(deepSearch(t), 0).Extract(in, model.FieldMapping{})
	assert.False(t, next.Has("pricing_model"))
}

func TestKeyword_ClipsLongValues(t *testing.T) {
	in := Input{
		Targets:  []model.FieldKey{"pricing_model"},
		Payloads: []model.SearchPayload{model.TextPayload("pricing " + strings.Repeat("é", 50))},
	}
	next := NewKeyword(deepSearch(t), 11).Extract(in, model.FieldMapping{})
	v := next["pricing_model"].Text
	assert.LessOrEqual(t, len(v), 11)
	assert.True(t, strings.HasPrefix(v, "pricing"))
}

func TestAnswer_AssignsAnswerToMissingTargets(t *testing.T) {
	in := Input{
		Targets:  []model.FieldKey{"target_customer"},
		Payloads: []model.SearchPayload{model.TextPayload("  Mid-market SaaS teams  ")},
	}
	next := NewAnswer(0).Extract(in, model.FieldMapping{})
	assert.Equal(t, "Mid-market SaaS teams", next["target_customer"].Text)
}

func TestCanned_PlaceholderForUnknownKeys(t *testing.T) {
	next := NewCanned(nil).Extract(sampleInput(), model.FieldMapping{})
	assert.Equal(t, "mock pricing_model", next["pricing_model"].Text)
	assert.Equal(t, "mock product_names", next["product_names"].Text)
}

func TestNew(t *testing.T) {
	s := deepSearch(t)
	for _, name := range []string{"", NameKeyword, NameAnswer, NameCanned} {
		ex, err := New(name, s, 0)
		require.NoError(t, err, name)
		assert.NotNil(t, ex)
	}
	_, err := New("llm", s, 0)
	assert.ErrorContains(t, err, "unknown extractor")
}
