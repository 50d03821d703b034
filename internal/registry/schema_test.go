package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
)

func TestBuiltin(t *testing.T) {
	tests := []struct {
		name string
		keys []model.FieldKey
	}{
		{SchemaDeepSearch, []model.FieldKey{"company_value_prop", "product_names", "pricing_model", "key_competitors", "company_domain"}},
		{SchemaResearch, []model.FieldKey{"company_value_prop", "product_names", "target_customer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Builtin(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.keys, s.Keys())
			assert.Equal(t, len(tt.keys), s.Len())
		})
	}
}

func TestBuiltin_Unknown(t *testing.T) {
	_, err := Builtin("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestBuiltin_ReturnsIndependentCopies(t *testing.T) {
	a, err := Builtin(SchemaResearch)
	require.NoError(t, err)
	a.Fields[0].Label = "changed"

	b, err := Builtin(SchemaResearch)
	require.NoError(t, err)
	assert.Equal(t, "company value prop", b.Label("company_value_prop"))
}

func TestNewSchema_Validation(t *testing.T) {
	_, err := NewSchema("empty", nil)
	assert.ErrorContains(t, err, "has no fields")

	_, err = NewSchema("dup", []FieldSpec{{Key: "a"}, {Key: "a"}})
	assert.ErrorContains(t, err, "duplicate key")

	_, err = NewSchema("blank", []FieldSpec{{Key: " "}})
	assert.ErrorContains(t, err, "empty key")
}

func TestSchema_LabelDefaults(t *testing.T) {
	s, err := NewSchema("custom", []FieldSpec{{Key: "funding_stage"}})
	require.NoError(t, err)
	assert.Equal(t, "funding stage", s.Label("funding_stage"))
	assert.Equal(t, "not in schema", s.Label("not_in_schema"))

	_, ok := s.Field("not_in_schema")
	assert.False(t, ok)
}
