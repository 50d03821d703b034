// Package registry defines the enumerated field schemas the enrichment loop
// fills in, and loads schema and seed fixtures from disk.
package registry

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
)

// FieldSpec describes one enrichable field.
type FieldSpec struct {
	Key      model.FieldKey `json:"key" yaml:"key"`
	Label    string         `json:"label" yaml:"label"`
	Keywords []string       `json:"keywords,omitempty" yaml:"keywords"`
	List     bool           `json:"list,omitempty" yaml:"list"`
}

// Schema is an ordered set of fields. Order drives both query construction
// and the "first missing field" choice of the single-field policy.
type Schema struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []FieldSpec `json:"fields" yaml:"fields"`

	byKey map[model.FieldKey]int
}

// Names of the built-in schemas.
const (
	SchemaDeepSearch = "deep_search"
	SchemaResearch   = "research"
)

// NewSchema validates fields and returns an indexed Schema.
func NewSchema(name string, fields []FieldSpec) (*Schema, error) {
	if len(fields) == 0 {
		return nil, eris.Errorf("registry: schema %q has no fields", name)
	}
	s := &Schema{Name: name, Fields: fields, byKey: make(map[model.FieldKey]int, len(fields))}
	for i, f := range fields {
		if strings.TrimSpace(string(f.Key)) == "" {
			return nil, eris.Errorf("registry: schema %q field %d has an empty key", name, i)
		}
		if _, dup := s.byKey[f.Key]; dup {
			return nil, eris.Errorf("registry: schema %q has duplicate key %q", name, f.Key)
		}
		if f.Label == "" {
			s.Fields[i].Label = strings.ReplaceAll(string(f.Key), "_", " ")
		}
		s.byKey[f.Key] = i
	}
	return s, nil
}

// Keys returns the field keys in schema order.
func (s *Schema) Keys() []model.FieldKey {
	keys := make([]model.FieldKey, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Field returns the FieldSpec for key.
func (s *Schema) Field(key model.FieldKey) (FieldSpec, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return FieldSpec{}, false
	}
	return s.Fields[i], true
}

// Label returns the human readable label for key, or the key with
// underscores replaced when key is not part of the schema.
func (s *Schema) Label(key model.FieldKey) string {
	if f, ok := s.Field(key); ok {
		return f.Label
	}
	return strings.ReplaceAll(string(key), "_", " ")
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.Fields) }

var builtins = map[string][]FieldSpec{
	SchemaDeepSearch: {
		{Key: "company_value_prop", Label: "company value proposition", Keywords: []string{"value proposition", "helps", "mission"}},
		{Key: "product_names", Label: "product names", Keywords: []string{"product", "platform"}, List: true},
		{Key: "pricing_model", Label: "pricing model", Keywords: []string{"pricing", "subscription", "per seat", "free tier"}},
		{Key: "key_competitors", Label: "key competitors", Keywords: []string{"competitor", "alternative", " vs "}, List: true},
		{Key: "company_domain", Label: "company domain", Keywords: []string{"domain", "website", ".com"}},
	},
	SchemaResearch: {
		{Key: "company_value_prop", Label: "company value prop", Keywords: []string{"value proposition", "helps", "mission"}},
		{Key: "product_names", Label: "product names", Keywords: []string{"product", "platform"}, List: true},
		{Key: "target_customer", Label: "target customer", Keywords: []string{"customers", "designed for", "serves"}},
	},
}

// Builtin returns one of the built-in schemas by name.
func Builtin(name string) (*Schema, error) {
	fields, ok := builtins[name]
	if !ok {
		return nil, eris.Errorf("registry: unknown schema %q", name)
	}
	cp := make([]FieldSpec, len(fields))
	copy(cp, fields)
	return NewSchema(name, cp)
}
