package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// FieldKey identifies one enrichable company attribute.
type FieldKey string

// FieldValue is either a single string or a list of strings.
type FieldValue struct {
	Text string
	List []string
}

// TextValue builds a scalar FieldValue.
func TextValue(s string) FieldValue { return FieldValue{Text: s} }

// ListValue builds a list FieldValue.
func ListValue(items ...string) FieldValue { return FieldValue{List: items} }

// IsList reports whether the value holds a list.
func (v FieldValue) IsList() bool { return v.List != nil }

// IsZero reports whether the value carries no content.
func (v FieldValue) IsZero() bool {
	return strings.TrimSpace(v.Text) == "" && len(v.List) == 0
}

// String renders the value for logs and prompts.
func (v FieldValue) String() string {
	if v.IsList() {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.IsList() {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return eris.Wrap(err, "model: decode field list")
		}
		if list == nil {
			list = []string{}
		}
		*v = FieldValue{List: list}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: decode field value")
	}
	*v = FieldValue{Text: s}
	return nil
}

// FieldMapping holds the fields discovered so far. A key that is present is
// known; an absent key is missing.
type FieldMapping map[FieldKey]FieldValue

// Has reports whether key has a value.
func (m FieldMapping) Has(key FieldKey) bool {
	_, ok := m[key]
	return ok
}

// Clone returns a shallow copy that is safe to extend.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m extended with the entries of next whose keys m
// does not have yet. Existing values are never replaced.
func (m FieldMapping) Merge(next FieldMapping) FieldMapping {
	out := m.Clone()
	for k, v := range next {
		if _, ok := out[k]; ok || v.IsZero() {
			continue
		}
		out[k] = v
	}
	return out
}

// Missing returns the keys from order that m does not have, preserving order.
func (m FieldMapping) Missing(order []FieldKey) []FieldKey {
	var out []FieldKey
	for _, k := range order {
		if !m.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
