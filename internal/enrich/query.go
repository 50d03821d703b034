package enrich

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/registry"
)

// QueryPolicy decides which missing fields a round asks for and how the
// query text is phrased.
type QueryPolicy string

const (
	// PolicyBatch asks for every missing field in one query.
	PolicyBatch QueryPolicy = "batch"
	// PolicySingle asks for the first missing field only.
	PolicySingle QueryPolicy = "single"
)

// ParsePolicy validates a configured policy name. Empty means batch.
func ParsePolicy(s string) (QueryPolicy, error) {
	switch QueryPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyBatch:
		return PolicyBatch, nil
	case PolicySingle:
		return PolicySingle, nil
	}
	return "", eris.Errorf("enrich: unknown query policy %q", s)
}

// Targets returns the fields a round asks for. missing is in schema order
// and non-empty.
func (p QueryPolicy) Targets(missing []model.FieldKey) []model.FieldKey {
	if p == PolicySingle {
		return missing[:1]
	}
	return missing
}

// Query renders the query text for targets.
func (p QueryPolicy) Query(person model.Person, company model.Company, schema *registry.Schema, targets []model.FieldKey) string {
	labels := make([]string, len(targets))
	for i, k := range targets {
		labels[i] = schema.Label(k)
	}

	if p == PolicySingle {
		return joinWords(company.Name, person.Name, person.Title, strings.Join(labels, " "))
	}

	subject := person.Name
	if person.Email != "" {
		subject = fmt.Sprintf("%s (%s)", person.Name, person.Email)
	}
	q := "Research on " + subject
	if company.Name != "" {
		q += " at " + company.Name
	}
	return q + " to find " + strings.Join(labels, ", ")
}

// joinWords joins the non-empty parts with single spaces.
func joinWords(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
