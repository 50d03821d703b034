package reason

import (
	"context"
	"fmt"
	"strings"
)

// Mock returns a canned answer naming the company and the fields sought,
// citing the first result URL. Used for demos and offline runs.
type Mock struct{}

func (Mock) Name() string { return ProviderMock }

func (Mock) Reason(_ context.Context, req Request) (Answer, error) {
	subject := req.Company.Name
	if subject == "" {
		subject = req.Query
	}
	text := fmt.Sprintf("%s: mock findings for %s.", subject, strings.Join(req.Fields, ", "))
	var sources []string
	if len(req.Results) > 0 && req.Results[0].URL != "" {
		sources = []string{req.Results[0].URL}
	}
	return Answer{Text: text, Sources: sources}, nil
}
