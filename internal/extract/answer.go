package extract

import (
	"strings"

	"github.com/sells-group/research-agent/internal/model"
)

// Answer stores the round's free-text answer, verbatim, under every missing
// target. It is meant for the one-field-per-round policy, where the answer
// was produced for exactly that field.
type Answer struct {
	maxLen int
}

// NewAnswer returns an answer extractor.
func NewAnswer(maxValueLen int) *Answer {
	if maxValueLen <= 0 {
		maxValueLen = DefaultMaxValueLen
	}
	return &Answer{maxLen: maxValueLen}
}

func (a *Answer) Extract(in Input, current model.FieldMapping) model.FieldMapping {
	next := current.Clone()
	var answer string
	for _, p := range in.Payloads {
		if p.Kind == model.PayloadFreeText && strings.TrimSpace(p.Text) != "" {
			answer = p.Text
			break
		}
	}
	if answer == "" {
		return next
	}
	for _, key := range missingTargets(in.Targets, current) {
		next[key] = model.TextValue(clip(answer, a.maxLen))
	}
	return next
}
