package extract

import (
	"fmt"

	"github.com/sells-group/research-agent/internal/model"
)

// Canned fills targets from a fixed mapping whenever the round produced
// any payload. It backs the offline mock mode and deterministic tests.
type Canned struct {
	values model.FieldMapping
}

// NewCanned returns a canned extractor. Keys absent from values get a
// generated placeholder.
func NewCanned(values model.FieldMapping) *Canned {
	if values == nil {
		values = model.FieldMapping{}
	}
	return &Canned{values: values}
}

func (c *Canned) Extract(in Input, current model.FieldMapping) model.FieldMapping {
	next := current.Clone()
	if !anyPayload(in.Payloads) {
		return next
	}
	for _, key := range missingTargets(in.Targets, current) {
		v, ok := c.values[key]
		if !ok {
			v = model.TextValue(fmt.Sprintf("mock %s", key))
		}
		next[key] = v
	}
	return next
}

func anyPayload(payloads []model.SearchPayload) bool {
	for _, p := range payloads {
		if !p.IsEmpty() {
			return true
		}
	}
	return false
}
