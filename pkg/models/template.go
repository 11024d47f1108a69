package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowTemplate is a read-mostly workflow blueprint. Instantiation clones
// the definition into an independent workflow and bumps UsageCount exactly
// once per successful clone; the template itself is never mutated beyond
// that counter.
type WorkflowTemplate struct {
	ID                string             `json:"id"`
	Name              string             `json:"name" validate:"required,min=3"`
	Description       string             `json:"description"`
	Category          string             `json:"category,omitempty"`
	Definition        WorkflowDefinition `json:"definition"`
	OrchestrationType WorkflowType       `json:"orchestration_type"`
	UsageCount        int64              `json:"usage_count"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// DeepCopy returns an independent copy of the definition via a JSON round
// trip, so instantiated workflows never share node or map state with the
// template.
func (d *WorkflowDefinition) DeepCopy() (*WorkflowDefinition, error) {
	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}

	clone := &WorkflowDefinition{}
	if err := json.NewDecoder(&buf).Decode(clone); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	return clone, nil
}
