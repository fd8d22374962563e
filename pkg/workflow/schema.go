package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// planSchema validates a workflow document before execution. Reviewer
// fields are nullable; unknown agent names are only detected at execution
// time.
const planSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["plan_name", "workflow"],
  "properties": {
    "plan_name": {"type": "string"},
    "description": {"type": "string"},
    "workflow": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["step", "step_name", "executor_agent", "executor_prompt"],
        "properties": {
          "step": {"type": "integer", "minimum": 1},
          "step_name": {"type": "string"},
          "executor_agent": {"type": "string"},
          "executor_prompt": {"type": "string"},
          "reviewer_agent": {"type": ["string", "null"]},
          "reviewer_prompt": {"type": ["string", "null"]},
          "max_revision_rounds": {"type": "integer"}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("workflow_plan.json", planSchema)

// ParsePlan validates raw JSON against the plan schema and decodes it. The
// returned plan is normalized.
func ParsePlan(raw []byte) (*Plan, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("workflow: parse plan: %w", err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("workflow: invalid plan: %w", err)
	}

	var plan Plan
	decoder := json.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("workflow: decode plan: %w", err)
	}
	plan.Normalize()
	return &plan, nil
}
