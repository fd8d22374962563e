// Package workflow implements workflow mode: a supervisor-generated plan
// document executed step by step with executor/reviewer revision loops.
package workflow

// Revision rounds are clamped to this range on ingest; out-of-range values
// are clamped, never rejected.
const (
	MinRevisionRounds = 0
	MaxRevisionRounds = 3
)

// Placeholders usable in step prompts.
const (
	PlaceholderUserInput  = "{user_input}"
	PlaceholderStepResult = "{step_result}"
)

// Step is one unit of a workflow plan.
type Step struct {
	Step              int    `json:"step"`
	StepName          string `json:"step_name"`
	ExecutorAgent     string `json:"executor_agent"`
	ExecutorPrompt    string `json:"executor_prompt"`
	ReviewerAgent     string `json:"reviewer_agent,omitempty"`
	ReviewerPrompt    string `json:"reviewer_prompt,omitempty"`
	MaxRevisionRounds int    `json:"max_revision_rounds"`
}

// Plan is a complete workflow document.
type Plan struct {
	PlanName    string `json:"plan_name"`
	Description string `json:"description"`
	Workflow    []Step `json:"workflow"`
}

// Normalize clamps revision rounds and guarantees a non-nil step list.
func (p *Plan) Normalize() {
	if p.Workflow == nil {
		p.Workflow = []Step{}
	}
	for i := range p.Workflow {
		if p.Workflow[i].MaxRevisionRounds < MinRevisionRounds {
			p.Workflow[i].MaxRevisionRounds = MinRevisionRounds
		}
		if p.Workflow[i].MaxRevisionRounds > MaxRevisionRounds {
			p.Workflow[i].MaxRevisionRounds = MaxRevisionRounds
		}
	}
}
