// Package groupchat implements the two-phase supervisor engine: plan
// initialization, then one execution decision plus at most one worker
// dispatch per step.
package groupchat

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// PlanState is the per-group plan, persisted in the group document's
// chat_state field between turns. Goal and deliverables are immutable once
// the plan is initialized; the process list may be replaced by the
// supervisor, which resets the step index.
type PlanState struct {
	PlanInitialized  bool     `json:"plan_initialized" mapstructure:"plan_initialized"`
	Goal             string   `json:"goal" mapstructure:"goal"`
	Deliverables     string   `json:"deliverables" mapstructure:"deliverables"`
	Process          []string `json:"process" mapstructure:"process"`
	CurrentStepIndex int      `json:"current_step_index" mapstructure:"current_step_index"`
}

func NewPlanState() *PlanState {
	return &PlanState{Process: []string{}}
}

// PlanStateFromMap decodes a persisted chat_state document. Nil or empty
// input yields a fresh state.
func PlanStateFromMap(m map[string]any) (*PlanState, error) {
	state := NewPlanState()
	if len(m) == 0 {
		return state, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           state,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("groupchat: decode chat_state: %w", err)
	}
	if state.Process == nil {
		state.Process = []string{}
	}
	return state, nil
}

// ToMap renders the state for persistence.
func (s *PlanState) ToMap() map[string]any {
	return map[string]any{
		"plan_initialized":   s.PlanInitialized,
		"goal":               s.Goal,
		"deliverables":       s.Deliverables,
		"process":            s.Process,
		"current_step_index": s.CurrentStepIndex,
	}
}
