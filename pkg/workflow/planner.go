package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/supervisor"
)

// plannerPromptTemplate puts the supervisor in project-manager mode: output
// a complete plan up-front instead of deciding step by step. %s is the
// rendered team roster.
const plannerPromptTemplate = `# Identity
You are the Workflow Planner (Project Manager) of this Group Chat.
Your job is to OUTPUT A COMPLETE EXECUTION PLAN, not execute it step by step.

# Team Roster
%s

# Instructions
Analyze the user's request and design a COMPLETE WORKFLOW that accomplishes the goal.

## Workflow Design Rules

1. Break down the task into logical steps.
2. For each step, specify:
   - executor_agent: WHICH agent executes (must be from Team Roster above)
   - executor_prompt: SPECIFIC instruction for the executor (use placeholders)
   - reviewer_agent: WHICH agent reviews (null if no review needed)
   - reviewer_prompt: SPECIFIC instruction for the reviewer (null if no review)
   - max_revision_rounds: maximum revision attempts (0-3)
3. Use placeholders in prompts:
   - {user_input}: original user request
   - {step_N_result}: result from step N (e.g., {step_1_result})
   - {step_result}: current step's execution result (reviewer prompts only)
4. Reviewer output format: the reviewer MUST output exactly "APPROVED" if
   satisfied, or "REJECTED: <reason>" if revision is needed. The system
   handles revision loops automatically.
5. Later steps can reference earlier steps via {step_N_result}.

## Output Format

Output ONLY valid JSON in this exact shape:

{
  "plan_name": "Brief workflow name",
  "description": "One-sentence description of what this workflow achieves",
  "workflow": [
    {
      "step": 1,
      "step_name": "Descriptive step name",
      "executor_agent": "Agent name from roster",
      "executor_prompt": "Detailed instruction with {placeholders}",
      "reviewer_agent": "Agent name or null",
      "reviewer_prompt": "Review instruction with {step_result} or null",
      "max_revision_rounds": 2
    }
  ]
}

## Important Notes

- Return ONLY the JSON, no markdown code blocks, no explanations
- All agent names MUST exactly match names in the Team Roster
- Use null (not the string "null") for nullable fields
- max_revision_rounds must be 0-3
- Step numbers are sequential starting from 1`

// Planner generates workflow documents through the supervisor.
type Planner struct {
	supervisorCfg *agent.Config
	// promptOverride replaces the default planner template when the group
	// carries a workflow_supervisor_prompt.
	promptOverride string
	gateway        agent.Invoker
}

func NewPlanner(supervisorCfg *agent.Config, promptOverride string, gateway agent.Invoker) *Planner {
	return &Planner{
		supervisorCfg:  supervisorCfg,
		promptOverride: promptOverride,
		gateway:        gateway,
	}
}

func (p *Planner) systemPrompt(roster []supervisor.RosterEntry) string {
	if p.promptOverride != "" {
		return p.promptOverride
	}
	lines := make([]string, 0, len(roster))
	for _, r := range roster {
		lines = append(lines, fmt.Sprintf("- Name: %s, Role: %s", r.Name, r.Role))
	}
	return fmt.Sprintf(plannerPromptTemplate, strings.Join(lines, "\n"))
}

// FallbackPlan is returned when the supervisor fails to produce a valid
// document; execution of it is a no-op.
func FallbackPlan() *Plan {
	return &Plan{
		PlanName:    "Fallback Plan",
		Description: "Supervisor failed to generate valid workflow",
		Workflow:    []Step{},
	}
}

// Generate asks the supervisor for a complete workflow document. An
// unparseable or schema-invalid reply degrades to the fallback plan rather
// than failing the request.
func (p *Planner) Generate(ctx context.Context, roster []supervisor.RosterEntry, userRequest string) (*Plan, error) {
	messages := []protocol.Message{
		{Role: protocol.RoleSystem, Content: p.systemPrompt(roster)},
		{Role: protocol.RoleUser, Content: userRequest},
	}

	result, err := p.gateway.Invoke(ctx, p.supervisorCfg.ProviderID, p.supervisorCfg.ModelName, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("workflow: planner call: %w", err)
	}

	clean := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(result.Text, "```json", ""), "```", ""))

	plan, parseErr := ParsePlan([]byte(clean))
	if parseErr != nil {
		slog.Warn("workflow plan unparseable, using fallback", "error", parseErr)
		return FallbackPlan(), nil
	}
	slog.Info("workflow generated", "plan", plan.PlanName, "steps", len(plan.Workflow))
	return plan, nil
}
