// Package supervisor holds the supervisor protocol: the prompt templates
// the supervisor runs under, staged JSON extraction of its replies, and
// the parsed plan and decision shapes.
package supervisor

import (
	"fmt"
	"strings"
)

// InitProtocol is the phase-1 task block: decompose the request into goal,
// deliverables, and process.
const InitProtocol = `# TASK: PLAN INITIALIZATION
Analyze the user request. Break it down into a clear Goal, Deliverables, and Execution Process.

OUTPUT FORMAT (JSON ONLY):
{
    "goal": "The overall objective of this discussion",
    "deliverables": "The concrete outputs expected (e.g., Code, PRD, Diagram)",
    "process": ["Step 1: Agent X does...", "Step 2: Agent Y does..."],
    "explanation": "Brief rationale for this plan"
}`

// executionProtocol is the phase-2 task block, parameterized with the
// current plan state.
const executionProtocol = `# TASK: EXECUTION
Current Plan Status:
- Goal: %s (READ ONLY)
- Deliverables: %s (READ ONLY)
- Process: %s
- Current Step Index: %d

Select the next agent to execute the current step. You may update the process steps if needed, but DO NOT modify the Goal.

OUTPUT FORMAT (JSON ONLY):
{
    "next_agent": "<agent_name>",
    "instruction": "<specific task for the agent>",
    "update_process": ["Remaining Step 1", "Remaining Step 2"] (Optional, use only if process needs change),
    "status": "CONTINUE" | "FINISH"
}`

// RosterEntry is one line of the team roster shown to the supervisor.
type RosterEntry struct {
	Name string
	Role string
}

func renderRoster(roster []RosterEntry) string {
	lines := make([]string, 0, len(roster))
	for _, r := range roster {
		lines = append(lines, fmt.Sprintf("- Name: %s, Role: %s", r.Name, r.Role))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt assembles the composable supervisor prompt: the supervisor's
// own system prompt (personality), the team roster, and the protocol block.
func BuildPrompt(supervisorPrompt string, roster []RosterEntry, protocol string) string {
	return fmt.Sprintf("%s\n\n# Team Roster\n%s\n\n%s",
		supervisorPrompt, renderRoster(roster), protocol)
}

// ExecutionProtocol renders the phase-2 protocol with the live plan state.
// stepIndex is shown 1-based.
func ExecutionProtocol(goal, deliverables, processJSON string, stepIndex int) string {
	return fmt.Sprintf(executionProtocol, goal, deliverables, processJSON, stepIndex+1)
}
