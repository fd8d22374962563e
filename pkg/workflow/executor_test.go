package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/llms"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/supervisor"
	"github.com/coworkai/coworker/pkg/tools"
)

type scriptedInvoker struct {
	responses []string
	calls     int
	// lastUser captures the final user-role content of every call.
	lastUser []string
}

func (f *scriptedInvoker) Invoke(_ context.Context, _, _ string, messages []protocol.Message, _ []llms.ToolDefinition) (*llms.Result, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == protocol.RoleUser {
			f.lastUser = append(f.lastUser, messages[i].Content)
			break
		}
	}
	if f.calls >= len(f.responses) {
		return &llms.Result{Text: ""}, nil
	}
	text := f.responses[f.calls]
	f.calls++
	return &llms.Result{Text: text}, nil
}

func newRunner(name string, invoker agent.Invoker) *agent.Runner {
	cfg := &agent.Config{
		AgentID:      strings.ToLower(name),
		Name:         name,
		SystemPrompt: name + " works here",
		ProviderID:   "p1",
		ModelName:    "m1",
	}
	return agent.NewRunner(cfg, "ws", invoker, tools.NewToolRegistry(), nil, agent.LoadPersonas(""))
}

func newExecutor(plan *Plan, members map[string]*agent.Runner) *Executor {
	return NewExecutor("ws", "g1", plan, members, nil, stream.Discard, nil)
}

func singleStepPlan(step Step) *Plan {
	return &Plan{PlanName: "test", Workflow: []Step{step}}
}

func TestExecuteRevisionLoop(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		"draft v1",
		"REJECTED: too short, expand the second paragraph",
		"draft v2",
		"APPROVED",
	}}
	members := map[string]*agent.Runner{
		"Writer":   newRunner("Writer", invoker),
		"Reviewer": newRunner("Reviewer", invoker),
	}
	plan := singleStepPlan(Step{
		Step:              1,
		StepName:          "Draft",
		ExecutorAgent:     "Writer",
		ExecutorPrompt:    "Write about {user_input}",
		ReviewerAgent:     "Reviewer",
		ReviewerPrompt:    "Review this:\n{step_result}",
		MaxRevisionRounds: 2,
	})
	exec := newExecutor(plan, members)

	err := exec.Execute(context.Background(), "geese")
	require.NoError(t, err)
	assert.Equal(t, 4, invoker.calls)
	assert.Equal(t, "draft v2", exec.results[1])

	// Reviewer saw the executor output, the revision saw the critique.
	require.Len(t, invoker.lastUser, 4)
	assert.Contains(t, invoker.lastUser[1], "draft v1")
	assert.Contains(t, invoker.lastUser[2], "Reviewer feedback (revision 1):")
	assert.Contains(t, invoker.lastUser[2], "too short, expand the second paragraph")
	assert.Contains(t, invoker.lastUser[2], "Write about geese")
}

func TestExecuteZeroRevisionRoundsAcceptsFirstResult(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		"only draft",
		"REJECTED: not good enough",
	}}
	members := map[string]*agent.Runner{
		"Writer":   newRunner("Writer", invoker),
		"Reviewer": newRunner("Reviewer", invoker),
	}
	plan := singleStepPlan(Step{
		Step:              1,
		StepName:          "Draft",
		ExecutorAgent:     "Writer",
		ExecutorPrompt:    "write",
		ReviewerAgent:     "Reviewer",
		ReviewerPrompt:    "{step_result}",
		MaxRevisionRounds: 0,
	})
	exec := newExecutor(plan, members)

	err := exec.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, invoker.calls)
	assert.Equal(t, "only draft", exec.results[1])
}

func TestExecuteExhaustedRoundsAcceptLatest(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		"v1",
		"REJECTED: no",
		"v2",
		"REJECTED: still no",
	}}
	members := map[string]*agent.Runner{
		"Writer":   newRunner("Writer", invoker),
		"Reviewer": newRunner("Reviewer", invoker),
	}
	plan := singleStepPlan(Step{
		Step:              1,
		StepName:          "Draft",
		ExecutorAgent:     "Writer",
		ExecutorPrompt:    "write",
		ReviewerAgent:     "Reviewer",
		ReviewerPrompt:    "{step_result}",
		MaxRevisionRounds: 1,
	})
	exec := newExecutor(plan, members)

	err := exec.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, invoker.calls)
	assert.Equal(t, "v2", exec.results[1])
}

func TestExecuteNoReviewerSkipsReview(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{"done"}}
	members := map[string]*agent.Runner{"Writer": newRunner("Writer", invoker)}
	plan := singleStepPlan(Step{
		Step:           1,
		StepName:       "Solo",
		ExecutorAgent:  "Writer",
		ExecutorPrompt: "write",
	})
	exec := newExecutor(plan, members)

	err := exec.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, invoker.calls)
}

func TestExecuteUnrecognizedVerdictApproves(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		"draft",
		"Well, it's hard to say really.",
	}}
	members := map[string]*agent.Runner{
		"Writer":   newRunner("Writer", invoker),
		"Reviewer": newRunner("Reviewer", invoker),
	}
	plan := singleStepPlan(Step{
		Step:              1,
		StepName:          "Draft",
		ExecutorAgent:     "Writer",
		ExecutorPrompt:    "write",
		ReviewerAgent:     "Reviewer",
		ReviewerPrompt:    "{step_result}",
		MaxRevisionRounds: 3,
	})
	exec := newExecutor(plan, members)

	err := exec.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, invoker.calls)
	assert.Equal(t, "draft", exec.results[1])
}

func TestExecuteEmptyPlanIsNoop(t *testing.T) {
	invoker := &scriptedInvoker{}
	exec := newExecutor(&Plan{PlanName: "empty", Workflow: []Step{}}, nil)

	err := exec.Execute(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 0, invoker.calls)
}

func TestExecuteUnknownExecutorFails(t *testing.T) {
	sink := &collectSink{}
	plan := singleStepPlan(Step{
		Step:           1,
		StepName:       "Ghost",
		ExecutorAgent:  "Nobody",
		ExecutorPrompt: "write",
	})
	exec := NewExecutor("ws", "g1", plan, map[string]*agent.Runner{}, nil, sink, nil)

	err := exec.Execute(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nobody")
	require.Len(t, sink.events, 1)
	assert.Equal(t, stream.EventError, sink.events[0].Type)
}

type collectSink struct {
	events []stream.Event
}

func (c *collectSink) Send(ev stream.Event) { c.events = append(c.events, ev) }

func TestSubstituteStepReferences(t *testing.T) {
	exec := newExecutor(&Plan{}, nil)
	exec.results[1] = "alpha"
	exec.results[2] = "beta"

	out := exec.substitute(
		"start {user_input} then {step_1_result} and {step_2_result} but {step_9_result} end",
		"req", "")
	assert.Equal(t, "start req then alpha and beta but  end", out)
}

func TestSubstituteStepResultPlaceholder(t *testing.T) {
	exec := newExecutor(&Plan{}, nil)
	out := exec.substitute("Review: {step_result}", "ignored", "the output")
	assert.Equal(t, "Review: the output", out)
}

func TestParsePlanClampsRevisionRounds(t *testing.T) {
	raw := []byte(`{
		"plan_name": "p",
		"workflow": [
			{"step": 1, "step_name": "a", "executor_agent": "X", "executor_prompt": "go", "max_revision_rounds": 9},
			{"step": 2, "step_name": "b", "executor_agent": "X", "executor_prompt": "go", "max_revision_rounds": -2}
		]
	}`)
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Workflow[0].MaxRevisionRounds)
	assert.Equal(t, 0, plan.Workflow[1].MaxRevisionRounds)
}

func TestParsePlanRejectsMissingFields(t *testing.T) {
	_, err := ParsePlan([]byte(`{"workflow": []}`))
	assert.Error(t, err)

	_, err = ParsePlan([]byte(`{"plan_name": "p", "workflow": [{"step": 1}]}`))
	assert.Error(t, err)
}

func TestParsePlanNullReviewerFields(t *testing.T) {
	raw := []byte(`{
		"plan_name": "p",
		"workflow": [
			{"step": 1, "step_name": "a", "executor_agent": "X", "executor_prompt": "go",
			 "reviewer_agent": null, "reviewer_prompt": null, "max_revision_rounds": 1}
		]
	}`)
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "", plan.Workflow[0].ReviewerAgent)
}

func TestPlannerFallsBackOnGarbage(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{"I am unable to produce a plan."}}
	cfg := &agent.Config{Name: "Supervisor", ProviderID: "p1", ModelName: "m1"}
	planner := NewPlanner(cfg, "", invoker)

	plan, err := planner.Generate(context.Background(), nil, "do something")
	require.NoError(t, err)
	assert.Equal(t, FallbackPlan().PlanName, plan.PlanName)
	assert.Empty(t, plan.Workflow)
}

func TestPlannerStripsCodeFences(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		"```json\n{\"plan_name\": \"fenced\", \"workflow\": []}\n```",
	}}
	cfg := &agent.Config{Name: "Supervisor", ProviderID: "p1", ModelName: "m1"}
	planner := NewPlanner(cfg, "", invoker)

	plan, err := planner.Generate(context.Background(), []supervisor.RosterEntry{
		{Name: "Writer", Role: "writes"},
	}, "do something")
	require.NoError(t, err)
	assert.Equal(t, "fenced", plan.PlanName)
}
