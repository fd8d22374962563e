package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
)

var stepResultPattern = regexp.MustCompile(`\{step_(\d+)_result\}`)

// Recorder persists messages produced during workflow execution.
type Recorder interface {
	AddMessage(workspace, groupID string, msg protocol.Message) error
}

// Executor walks a workflow plan sequentially, running the
// executor/reviewer revision loop for each step.
type Executor struct {
	workspace string
	groupID   string
	plan      *Plan
	members   map[string]*agent.Runner
	sink      stream.Sink
	recorder  Recorder

	history []protocol.Message
	results map[int]string
}

func NewExecutor(workspace, groupID string, plan *Plan, members map[string]*agent.Runner, history []protocol.Message, sink stream.Sink, recorder Recorder) *Executor {
	return &Executor{
		workspace: workspace,
		groupID:   groupID,
		plan:      plan,
		members:   members,
		sink:      sink,
		recorder:  recorder,
		history:   history,
		results:   make(map[int]string),
	}
}

// History returns the conversation including workflow-produced messages.
func (e *Executor) History() []protocol.Message { return e.history }

func (e *Executor) record(msg protocol.Message) {
	e.history = append(e.history, msg)
	if e.recorder == nil {
		return
	}
	if err := e.recorder.AddMessage(e.workspace, e.groupID, msg); err != nil {
		slog.Error("failed to persist workflow message", "group", e.groupID, "error", err)
	}
}

// substitute fills placeholders. Missing step references become empty
// strings; a substitution never fails the run.
func (e *Executor) substitute(prompt, userInput, stepResult string) string {
	out := strings.ReplaceAll(prompt, PlaceholderUserInput, userInput)
	out = strings.ReplaceAll(out, PlaceholderStepResult, stepResult)
	return stepResultPattern.ReplaceAllStringFunc(out, func(match string) string {
		n, err := strconv.Atoi(stepResultPattern.FindStringSubmatch(match)[1])
		if err != nil {
			return ""
		}
		return e.results[n]
	})
}

// Execute runs every step in order. A hard executor failure terminates the
// workflow; reviewer failures are best-effort approvals.
func (e *Executor) Execute(ctx context.Context, userInput string) error {
	for _, step := range e.plan.Workflow {
		if err := e.executeStep(ctx, step, userInput); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) executeStep(ctx context.Context, step Step, userInput string) error {
	tracer := observability.GetTracer("coworker.workflow")
	ctx, span := tracer.Start(ctx, observability.SpanWorkflowStep)
	span.SetAttributes(
		attribute.Int("workflow.step", step.Step),
		attribute.String(observability.AttrAgent, step.ExecutorAgent),
	)
	defer span.End()

	executor, ok := e.members[step.ExecutorAgent]
	if !ok {
		err := fmt.Errorf("workflow: step %d references unknown executor %q", step.Step, step.ExecutorAgent)
		e.sink.Send(stream.Error(err.Error()))
		return err
	}

	instruction := e.substitute(step.ExecutorPrompt, userInput, "")
	slog.Info("workflow step starting", "group", e.groupID, "step", step.Step, "name", step.StepName)

	result, err := e.runWithReview(ctx, step, executor, instruction, userInput)
	if err != nil {
		return err
	}

	e.results[step.Step] = result
	return nil
}

// runWithReview runs the executor once, then loops reviewer passes and
// executor revisions up to the step's revision cap.
func (e *Executor) runWithReview(ctx context.Context, step Step, executor *agent.Runner, instruction, userInput string) (string, error) {
	result, err := executor.Execute(ctx, instruction, e.history, e.sink)
	if err != nil {
		return "", fmt.Errorf("workflow: step %d executor: %w", step.Step, err)
	}
	e.record(protocol.NewAgentMessage(step.ExecutorAgent, result))

	if step.ReviewerAgent == "" {
		return result, nil
	}

	for revisions := 0; ; revisions++ {
		verdict, reason := e.review(ctx, step, result, userInput)
		if verdict {
			return result, nil
		}
		if revisions >= step.MaxRevisionRounds {
			slog.Warn("revision rounds exhausted, accepting latest output",
				"group", e.groupID, "step", step.Step, "revisions", revisions)
			return result, nil
		}

		revised := fmt.Sprintf("%s\n\nReviewer feedback (revision %d):\n%s",
			instruction, revisions+1, reason)
		result, err = executor.Execute(ctx, revised, e.history, e.sink)
		if err != nil {
			return "", fmt.Errorf("workflow: step %d revision %d: %w", step.Step, revisions+1, err)
		}
		e.record(protocol.NewAgentMessage(step.ExecutorAgent, result))
	}
}

// review classifies the reviewer's reply by prefix. Any hard failure, an
// unknown reviewer, or an unrecognized reply counts as approval; review is
// best-effort.
func (e *Executor) review(ctx context.Context, step Step, result, userInput string) (approved bool, reason string) {
	reviewer, ok := e.members[step.ReviewerAgent]
	if !ok {
		slog.Warn("unknown reviewer, accepting result",
			"group", e.groupID, "step", step.Step, "reviewer", step.ReviewerAgent)
		return true, ""
	}

	prompt := e.substitute(step.ReviewerPrompt, userInput, result)
	reply, err := reviewer.Chat(ctx, []protocol.Message{{Role: protocol.RoleUser, Content: prompt}})
	if err != nil {
		slog.Warn("reviewer call failed, accepting result",
			"group", e.groupID, "step", step.Step, "error", err)
		return true, ""
	}
	e.record(protocol.NewAgentMessage(step.ReviewerAgent, reply))

	trimmed := strings.TrimSpace(reply)
	switch {
	case strings.HasPrefix(trimmed, "APPROVED"):
		return true, ""
	case strings.HasPrefix(trimmed, "REJECTED"):
		reason = strings.TrimSpace(strings.TrimPrefix(trimmed, "REJECTED"))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		if reason == "" {
			reason = trimmed
		}
		return false, reason
	default:
		slog.Warn("unrecognized reviewer verdict, accepting result",
			"group", e.groupID, "step", step.Step)
		return true, ""
	}
}
