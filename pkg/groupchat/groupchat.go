package groupchat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/supervisor"
)

const supervisorName = "Supervisor"

// DefaultMaxTurns caps Step calls on one engine instance. The client drives
// the loop across HTTP requests; this ceiling bounds embedded loops that
// keep calling Step on the same engine.
const DefaultMaxTurns = 5

// defaultClosing is used when the supervisor finishes without a meaningful
// closing instruction.
const defaultClosing = "The goal of this discussion has been achieved. Is there anything else I can help with?"

// Persister is the slice of the group store the engine needs to append
// messages and save plan state.
type Persister interface {
	AddMessage(workspace, groupID string, msg protocol.Message) error
	SaveChatState(workspace, groupID string, state map[string]any) error
}

// GroupChat drives one group's conversation. A single Step call executes
// exactly one of: plan initialization, or one execution decision with at
// most one worker dispatch. The loop across steps is driven externally.
type GroupChat struct {
	workspace string
	groupID   string

	supervisorCfg    *agent.Config
	supervisorPrompt string
	gateway          agent.Invoker

	members     map[string]*agent.Runner
	memberOrder []string
	roster      []supervisor.RosterEntry

	state   *PlanState
	history []protocol.Message

	maxTurns int
	turns    int

	store Persister
	sink  stream.Sink

	// appended collects messages created during the current Step for the
	// non-streaming response shape.
	appended []protocol.Message
}

// Options assembles a GroupChat.
type Options struct {
	Workspace string
	GroupID   string

	SupervisorCfg *agent.Config
	// SupervisorPrompt overrides the supervisor agent's system prompt when
	// the group config carries one.
	SupervisorPrompt string

	Gateway agent.Invoker
	Store   Persister
	Sink    stream.Sink

	State   *PlanState
	History []protocol.Message

	// MaxTurns overrides DefaultMaxTurns when positive.
	MaxTurns int
}

func New(opts Options) *GroupChat {
	state := opts.State
	if state == nil {
		state = NewPlanState()
	}
	prompt := opts.SupervisorPrompt
	if prompt == "" {
		prompt = opts.SupervisorCfg.SystemPrompt
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &GroupChat{
		workspace:        opts.Workspace,
		groupID:          opts.GroupID,
		supervisorCfg:    opts.SupervisorCfg,
		supervisorPrompt: prompt,
		gateway:          opts.Gateway,
		members:          make(map[string]*agent.Runner),
		state:            state,
		history:          opts.History,
		maxTurns:         maxTurns,
		store:            opts.Store,
		sink:             opts.Sink,
	}
}

// AddMember registers a worker. The supervisor never appears here; group
// assembly excludes it from the worker set.
func (g *GroupChat) AddMember(runner *agent.Runner, description string) {
	name := runner.Name()
	g.members[name] = runner
	g.memberOrder = append(g.memberOrder, name)
	g.roster = append(g.roster, supervisor.RosterEntry{Name: name, Role: description})
}

// State returns the live plan state.
func (g *GroupChat) State() *PlanState { return g.state }

// History returns the full in-memory conversation.
func (g *GroupChat) History() []protocol.Message { return g.history }

// TurnMessages returns the messages appended by the most recent Step.
func (g *GroupChat) TurnMessages() []protocol.Message { return g.appended }

// Roster returns the member roster shown to the supervisor.
func (g *GroupChat) Roster() []supervisor.RosterEntry { return g.roster }

// appendMessage records a message in memory and in the persisted log.
func (g *GroupChat) appendMessage(msg protocol.Message) {
	g.history = append(g.history, msg)
	g.appended = append(g.appended, msg)
	if err := g.store.AddMessage(g.workspace, g.groupID, msg); err != nil {
		slog.Error("failed to persist message", "group", g.groupID, "error", err)
	}
}

func (g *GroupChat) persistState() {
	if err := g.store.SaveChatState(g.workspace, g.groupID, g.state.ToMap()); err != nil {
		slog.Error("failed to persist chat state", "group", g.groupID, "error", err)
	}
}

// AppendUserMessage records the inbound user message before the step runs.
func (g *GroupChat) AppendUserMessage(content string) {
	g.appendMessage(protocol.NewUserMessage(content))
}

// Step executes one supervisor cycle and reports whether the client should
// call again. Plan state is persisted before returning.
func (g *GroupChat) Step(ctx context.Context) (bool, error) {
	start := time.Now()
	tracer := observability.GetTracer("coworker.groupchat")
	ctx, span := tracer.Start(ctx, observability.SpanGroupStep)
	span.SetAttributes(attribute.String(observability.AttrGroupID, g.groupID))
	defer span.End()
	defer func() {
		observability.GetMetrics().RecordTurn(ctx, g.groupID, time.Since(start))
	}()

	g.appended = nil

	var cont bool
	var err error
	if !g.state.PlanInitialized {
		cont, err = g.initializePlan(ctx)
	} else {
		cont, err = g.executeStep(ctx)
	}
	g.persistState()

	g.turns++
	if cont && g.turns >= g.maxTurns {
		slog.Warn("turn ceiling reached", "group", g.groupID, "turns", g.turns)
		cont = false
	}
	return cont, err
}

func (g *GroupChat) supervisorCall(ctx context.Context, systemPrompt, userContent string) (string, error) {
	messages := []protocol.Message{
		{Role: protocol.RoleSystem, Content: systemPrompt},
		{Role: protocol.RoleUser, Content: userContent},
	}
	result, err := g.gateway.Invoke(ctx, g.supervisorCfg.ProviderID, g.supervisorCfg.ModelName, messages, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// initializePlan is phase 1: one supervisor call producing goal,
// deliverables, and process. Emits the plan event exactly once.
func (g *GroupChat) initializePlan(ctx context.Context) (bool, error) {
	slog.Info("initializing plan", "group", g.groupID)

	prompt := supervisor.BuildPrompt(g.supervisorPrompt, g.roster, supervisor.InitProtocol)

	request := "Start Planning"
	if len(g.history) > 0 {
		request = g.history[len(g.history)-1].Content
	}

	raw, err := g.supervisorCall(ctx, prompt, "Current User Request: "+request)
	if err != nil {
		g.appendMessage(protocol.NewSystemMessage(
			fmt.Sprintf("Critical Error: Failed to generate plan. %v", err)))
		g.sink.Send(stream.Error(fmt.Sprintf("plan generation failed: %v", err)))
		return false, err
	}

	plan, err := supervisor.ParsePlan(raw)
	if err != nil {
		g.appendMessage(protocol.NewSystemMessage(
			fmt.Sprintf("Critical Error: Failed to generate plan. %v", err)))
		g.sink.Send(stream.Error(fmt.Sprintf("plan unparseable: %v", err)))
		return false, err
	}

	g.state.Goal = plan.Goal
	g.state.Deliverables = plan.Deliverables
	g.state.Process = plan.Process
	g.state.PlanInitialized = true
	g.state.CurrentStepIndex = 0

	if g.state.Goal == "" {
		slog.Warn("generated plan has empty goal", "group", g.groupID)
	}

	msg := protocol.NewAgentMessage(supervisorName, renderPlanMarkdown(g.state))
	msg.IsPlan = true
	msg.PlanData = plan.Raw
	g.appendMessage(msg)

	g.sink.Send(stream.Plan(plan.Raw))
	slog.Info("plan generated", "group", g.groupID, "goal", g.state.Goal)
	return true, nil
}

func renderPlanMarkdown(state *PlanState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project Plan\n**Goal**: %s\n**Deliverables**: %s\n\n**Process**:\n",
		state.Goal, state.Deliverables)
	for i, step := range state.Process {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return strings.TrimRight(b.String(), "\n")
}

// executeStep is phase 2: one supervisor decision plus at most one worker
// dispatch.
func (g *GroupChat) executeStep(ctx context.Context) (bool, error) {
	slog.Info("executing step", "group", g.groupID, "step", g.state.CurrentStepIndex)

	processJSON, _ := json.Marshal(g.state.Process)
	protocolBlock := supervisor.ExecutionProtocol(
		g.state.Goal, g.state.Deliverables, string(processJSON), g.state.CurrentStepIndex)
	prompt := supervisor.BuildPrompt(g.supervisorPrompt, g.roster, protocolBlock)

	var conversation strings.Builder
	for _, m := range g.history {
		name := m.AgentName
		if name == "" {
			name = string(m.Role)
		}
		fmt.Fprintf(&conversation, "\n[%s]: %s", name, m.Content)
	}

	raw, err := g.supervisorCall(ctx,
		prompt,
		fmt.Sprintf("Current Conversation History:\n%s\n\nMake your decision based on the Plan.", conversation.String()))
	if err != nil {
		g.appendMessage(protocol.NewSystemMessage(
			fmt.Sprintf("Supervisor call failed: %v", err)))
		g.sink.Send(stream.Error(fmt.Sprintf("supervisor call failed: %v", err)))
		return false, err
	}

	decision, err := supervisor.ParseDecision(raw)
	if err != nil {
		// Plan state stays untouched so the next turn can retry.
		g.appendMessage(protocol.NewSystemMessage(
			fmt.Sprintf("Critical Error: Supervisor decision unparseable. %v", err)))
		g.sink.Send(stream.Error(fmt.Sprintf("supervisor decision unparseable: %v", err)))
		return false, err
	}
	return g.executeDecision(ctx, decision)
}

func (g *GroupChat) executeDecision(ctx context.Context, decision *supervisor.Decision) (bool, error) {
	if decision.Status == supervisor.StatusFinish {
		closing := strings.TrimSpace(decision.Instruction)
		if closing == "" || closing == "None" {
			closing = defaultClosing
		}
		g.appendMessage(protocol.NewAgentMessage(supervisorName, closing))
		slog.Info("supervisor finished", "group", g.groupID)
		return false, nil
	}

	// A non-empty update_process replaces the whole list and restarts the
	// index; the supervisor owns the remaining step sequence.
	if len(decision.UpdateProcess) > 0 {
		slog.Info("process updated", "group", g.groupID, "steps", len(decision.UpdateProcess))
		g.state.Process = decision.UpdateProcess
		g.state.CurrentStepIndex = 0
	}

	g.appendMessage(protocol.NewAgentMessage(supervisorName,
		fmt.Sprintf("@%s, %s", decision.NextAgent, decision.Instruction)))

	worker, ok := g.members[decision.NextAgent]
	if !ok {
		slog.Warn("supervisor selected unknown agent", "group", g.groupID, "agent", decision.NextAgent)
		return true, nil
	}

	response, err := worker.Execute(ctx, decision.Instruction, g.history, g.sink)
	if err != nil {
		// The runner already emitted the error event.
		if ctx.Err() == nil {
			g.appendMessage(protocol.NewSystemMessage(
				fmt.Sprintf("Agent %s failed: %v", decision.NextAgent, err)))
		}
		return false, err
	}

	g.appendMessage(protocol.NewAgentMessage(decision.NextAgent, response))
	g.state.CurrentStepIndex++
	return true, nil
}
