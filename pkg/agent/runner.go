package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coworkai/coworker/pkg/knowledge"
	"github.com/coworkai/coworker/pkg/llms"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/tools"
)

const (
	// MaxToolIterations caps the model-call/tool-execute loop for one agent
	// dispatch.
	MaxToolIterations = 5

	// HistoryWindow is how many trailing conversation messages the agent
	// sees as context.
	HistoryWindow = 10
)

// retrievalDirective is appended to the system prompt when the agent has a
// knowledge index bound.
const retrievalDirective = `

You are an advanced AI assistant with access to the search_knowledge_base tool.
Important: you do NOT know the contents of the user's knowledge base by default.
If the user asks about a specific ID, a particular document, or domain-specific
knowledge, you must first call search_knowledge_base to gather information.
Never guess. Analyze the request carefully, craft a precise search query, call
the tool, and answer using the real information it returns.`

// Invoker is the slice of the provider gateway the runner needs.
type Invoker interface {
	Invoke(ctx context.Context, providerID, model string, messages []protocol.Message, tools []llms.ToolDefinition) (*llms.Result, error)
}

// Runner executes one agent: a bounded iterate-until-no-tool-calls loop
// with retrieval augmentation and per-step event emission.
type Runner struct {
	cfg       *Config
	workspace string
	gateway   Invoker
	registry  *tools.ToolRegistry
	knowledge *knowledge.Store
	personas  *Personas
}

func NewRunner(cfg *Config, workspace string, gateway Invoker, registry *tools.ToolRegistry, ks *knowledge.Store, personas *Personas) *Runner {
	return &Runner{
		cfg:       cfg,
		workspace: workspace,
		gateway:   gateway,
		registry:  registry,
		knowledge: ks,
		personas:  personas,
	}
}

func (r *Runner) Name() string { return r.cfg.Name }

// boundTools assembles the per-run tool set: the agent's allowed tools from
// the shared registry, plus search_knowledge_base when the agent has an
// index. Returns the executable registry and the schemas for the model.
func (r *Runner) boundTools() (*tools.ToolRegistry, []llms.ToolDefinition) {
	bound := tools.NewToolRegistry()
	var defs []llms.ToolDefinition

	for _, name := range r.cfg.Tools {
		tool, ok := r.registry.GetTool(name)
		if !ok {
			slog.Warn("agent references unknown tool", "agent", r.cfg.Name, "tool", name)
			continue
		}
		if err := bound.Register(tool); err != nil {
			continue
		}
		info := tool.GetInfo()
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.ParametersSchema(),
		})
	}

	if r.knowledge != nil && r.knowledge.HasIndex(r.cfg.AgentID) {
		search := knowledge.NewSearchTool(r.knowledge, r.cfg.AgentID)
		if err := bound.Register(search); err == nil {
			info := search.GetInfo()
			defs = append(defs, llms.ToolDefinition{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  info.ParametersSchema(),
			})
		}
	}
	return bound, defs
}

// effectivePrompt is system prompt + persona snippet + retrieval directive.
func (r *Runner) effectivePrompt(hasRetrieval bool) string {
	prompt := r.cfg.SystemPrompt
	if snippet := r.personas.Get(r.cfg.PersonaMode); snippet != "" {
		prompt = prompt + "\n\n" + snippet
	}
	if hasRetrieval {
		prompt += retrievalDirective
	}
	return prompt
}

// renderHistory maps the trailing conversation window into model messages,
// prefixing each with its author so agents can tell peers apart.
func renderHistory(history []protocol.Message) []protocol.Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	out := make([]protocol.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case protocol.RoleUser:
			out = append(out, protocol.Message{Role: protocol.RoleUser,
				Content: "[User]: " + m.Content})
		case protocol.RoleAssistant:
			name := m.AgentName
			if name == "" {
				name = "assistant"
			}
			out = append(out, protocol.Message{Role: protocol.RoleAssistant,
				Content: "[" + name + "]: " + m.Content})
		}
	}
	return out
}

// Execute runs the instruction against the agent with full tool support.
// Events flow to sink as the loop progresses; the final agent text is
// returned. A model failure is emitted as an error event and aborts; a tool
// failure is captured as that tool's result and the loop continues.
func (r *Runner) Execute(ctx context.Context, instruction string, history []protocol.Message, sink stream.Sink) (string, error) {
	bound, defs := r.boundTools()
	hasRetrieval := false
	if _, ok := bound.GetTool("search_knowledge_base"); ok {
		hasRetrieval = true
	}

	messages := []protocol.Message{
		{Role: protocol.RoleSystem, Content: r.effectivePrompt(hasRetrieval)},
	}
	messages = append(messages, renderHistory(history)...)
	messages = append(messages, protocol.Message{
		Role:    protocol.RoleUser,
		Content: "[Supervisor Instruction]: " + instruction,
	})

	var lastText string
	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		sink.Send(stream.Thinking(r.cfg.Name))
		result, err := r.gateway.Invoke(ctx, r.cfg.ProviderID, r.cfg.ModelName, messages, defs)
		if err != nil {
			sink.Send(stream.Error(fmt.Sprintf("model call failed: %v", err)))
			return "", err
		}

		if len(result.ToolCalls) == 0 {
			sink.Send(stream.AgentMessage(r.cfg.Name, result.Text))
			return result.Text, nil
		}
		lastText = result.Text

		messages = append(messages, protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			sink.Send(stream.ToolCall(r.cfg.Name, call.Name, call.Args))

			content := r.runTool(ctx, bound, call)
			sink.Send(stream.ToolResult(r.cfg.Name, call.Name, content))
			messages = append(messages, protocol.Message{
				Role:       protocol.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	if lastText == "" {
		lastText = fmt.Sprintf("Reached the %d-iteration tool limit without a final answer.", MaxToolIterations)
	}
	slog.Warn("tool loop hit iteration cap", "agent", r.cfg.Name)
	sink.Send(stream.AgentMessage(r.cfg.Name, lastText))
	return lastText, nil
}

// runTool executes one call; failures become the tool's visible result so
// the agent can react instead of the turn dying.
func (r *Runner) runTool(ctx context.Context, bound *tools.ToolRegistry, call protocol.ToolCall) string {
	result, err := bound.ExecuteTool(ctx, call.Name, call.Args)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	if !result.Success {
		return fmt.Sprintf("Tool %s failed: %s", call.Name, result.Error)
	}
	return result.Content
}

// Chat runs a plain conversation turn without tools, used for reviewer
// passes and other single-shot calls.
func (r *Runner) Chat(ctx context.Context, history []protocol.Message) (string, error) {
	messages := []protocol.Message{
		{Role: protocol.RoleSystem, Content: r.effectivePrompt(false)},
	}
	for _, m := range history {
		switch m.Role {
		case protocol.RoleUser, protocol.RoleAssistant, protocol.RoleSystem:
			messages = append(messages, protocol.Message{Role: m.Role, Content: m.Content})
		}
	}

	result, err := r.gateway.Invoke(ctx, r.cfg.ProviderID, r.cfg.ModelName, messages, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
