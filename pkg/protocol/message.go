// Package protocol defines the wire-level types shared across the
// orchestration core: conversation messages, tool calls, and plan snapshots.
package protocol

import (
	"time"
)

// Role identifies the author class of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool is only used in-flight inside the tool loop; it is never
	// persisted to a group log.
	RoleTool Role = "tool"
)

// NormalizeRole maps legacy role spellings to the persisted set.
// Historic logs used "agent" where "assistant" is meant.
func NormalizeRole(r Role) Role {
	if r == "agent" {
		return RoleAssistant
	}
	return r
}

// Message is an immutable record in a group's conversation log.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	AgentName string `json:"agent_name,omitempty"`

	// IsPlan marks the assistant message announcing a freshly generated
	// plan; PlanData carries the raw plan snapshot for clients.
	IsPlan   bool           `json:"is_plan,omitempty"`
	PlanData map[string]any `json:"plan_data,omitempty"`

	// ToolCallID correlates a tool result with the call that produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls is set on assistant messages that request tool execution.
	// In-flight only, never persisted.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewUserMessage returns a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAgentMessage returns an assistant message attributed to an agent.
func NewAgentMessage(agentName, content string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		AgentName: agentName,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage returns a system message, used for surfaced errors and
// summaries.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
// Used for tool_call/tool_result event payloads.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
