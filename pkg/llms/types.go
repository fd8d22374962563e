// Package llms implements the provider gateway: a uniform "messages in,
// text or tool calls out" contract over heterogeneous model endpoints. The
// gateway is the only place that knows provider flavor.
package llms

import (
	"context"

	"github.com/coworkai/coworker/pkg/protocol"
)

// ToolDefinition is the provider-neutral tool schema handed to a model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is a completed generate call: either final assistant text or a
// batch of tool-call requests (never both populated meaningfully; when
// ToolCalls is non-empty the loop continues).
type Result struct {
	Text      string
	ToolCalls []protocol.ToolCall
}

// Provider invokes one model endpoint flavor.
type Provider interface {
	// Generate performs a non-streaming model call. Tool schemas may be
	// nil for plain chat.
	Generate(ctx context.Context, model string, messages []protocol.Message, tools []ToolDefinition) (*Result, error)

	// Type returns the provider flavor (openai, anthropic, gemini, ...).
	Type() string
}
