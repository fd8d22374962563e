// Package stream carries progress events from an executing turn to the
// client: a bounded queue decouples the engine from the HTTP response, and a
// writer renders events as SSE frames.
package stream

import (
	"encoding/json"

	"github.com/coworkai/coworker/pkg/protocol"
)

// EventType tags a frame on the wire.
type EventType string

const (
	EventThinking     EventType = "thinking"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventAgentMessage EventType = "agent_message"
	EventPlan         EventType = "plan"
	EventFinish       EventType = "finish"
	EventError        EventType = "error"
)

// Payload truncation limits for tool traffic. Full tool output still reaches
// the model; only the client-visible event is cut.
const (
	MaxToolCallArgsLen = 300
	MaxToolResultLen   = 500
)

// Event is one frame: a tag plus a JSON-ready payload.
type Event struct {
	Type    EventType
	Payload map[string]any
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}

func Thinking(agent string) Event {
	return Event{Type: EventThinking, Payload: map[string]any{"agent": agent}}
}

func ToolCall(agent, tool string, args map[string]any) Event {
	raw, _ := json.Marshal(args)
	return Event{Type: EventToolCall, Payload: map[string]any{
		"agent": agent,
		"tool":  tool,
		"args":  protocol.Truncate(string(raw), MaxToolCallArgsLen),
	}}
}

func ToolResult(agent, tool, result string) Event {
	return Event{Type: EventToolResult, Payload: map[string]any{
		"agent":  agent,
		"tool":   tool,
		"result": protocol.Truncate(result, MaxToolResultLen),
	}}
}

func AgentMessage(agent, content string) Event {
	return Event{Type: EventAgentMessage, Payload: map[string]any{
		"agent":   agent,
		"content": content,
	}}
}

func Plan(snapshot map[string]any) Event {
	return Event{Type: EventPlan, Payload: map[string]any{"data": snapshot}}
}

func Finish(status string) Event {
	return Event{Type: EventFinish, Payload: map[string]any{"status": status}}
}

func Error(message string) Event {
	return Event{Type: EventError, Payload: map[string]any{"content": message}}
}
