package protocol

// ToolCall is a single tool invocation requested by a model.
type ToolCall struct {
	// ID is the provider-assigned call id; echoed back on the result
	// message so the model can correlate.
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}
