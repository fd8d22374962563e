// Package tools provides the tool runtime: the registry agents execute
// against, the built-in local tools, and the schema bridge to the provider
// gateway.
package tools

import (
	"context"
	"time"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolResult struct {
	Success       bool          `json:"success"`
	Content       string        `json:"content,omitempty"`
	Error         string        `json:"error,omitempty"`
	ToolName      string        `json:"tool_name"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	GetName() string
}

// ToolSource contributes a named set of tools to the registry.
type ToolSource interface {
	GetName() string

	ListTools() []ToolInfo

	GetTool(name string) (Tool, bool)
}

// ParametersSchema renders the parameter list as a JSON-schema object for
// the provider gateway.
func (i ToolInfo) ParametersSchema() map[string]any {
	properties := make(map[string]any, len(i.Parameters))
	var required []string
	for _, p := range i.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func NewSuccessResult(toolName, content string, elapsed time.Duration) ToolResult {
	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      toolName,
		ExecutionTime: elapsed,
	}
}

func NewErrorResult(toolName, errMsg string) ToolResult {
	return ToolResult{
		Success:  false,
		Error:    errMsg,
		ToolName: toolName,
	}
}
