package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/registry"
)

// ToolRegistry is the process-wide tool table, immutable after startup.
// Agents execute against a per-agent view of it, see Bind.
type ToolRegistry struct {
	tools *registry.Registry[Tool]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: registry.New[Tool]()}
}

// AddSource registers every tool a source offers. Name collisions fail the
// whole source; tool names are a flat namespace.
func (r *ToolRegistry) AddSource(source ToolSource) error {
	for _, info := range source.ListTools() {
		tool, ok := source.GetTool(info.Name)
		if !ok {
			return fmt.Errorf("tools: source %s lists %s but does not serve it", source.GetName(), info.Name)
		}
		if err := r.tools.Register(info.Name, tool); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a single tool, used for per-agent bound tools.
func (r *ToolRegistry) Register(tool Tool) error {
	return r.tools.Register(tool.GetName(), tool)
}

func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	return r.tools.Get(name)
}

func (r *ToolRegistry) ListTools() []ToolInfo {
	names := r.tools.Names()
	out := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools.Get(name); ok {
			out = append(out, tool.GetInfo())
		}
	}
	return out
}

// ExecuteTool runs one tool call under a span. A missing tool or an
// execution error comes back as a failed ToolResult as well as an error, so
// callers can choose either channel.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (ToolResult, error) {
	start := time.Now()

	tracer := observability.GetTracer("coworker.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, toolName)),
	)
	defer span.End()

	tool, ok := r.tools.Get(toolName)
	if !ok {
		err := fmt.Errorf("tools: %q not found", toolName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		return NewErrorResult(toolName, err.Error()), err
	}

	result, execErr := tool.Execute(ctx, args)
	elapsed := time.Since(start)
	result.ToolName = toolName
	result.ExecutionTime = elapsed

	observability.GetMetrics().RecordToolExecution(ctx, toolName, elapsed)
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		return result, execErr
	}
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	return result, nil
}
