package tools

import (
	"context"
	"fmt"
	"time"
)

// LocalSource serves the built-in tools every agent may request by name.
type LocalSource struct {
	tools map[string]Tool
}

func NewLocalSource() *LocalSource {
	s := &LocalSource{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		&currentTimeTool{},
		NewWebRequestTool(),
	} {
		s.tools[t.GetName()] = t
	}
	return s
}

func (s *LocalSource) GetName() string { return "local" }

func (s *LocalSource) ListTools() []ToolInfo {
	out := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t.GetInfo())
	}
	return out
}

func (s *LocalSource) GetTool(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

type currentTimeTool struct{}

func (t *currentTimeTool) GetName() string { return "get_current_time" }

func (t *currentTimeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "get_current_time",
		Description: "Returns the current date and time in UTC and the server's local timezone.",
	}
}

func (t *currentTimeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	now := time.Now()
	content := fmt.Sprintf("UTC: %s\nLocal: %s",
		now.UTC().Format(time.RFC3339), now.Format(time.RFC3339))
	return NewSuccessResult(t.GetName(), content, 0), nil
}
