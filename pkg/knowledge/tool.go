package knowledge

import (
	"context"
	"time"

	"github.com/coworkai/coworker/pkg/tools"
)

// SearchTool exposes one agent's index as the search_knowledge_base tool.
// Bound per agent; the tool name is the same for every agent, so it is
// registered in per-agent tool registries rather than the shared one.
type SearchTool struct {
	store   *Store
	agentID string
}

func NewSearchTool(store *Store, agentID string) *SearchTool {
	return &SearchTool{store: store, agentID: agentID}
}

func (t *SearchTool) GetName() string { return "search_knowledge_base" }

func (t *SearchTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "search_knowledge_base",
		Description: "Searches this agent's knowledge base and returns the most relevant entries.",
		Parameters: []tools.ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Natural language search query",
				Required:    true,
			},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tools.NewErrorResult(t.GetName(), "query argument is required"), nil
	}

	start := time.Now()
	snippet, err := t.store.Search(ctx, t.agentID, query)
	if err != nil {
		return tools.NewErrorResult(t.GetName(), err.Error()), nil
	}
	return tools.NewSuccessResult(t.GetName(), snippet, time.Since(start)), nil
}
