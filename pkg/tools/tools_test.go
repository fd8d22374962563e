package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSourceServesBuiltins(t *testing.T) {
	source := NewLocalSource()
	assert.Equal(t, "local", source.GetName())

	infos := source.ListTools()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "get_current_time")
	assert.Contains(t, names, "web_request")

	tool, ok := source.GetTool("get_current_time")
	require.True(t, ok)
	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "UTC:")
}

func TestRegistryAddSourceAndExecute(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.AddSource(NewLocalSource()))

	result, err := r.ExecuteTool(context.Background(), "get_current_time", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "get_current_time", result.ToolName)
}

func TestRegistryExecuteMissingTool(t *testing.T) {
	r := NewToolRegistry()
	result, err := r.ExecuteTool(context.Background(), "no_such_tool", nil)
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestWebRequestFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("page body"))
	}))
	defer server.Close()

	tool := NewWebRequestTool()
	result, err := tool.Execute(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "HTTP 200")
	assert.Contains(t, result.Content, "page body")
}

func TestWebRequestTruncatesLargeBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("z", maxWebResponseLen*2)))
	}))
	defer server.Close()

	tool := NewWebRequestTool()
	result, err := tool.Execute(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.LessOrEqual(t, len(result.Content), maxWebResponseLen+len("HTTP 200\n")+len("..."))
}

func TestWebRequestRejectsBadURL(t *testing.T) {
	tool := NewWebRequestTool()

	result, err := tool.Execute(context.Background(), map[string]any{"url": "ftp://example.com/x"})
	require.NoError(t, err)
	assert.False(t, result.Success)

	result, err = tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "url argument is required")
}

func TestParametersSchema(t *testing.T) {
	info := ToolInfo{
		Name: "sample",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "the query", Required: true},
			{Name: "mode", Type: "string", Description: "optional mode", Enum: []string{"a", "b"}},
		},
	}
	schema := info.ParametersSchema()
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "query")
	require.Contains(t, props, "mode")
	assert.Equal(t, []string{"a", "b"}, props["mode"].(map[string]any)["enum"])
	assert.Equal(t, []string{"query"}, schema["required"])
}
