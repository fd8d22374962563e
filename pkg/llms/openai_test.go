package llms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/httpclient"
	"github.com/coworkai/coworker/pkg/protocol"
)

func openAITestProvider(baseURL string) *OpenAIProvider {
	return NewOpenAIProvider(config.ProviderConfig{
		ID:      "test",
		Type:    config.ProviderTypeOpenAICompatible,
		BaseURL: baseURL,
		Models:  []string{"test-model"},
	})
}

func chatMessages() []protocol.Message {
	return []protocol.Message{
		{Role: protocol.RoleSystem, Content: "be helpful"},
		{Role: protocol.RoleUser, Content: "hi"},
	}
}

func TestOpenAIGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello there"}},
			},
		})
	}))
	defer server.Close()

	result, err := openAITestProvider(server.URL).Generate(
		context.Background(), "test-model", chatMessages(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Empty(t, result.ToolCalls)
}

func TestOpenAIGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{
						{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      "get_current_time",
								"arguments": `{"timezone": "UTC"}`,
							},
						},
					},
				}},
			},
		})
	}))
	defer server.Close()

	result, err := openAITestProvider(server.URL).Generate(
		context.Background(), "test-model", chatMessages(), []ToolDefinition{
			{Name: "get_current_time", Description: "time", Parameters: map[string]any{"type": "object"}},
		})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call_1", result.ToolCalls[0].ID)
	assert.Equal(t, "get_current_time", result.ToolCalls[0].Name)
	assert.Equal(t, "UTC", result.ToolCalls[0].Args["timezone"])
}

func TestOpenAIGenerateAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := openAITestProvider(server.URL).Generate(
		context.Background(), "test-model", chatMessages(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthRejected))
}

func TestOpenAIGenerateMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	_, err := openAITestProvider(server.URL).Generate(
		context.Background(), "test-model", chatMessages(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocol))
}

func TestOpenAIGenerateErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	_, err := openAITestProvider(server.URL).Generate(
		context.Background(), "test-model", chatMessages(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocol))
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestOpenAIGenerateUnreachable(t *testing.T) {
	_, err := openAITestProvider("http://127.0.0.1:1").Generate(
		context.Background(), "test-model", chatMessages(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestOpenRouterHeaders(t *testing.T) {
	var referer, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	// Header emission keys off the configured base URL; the actual requests
	// go to the test server.
	provider := NewOpenAIProvider(config.ProviderConfig{
		ID:      "openrouter",
		Type:    config.ProviderTypeOpenAICompatible,
		BaseURL: "https://openrouter.ai/api/v1",
	})
	provider.baseURL = server.URL

	_, err := provider.Generate(context.Background(), "m", chatMessages(), nil)
	require.NoError(t, err)
	assert.Equal(t, openRouterReferer, referer)
	assert.Equal(t, openRouterTitle, title)
}

func TestClassifyStatus(t *testing.T) {
	err := classifyStatus("p", http.StatusUnauthorized, 0, "denied")
	assert.True(t, errors.Is(err, ErrAuthRejected))

	err = classifyStatus("p", http.StatusTooManyRequests, 3*time.Second, "")
	assert.True(t, errors.Is(err, ErrRateLimited))
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 3*time.Second, rle.Backoff)

	err = classifyStatus("p", http.StatusBadGateway, 0, "upstream down")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))

	err = classifyStatus("p", http.StatusUnprocessableEntity, 0, "bad request shape")
	assert.True(t, errors.Is(err, ErrProtocol))
}

func TestClassifyDoError(t *testing.T) {
	err := classifyDoError("p", &httpclient.RetryableError{
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: 2 * time.Second,
	}, "")
	assert.True(t, errors.Is(err, ErrRateLimited))

	err = classifyDoError("p", context.DeadlineExceeded, "")
	assert.True(t, errors.Is(err, ErrTimeout))

	err = classifyDoError("p", errors.New("connection refused"), "")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestToOpenAIMessagesToolRoundtrip(t *testing.T) {
	messages := []protocol.Message{
		{
			Role:    protocol.RoleAssistant,
			Content: "",
			ToolCalls: []protocol.ToolCall{
				{ID: "c1", Name: "echo", Args: map[string]any{"text": "hi"}},
			},
		},
		{Role: protocol.RoleTool, Content: "echo: hi", ToolCallID: "c1"},
	}

	out := toOpenAIMessages(messages)
	require.Len(t, out, 2)
	require.Len(t, out[0].ToolCalls, 1)
	assert.Equal(t, "c1", out[0].ToolCalls[0].ID)
	assert.Equal(t, "function", out[0].ToolCalls[0].Type)
	assert.JSONEq(t, `{"text": "hi"}`, out[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", out[1].ToolCallID)
	assert.Equal(t, "tool", out[1].Role)
}
