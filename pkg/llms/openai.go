package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/httpclient"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/protocol"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenRouter requires these identifying headers on every request.
const (
	openRouterReferer = "https://coworkai.xin"
	openRouterTitle   = "BASE Coworker AI"
)

// OpenAIProvider serves the openai and openai_compatible flavors. Anything
// that speaks the chat completions dialect (OpenRouter, Ollama, vLLM, local
// gateways) goes through here.
type OpenAIProvider struct {
	cfg        config.ProviderConfig
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Tools    []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider builds a provider from its document entry.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		cfg:        cfg,
		apiKey:     cfg.ResolveAPIKey(),
		baseURL:    baseURL,
		httpClient: newProviderHTTPClient(cfg),
	}
}

func newProviderHTTPClient(cfg config.ProviderConfig) *httpclient.Client {
	timeout := 320 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func (p *OpenAIProvider) Type() string { return p.cfg.Type }

func (p *OpenAIProvider) Generate(ctx context.Context, model string, messages []protocol.Message, tools []ToolDefinition) (*Result, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanModelGenerate)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrProvider, p.cfg.ID),
		attribute.String(observability.AttrModel, model),
	)

	req := openAIRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	result, err := p.makeRequest(ctx, req)
	observability.GetMetrics().RecordModelCall(ctx, p.cfg.ID, model, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*Result, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.cfg.IsOpenRouter() {
		httpReq.Header.Set("HTTP-Referer", openRouterReferer)
		httpReq.Header.Set("X-Title", openRouterTitle)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		body := ""
		if resp != nil {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(raw)
		}
		return nil, classifyDoError(p.cfg.ID, err, body)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(p.cfg.ID, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol,
			Detail: "unparseable response: " + protocol.Truncate(string(raw), 200)}
	}
	if parsed.Error != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: "response has no choices"}
	}

	msg := parsed.Choices[0].Message
	toolCalls, err := parseOpenAIToolCalls(msg.ToolCalls)
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}
	return &Result{Text: msg.Content, ToolCalls: toolCalls}, nil
}

func toOpenAIMessages(messages []protocol.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		om := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			otc := openAIToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{Type: "function", Function: t})
	}
	return out
}

func parseOpenAIToolCalls(calls []openAIToolCall) ([]protocol.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]protocol.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := make(map[string]any)
		if c.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("tool call %s: bad arguments: %w", c.Function.Name, err)
			}
		}
		out = append(out, protocol.ToolCall{ID: c.ID, Name: c.Function.Name, Args: args})
	}
	return out, nil
}
