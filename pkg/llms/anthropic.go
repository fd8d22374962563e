package llms

import (
	"bytes"
	"context"
	"encoding/json"
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

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096

	// Anthropic responds well within this window; the generic 320 s ceiling
	// would only delay failure reporting.
	anthropicTimeout = 120 * time.Second
)

// AnthropicProvider speaks the Messages API.
type AnthropicProvider struct {
	cfg        config.ProviderConfig
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

// block is a content block in either direction: text, tool_use on the way
// out of the model, tool_result on the way back in.
type block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	timeout := anthropicTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &AnthropicProvider{
		cfg:     cfg,
		apiKey:  cfg.ResolveAPIKey(),
		baseURL: baseURL,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

func (p *AnthropicProvider) Type() string { return p.cfg.Type }

func (p *AnthropicProvider) Generate(ctx context.Context, model string, messages []protocol.Message, tools []ToolDefinition) (*Result, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanModelGenerate)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrProvider, p.cfg.ID),
		attribute.String(observability.AttrModel, model),
	)

	system, converted := toAnthropicMessages(messages)
	req := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  converted,
		Tools:     toAnthropicTools(tools),
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

func (p *AnthropicProvider) makeRequest(ctx context.Context, request anthropicRequest) (*Result, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol,
			Detail: "unparseable response: " + protocol.Truncate(string(raw), 200)}
	}
	if parsed.Error != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: parsed.Error.Message}
	}

	result := &Result{}
	var texts []string
	for _, b := range parsed.Content {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			args := b.Input
			if args == nil {
				args = make(map[string]any)
			}
			result.ToolCalls = append(result.ToolCalls, protocol.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}
	result.Text = strings.Join(texts, "")
	return result, nil
}

// toAnthropicMessages splits out the system prompt and converts tool results
// to tool_result blocks inside user messages, per the Messages API shape.
func toAnthropicMessages(messages []protocol.Message) (string, []anthropicMessage) {
	var system []string
	out := make([]anthropicMessage, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)
		case protocol.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []block{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case protocol.RoleAssistant:
			blocks := []block{}
			if m.Content != "" {
				blocks = append(blocks, block{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, block{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Args})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		default:
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []block{{Type: "text", Text: m.Content}},
			})
		}
	}
	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return out
}
