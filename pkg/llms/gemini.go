package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/httpclient"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/protocol"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider speaks the generateContent REST dialect.
type GeminiProvider struct {
	cfg        config.ProviderConfig
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTools   `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTools struct {
	FunctionDeclarations []ToolDefinition `json:"functionDeclarations"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiProvider{
		cfg:        cfg,
		apiKey:     cfg.ResolveAPIKey(),
		baseURL:    baseURL,
		httpClient: newProviderHTTPClient(cfg),
	}
}

func (p *GeminiProvider) Type() string { return p.cfg.Type }

func (p *GeminiProvider) Generate(ctx context.Context, model string, messages []protocol.Message, tools []ToolDefinition) (*Result, error) {
	tracer := observability.GetTracer("llms")
	ctx, span := tracer.Start(ctx, observability.SpanModelGenerate)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrProvider, p.cfg.ID),
		attribute.String(observability.AttrModel, model),
	)

	req := toGeminiRequest(messages, tools)
	result, err := p.makeRequest(ctx, model, req)
	observability.GetMetrics().RecordModelCall(ctx, p.cfg.ID, model, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (p *GeminiProvider) makeRequest(ctx context.Context, model string, request geminiRequest) (*Result, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}

	url := p.baseURL + "/models/" + model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

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

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol,
			Detail: "unparseable response: " + protocol.Truncate(string(raw), 200)}
	}
	if parsed.Error != nil {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &ProviderError{Provider: p.cfg.ID, Kind: ErrProtocol, Detail: "response has no candidates"}
	}

	result := &Result{}
	var texts []string
	for i, part := range parsed.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = make(map[string]any)
			}
			result.ToolCalls = append(result.ToolCalls, protocol.ToolCall{
				// Gemini does not issue call ids; synthesize stable ones.
				ID:   part.FunctionCall.Name + "_" + strconv.Itoa(i),
				Name: part.FunctionCall.Name,
				Args: args,
			})
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	result.Text = strings.Join(texts, "")
	return result, nil
}

// toGeminiRequest converts the shared message shape. Gemini uses "model" for
// assistant turns and carries tool results as functionResponse parts.
func toGeminiRequest(messages []protocol.Message, tools []ToolDefinition) geminiRequest {
	req := geminiRequest{}
	var system []string

	// Tool results need the originating call name; track by id.
	callNames := make(map[string]string)

	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)
		case protocol.RoleAssistant:
			content := geminiContent{Role: "model"}
			if m.Content != "" {
				content.Parts = append(content.Parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				content.Parts = append(content.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Args},
				})
			}
			if len(content.Parts) == 0 {
				continue
			}
			req.Contents = append(req.Contents, content)
		case protocol.RoleTool:
			req.Contents = append(req.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResp{
						Name:     callNames[m.ToolCallID],
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}
	if len(tools) > 0 {
		req.Tools = []geminiTools{{FunctionDeclarations: tools}}
	}
	return req
}
