package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coworkai/coworker/pkg/httpclient"
	"github.com/coworkai/coworker/pkg/protocol"
)

// Response bodies larger than this are cut before being handed back to the
// model.
const maxWebResponseLen = 20000

// WebRequestTool fetches a URL on behalf of an agent. GET only; agents that
// need to mutate remote state get a purpose-built tool instead.
type WebRequestTool struct {
	client *httpclient.Client
}

func NewWebRequestTool() *WebRequestTool {
	return &WebRequestTool{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		),
	}
}

func (t *WebRequestTool) GetName() string { return "web_request" }

func (t *WebRequestTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "web_request",
		Description: "Performs an HTTP GET request and returns the response body as text.",
		Parameters: []ToolParameter{
			{
				Name:        "url",
				Type:        "string",
				Description: "Absolute http or https URL to fetch",
				Required:    true,
			},
		},
	}
}

func (t *WebRequestTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return NewErrorResult(t.GetName(), "url argument is required"), nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return NewErrorResult(t.GetName(), fmt.Sprintf("invalid url %q", rawURL)), nil
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return NewErrorResult(t.GetName(), err.Error()), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return NewErrorResult(t.GetName(), fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebResponseLen+1))
	if err != nil {
		return NewErrorResult(t.GetName(), fmt.Sprintf("read response: %v", err)), nil
	}

	content := protocol.Truncate(strings.ToValidUTF8(string(body), ""), maxWebResponseLen)
	return NewSuccessResult(t.GetName(),
		fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, content), time.Since(start)), nil
}
