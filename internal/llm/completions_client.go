// In file: internal/llm/completions_client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// completionsRequest is the top-level body of a chat completions call.
type completionsRequest struct {
	Model     string             `json:"model"`
	Messages  []Message          `json:"messages"`
	Tools     []tools.Descriptor `json:"tools,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

// completionsResponse is the subset of a non-streaming response we read.
type completionsResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []tools.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage api.Usage `json:"usage"`
}

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// CompletionsClient talks to an OpenAI/OpenRouter-compatible chat completions
// endpoint over plain HTTP.
type CompletionsClient struct {
	apiKey     string
	url        string
	siteURL    string
	appTitle   string
	httpClient *http.Client
}

// Statically verify that CompletionsClient implements the ModelClient interface.
var _ ModelClient = (*CompletionsClient)(nil)

// CompletionsOption customizes a CompletionsClient.
type CompletionsOption func(*CompletionsClient)

// WithURL overrides the completions endpoint.
func WithURL(url string) CompletionsOption {
	return func(c *CompletionsClient) {
		if url != "" {
			c.url = url
		}
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses
// to attribute traffic to an app.
func WithAttribution(siteURL, appTitle string) CompletionsOption {
	return func(c *CompletionsClient) {
		c.siteURL = siteURL
		c.appTitle = appTitle
	}
}

// WithCompletionsHTTPClient replaces the default HTTP client.
func WithCompletionsHTTPClient(client *http.Client) CompletionsOption {
	return func(c *CompletionsClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCompletionsClient creates a new, configured client for a completions endpoint.
// The model is chosen per request, not on the client itself.
func NewCompletionsClient(apiKey string, opts ...CompletionsOption) (*CompletionsClient, error) {
	if apiKey == "" {
		return nil, errors.New("completions API key cannot be empty")
	}
	c := &CompletionsClient{
		apiKey: apiKey,
		url:    DefaultCompletionsURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete performs one blocking completion. There is no retry: a failure
// is returned as *TransportError and ends the caller's run.
func (c *CompletionsClient) Complete(ctx context.Context, req *CompletionRequest) (*Reply, error) {
	payload, err := c.buildRequestPayload(req)
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}

	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseCompletionsResponse(body)
}

// buildRequestPayload constructs the JSON body for the completions call.
func (c *CompletionsClient) buildRequestPayload(req *CompletionRequest) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	messages := req.Messages
	if messages == nil {
		messages = []Message{}
	}
	var descs []tools.Descriptor
	if len(req.Tools) > 0 {
		descs = req.Tools
	}

	payload, err := json.Marshal(completionsRequest{
		Model:     req.Model,
		Messages:  messages,
		Tools:     descs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return payload, nil
}

func (c *CompletionsClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "request", Err: fmt.Errorf("failed to create http request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appTitle != "" {
		httpReq.Header.Set("X-Title", c.appTitle)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "decode", StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", http.StatusText(resp.StatusCode), bytes.TrimSpace(snippet)),
		}
	}
	return body, nil
}

// parseCompletionsResponse converts the endpoint's response into a Reply.
func parseCompletionsResponse(body []byte) (*Reply, error) {
	var resp completionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Op: "decode", Err: fmt.Errorf("failed to unmarshal completions response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Op: "decode", Err: errors.New("no choices returned from model endpoint")}
	}

	msg := resp.Choices[0].Message
	reply := &Reply{
		Content: msg.Content,
		Usage:   resp.Usage,
	}
	if len(msg.ToolCalls) > 0 {
		reply.ToolCalls = make([]tools.ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			reply.ToolCalls = append(reply.ToolCalls, tools.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
		}
	}
	return reply, nil
}
