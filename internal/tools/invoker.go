// In file: internal/tools/invoker.go
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultDiscoveryTimeout = 15 * time.Second
	defaultToolTimeout      = 30 * time.Second
	// UserIDHeader carries the caller's identity to the capability server.
	UserIDHeader = "X-User-ID"
)

// executeRequest is the body of POST /execute.
type executeRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Invoker executes single tool calls against a capability server.
// Every failure is returned as data inside the ToolResult.
type Invoker struct {
	endpoint   string
	catalog    *Catalog
	httpClient *http.Client
	timeout    time.Duration
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithHTTPClient sets the HTTP client used for /execute.
func WithHTTPClient(client *http.Client) InvokerOption {
	return func(i *Invoker) {
		if client != nil {
			i.httpClient = client
		}
	}
}

// WithTimeout bounds each individual tool call. Zero keeps the default.
func WithTimeout(timeout time.Duration) InvokerOption {
	return func(i *Invoker) {
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// NewInvoker creates an invoker for the capability server at endpoint.
// The catalog is used to reject unknown tools and validate arguments before
// anything is sent over the network.
func NewInvoker(endpoint string, catalog *Catalog, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		endpoint:   endpoint,
		catalog:    catalog,
		httpClient: &http.Client{},
		timeout:    defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.catalog == nil {
		inv.catalog = EmptyCatalog()
	}
	return inv
}

// Invoke runs one tool call. The returned result always carries call.ID.
func (inv *Invoker) Invoke(ctx context.Context, userID string, call ToolCall) ToolResult {
	name := call.Function.Name
	if _, ok := inv.catalog.Lookup(name); !ok {
		return Failed(call.ID, fmt.Errorf("%w: %q", ErrUnknownTool, name))
	}

	args, err := decodeArguments(call.Function.Arguments)
	if err != nil {
		return Failed(call.ID, err)
	}
	if err := inv.catalog.validate(name, args); err != nil {
		return Failed(call.ID, fmt.Errorf("tool %s: %w", name, err))
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	result, err := inv.execute(ctx, userID, name, args)
	if err != nil {
		return Failed(call.ID, fmt.Errorf("error executing %s: %w", name, err))
	}
	return Succeeded(call.ID, result)
}

func (inv *Invoker) execute(ctx context.Context, userID, name string, args map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(executeRequest{Tool: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(inv.endpoint, "/execute"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}

	resp, err := inv.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d %s", ErrExecuteStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrMalformedResult)
	}
	return json.RawMessage(body), nil
}

// decodeArguments parses the model's JSON-string arguments into an object.
// An empty string is treated as an empty object.
func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
