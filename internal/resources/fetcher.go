// In file: internal/resources/fetcher.go

// Package resources builds a prompt-augmentation context blob from the
// resources published by an MCP server.
package resources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// TransportSSE is the default transport, matching what the capability server speaks.
	TransportSSE = "sse"
	// TransportStreamable uses the MCP streamable HTTP transport.
	TransportStreamable = "streamable"

	defaultFetchTimeout = 15 * time.Second
	clientName          = "finance-chat-context"
	clientVersion       = "1.0.0"
)

// TransportFunc builds the client transport for one fetch.
type TransportFunc func(endpoint string) (mcp.Transport, error)

// Fetcher reads every resource of an MCP server into one context blob.
// Nothing is cached between fetches.
type Fetcher struct {
	client    *mcp.Client
	transport TransportFunc
	timeout   time.Duration
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithTransport selects the transport by name ("sse" or "streamable").
// Unknown names fall back to SSE.
func WithTransport(name string, httpClient *http.Client) Option {
	return func(f *Fetcher) {
		f.transport = namedTransport(name, httpClient)
	}
}

// WithTransportFunc installs a custom transport builder.
func WithTransportFunc(fn TransportFunc) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.transport = fn
		}
	}
}

// WithTimeout bounds a whole fetch: connect, list and every read.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: mcp.NewClient(&mcp.Implementation{
			Name:    clientName,
			Version: clientVersion,
		}, nil),
		transport: namedTransport(TransportSSE, nil),
		timeout:   defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func namedTransport(name string, httpClient *http.Client) TransportFunc {
	return func(endpoint string) (mcp.Transport, error) {
		if strings.TrimSpace(endpoint) == "" {
			return nil, errors.New("resource endpoint is empty")
		}
		if strings.EqualFold(name, TransportStreamable) {
			return &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: httpClient}, nil
		}
		return &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: httpClient}, nil
	}
}

// Fetch connects to endpoint, lists every resource and reads each one.
// It returns "" when there are no resources or none could be read; a single
// failed read is logged and skipped. Connect and list failures are errors.
// The session is always closed before returning.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	transport, err := f.transport(endpoint)
	if err != nil {
		return "", fmt.Errorf("mcp resources: create transport: %w", err)
	}
	session, err := f.client.Connect(ctx, transport, nil)
	if err != nil {
		return "", fmt.Errorf("mcp resources: connect: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("WARNING: failed to close MCP session: %v", err)
		}
	}()

	listed, err := listResources(ctx, session)
	if err != nil {
		return "", err
	}
	if len(listed) == 0 {
		return "", nil
	}

	sections := make([]string, 0, len(listed))
	for _, res := range listed {
		result, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: res.URI})
		if err != nil {
			log.Printf("WARNING: failed to read resource %s: %v", res.URI, err)
			continue
		}
		header := res.Name
		if header == "" {
			header = res.URI
		}
		for _, content := range result.Contents {
			if content == nil || content.Text == "" {
				continue
			}
			sections = append(sections, fmt.Sprintf("### %s\n%s", header, content.Text))
		}
	}
	return formatContext(sections), nil
}

// listResources collects every page of the server's resource list.
func listResources(ctx context.Context, session *mcp.ClientSession) ([]*mcp.Resource, error) {
	var (
		all    []*mcp.Resource
		cursor string
	)
	for {
		page, err := session.ListResources(ctx, &mcp.ListResourcesParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("mcp resources: list: %w", err)
		}
		all = append(all, page.Resources...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// formatContext wraps the readable sections in context delimiters.
func formatContext(sections []string) string {
	if len(sections) == 0 {
		return ""
	}
	return "\n[CONTEXT]\n" + strings.Join(sections, "\n\n") + "\n[/CONTEXT]\n"
}
