// In file: internal/toolserver/resources.go
package toolserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceServerVersion = "1.0.0"

// documentTypes maps served file extensions to their MIME types.
var documentTypes = map[string]string{
	".md":  "text/markdown",
	".txt": "text/plain",
}

// NewResourceServer publishes every markdown and text file directly inside dir
// as an MCP resource named after the file. Files are read on every request,
// so edits show up without a restart; new files need one.
func NewResourceServer(name, dir string) (*mcp.Server, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read resource directory %s: %w", dir, err)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: resourceServerVersion}, nil)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := documentTypes[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, fileName := range names {
		uri := "file:///" + url.PathEscape(fileName)
		path := filepath.Join(dir, fileName)
		mimeType := documentTypes[strings.ToLower(filepath.Ext(fileName))]
		server.AddResource(&mcp.Resource{
			URI:      uri,
			Name:     fileName,
			MIMEType: mimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, mcp.ResourceNotFoundError(uri)
				}
				return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: string(data)}},
			}, nil
		})
	}
	log.Printf("📚 Publishing %d resource document(s) from %s", len(names), dir)
	return server, len(names), nil
}

// NewResourceHandler serves server over the MCP streamable HTTP transport.
func NewResourceHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
