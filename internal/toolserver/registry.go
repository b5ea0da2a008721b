// In file: internal/toolserver/registry.go

// Package toolserver is a reference capability server: it advertises local
// finance tools over GET /tools, runs them over POST /execute, and publishes a
// directory of documents as MCP resources.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

var (
	// ErrToolNotFound is returned for a name that was never registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrBadArguments is returned when arguments do not satisfy the tool's schema.
	ErrBadArguments = errors.New("bad tool arguments")
)

// Executor is one local tool.
type Executor interface {
	// Descriptor is what GET /tools advertises for this tool.
	Descriptor() tools.Descriptor
	// Execute runs the tool. The returned value is encoded as the JSON result.
	Execute(ctx context.Context, userID string, arguments json.RawMessage) (any, error)
}

type registered struct {
	executor Executor
	resolved *jsonschema.Resolved
}

// Registry holds the tools served by the capability server.
// Registration happens at startup; lookups afterwards are read-only.
type Registry struct {
	tools map[string]registered
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registered)}
}

// Register adds a tool. Registering a name twice replaces the first tool.
func (r *Registry) Register(exec Executor) error {
	desc := exec.Descriptor()
	if desc.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	schema := desc.InputSchema
	if schema == nil {
		schema = &jsonschema.Schema{Type: "object"}
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %s has an invalid input schema: %w", desc.Name, err)
	}
	if _, exists := r.tools[desc.Name]; exists {
		log.Printf("WARNING: tool %q registered twice, replacing", desc.Name)
	}
	r.tools[desc.Name] = registered{executor: exec, resolved: resolved}
	log.Printf("🛠️ Registered tool: %s", desc.Name)
	return nil
}

// Descriptors lists every tool, sorted by name.
func (r *Registry) Descriptors() []tools.Descriptor {
	descs := make([]tools.Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		descs = append(descs, t.executor.Descriptor())
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Execute validates arguments against the tool's schema and runs it.
func (r *Registry) Execute(ctx context.Context, userID, name string, arguments json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if len(arguments) == 0 || string(arguments) == "null" {
		arguments = json.RawMessage("{}")
	}

	var instance map[string]any
	if err := json.Unmarshal(arguments, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if err := t.resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return t.executor.Execute(ctx, userID, arguments)
}
