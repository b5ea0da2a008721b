// In file: internal/tools/catalog.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Catalog is the set of tools advertised by a capability server, keyed by name.
// It is never mutated after construction, so a single Catalog can be shared by
// any number of concurrent conversation runs without locking.
type Catalog struct {
	order   []string
	entries map[string]catalogEntry
}

type catalogEntry struct {
	descriptor Descriptor
	resolved   *jsonschema.Resolved
}

// NewCatalog builds a catalog from descriptors, preserving their order.
// Duplicate names keep the first occurrence. A descriptor whose input schema
// cannot be resolved is dropped because its arguments could never be validated.
func NewCatalog(descriptors ...Descriptor) *Catalog {
	c := &Catalog{entries: make(map[string]catalogEntry, len(descriptors))}
	for _, d := range descriptors {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			log.Println("WARNING: Skipping tool descriptor without a name.")
			continue
		}
		if _, exists := c.entries[name]; exists {
			log.Printf("WARNING: Duplicate tool '%s' advertised, keeping the first one.", name)
			continue
		}
		if d.InputSchema == nil {
			d.InputSchema = &jsonschema.Schema{Type: "object"}
		}
		resolved, err := d.InputSchema.Resolve(nil)
		if err != nil {
			log.Printf("WARNING: Dropping tool '%s': invalid input schema: %v", name, err)
			continue
		}
		d.Name = name
		c.order = append(c.order, name)
		c.entries[name] = catalogEntry{descriptor: d, resolved: resolved}
	}
	return c
}

// EmptyCatalog returns a catalog with no tools (degraded mode).
func EmptyCatalog() *Catalog {
	return NewCatalog()
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	e, ok := c.entries[name]
	return e.descriptor, ok
}

// Names returns tool names in advertised order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Descriptors returns a copy of all descriptors in advertised order.
// It returns nil for an empty catalog so callers can omit the field entirely.
func (c *Catalog) Descriptors() []Descriptor {
	if c.Len() == 0 {
		return nil
	}
	out := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name].descriptor)
	}
	return out
}

// validate checks decoded arguments against the tool's resolved schema.
func (c *Catalog) validate(name string, args any) error {
	e, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if err := e.resolved.Validate(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// catalogResponse is the body of GET /tools.
type catalogResponse struct {
	Tools []json.RawMessage `json:"tools"`
}

// LoadCatalog discovers the tools advertised at endpoint with a single GET /tools.
//
// Discovery never fails from the caller's point of view: any transport error,
// non-2xx status or undecodable body yields an empty catalog so the gateway can
// still serve conversations without tools. There are no retries.
func LoadCatalog(ctx context.Context, endpoint string, httpClient *http.Client) *Catalog {
	if strings.TrimSpace(endpoint) == "" {
		log.Println("WARNING: No tool server configured. Running without tools.")
		return EmptyCatalog()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultDiscoveryTimeout}
	}

	descriptors, err := fetchDescriptors(ctx, endpoint, httpClient)
	if err != nil {
		log.Printf("WARNING: Tool discovery failed, running without tools: %v", err)
		return EmptyCatalog()
	}

	catalog := NewCatalog(descriptors...)
	log.Printf("✅ Tool catalog loaded with %d tools.", catalog.Len())
	return catalog
}

func fetchDescriptors(ctx context.Context, endpoint string, httpClient *http.Client) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(endpoint, "/tools"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("discovery returned an empty body")
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	// Descriptors are decoded one by one so a single bad entry only costs that tool.
	descriptors := make([]Descriptor, 0, len(parsed.Tools))
	for i, raw := range parsed.Tools {
		var d Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			log.Printf("WARNING: Dropping tool descriptor #%d: %v", i, err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// joinURL appends path to base without doubling the slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
