// In file: internal/tools/types.go

// Package tools holds the capability-server side of the orchestration core:
// the tool catalog discovered at startup, the wire shapes of tool calls and
// their results, and the invoker that executes one call against the server.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolTypeFunction is the only tool call type emitted by completions endpoints.
const ToolTypeFunction = "function"

// Descriptor describes one tool advertised by a capability server.
// It is immutable once it has been placed in a Catalog.
type Descriptor struct {
	// Name is unique within a catalog.
	Name        string `json:"name"`
	Description string `json:"description"`
	// InputSchema is the JSON Schema the tool's arguments must satisfy.
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// UnmarshalJSON accepts both `input_schema` and the MCP-style `inputSchema` key.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		InputSchema *jsonschema.Schema `json:"input_schema"`
		MCPSchema   *jsonschema.Schema `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode tool descriptor: %w", err)
	}
	d.Name = raw.Name
	d.Description = raw.Description
	d.InputSchema = raw.InputSchema
	if d.InputSchema == nil {
		d.InputSchema = raw.MCPSchema
	}
	return nil
}

// ToolCall represents a request *from* the model to execute a tool.
// ID correlates the call with its ToolResult and is never rewritten.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and the raw JSON-string arguments chosen by the model.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewToolCall builds a function tool call.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{
		ID:   id,
		Type: ToolTypeFunction,
		Function: ToolCallFunction{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// ToolResult is the outcome of one ToolCall. Exactly one of Result and Error is set.
type ToolResult struct {
	CallID string          `json:"tool_call_id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	// Err keeps the underlying cause for errors.Is checks; it never leaves the process.
	Err error `json:"-"`
}

// Succeeded returns a successful result for callID.
func Succeeded(callID string, result json.RawMessage) ToolResult {
	return ToolResult{CallID: callID, Result: result}
}

// Failed returns a failed result for callID carrying err's message.
func Failed(callID string, err error) ToolResult {
	return ToolResult{CallID: callID, Error: err.Error(), Err: err}
}

// IsError reports whether the invocation failed.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}

// Message renders the result as the content of the conversation message that
// is appended after the assistant turn that requested the call.
func (r ToolResult) Message() string {
	var payload any
	if r.IsError() {
		payload = struct {
			ToolCallID string `json:"tool_call_id"`
			Error      string `json:"error"`
		}{r.CallID, r.Error}
	} else {
		result := r.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		payload = struct {
			ToolCallID string          `json:"tool_call_id"`
			Result     json.RawMessage `json:"result"`
		}{r.CallID, result}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		// Only reachable if Result holds invalid JSON, which the invoker never produces.
		b, _ = json.Marshal(struct {
			ToolCallID string `json:"tool_call_id"`
			Error      string `json:"error"`
		}{r.CallID, fmt.Sprintf("unencodable tool result: %v", err)})
	}
	return string(b)
}
