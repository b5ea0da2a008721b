package tools

import "errors"

// Invocation failures. They are reported inside a ToolResult, never returned
// past the invoker, so the model can see that a tool failed and decide what to do.
var (
	ErrUnknownTool      = errors.New("tool not found in catalog")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrExecuteStatus    = errors.New("tool execution returned non-success status")
	ErrMalformedResult  = errors.New("tool execution returned malformed result")
	ErrTransport        = errors.New("tool execution transport failed")
)
