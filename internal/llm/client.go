// In file: internal/llm/client.go

// Package llm contains the model-endpoint side of the orchestration core: the
// conversation message type, the ModelClient interface, and its providers.
package llm

import (
	"context"
	"fmt"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Within a run the history is
// append-only: the ordered sequence of messages is the conversation state.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CompletionRequest is everything the model needs for one turn.
type CompletionRequest struct {
	Model    string
	Messages []Message
	// Tools is nil when the catalog is empty; providers must then omit the
	// field from the wire request entirely.
	Tools     []tools.Descriptor
	MaxTokens int
}

// Reply is the model's answer for one turn.
type Reply struct {
	Content string
	// ToolCalls are in the order the model emitted them.
	ToolCalls []tools.ToolCall
	Usage     api.Usage
}

// HasToolCalls reports whether the model asked for any tool to be run.
func (r *Reply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// =================================================================================
// Model Client Interface
// =================================================================================

// ModelClient is implemented by every model provider.
type ModelClient interface {
	// Complete performs one blocking completion over the full history.
	// Failures are reported as *TransportError and are never retried here.
	Complete(ctx context.Context, req *CompletionRequest) (*Reply, error)
}

// TransportError is a network, status or decoding failure while talking to
// the model endpoint. It is fatal to the current conversation run.
type TransportError struct {
	// Op names the step that failed ("request", "status", "decode").
	Op string
	// StatusCode is the upstream HTTP status, or 0 when none was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model endpoint %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model endpoint %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
