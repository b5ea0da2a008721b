// In file: internal/api/types.go

// Package api defines the public request and response shapes of the gateway's
// HTTP surface. They are kept separate from the internal llm types so the wire
// contract can evolve independently of the orchestration core.
package api

// Message is one prior turn of a conversation, as supplied by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	// UserID identifies the caller. It is threaded explicitly through every
	// tool call instead of being baked into request construction.
	UserID  string    `json:"user_id,omitempty"`
	History []Message `json:"history,omitempty"`
}

// ChatResponse is the successful result of a conversation run.
type ChatResponse struct {
	Response    string `json:"response"`
	Model       string `json:"model"`
	RunID       string `json:"run_id,omitempty"`
	Iterations  int    `json:"iterations"`
	ToolCalls   int    `json:"tool_calls"`
	ContextUsed bool   `json:"context_used"`
	CacheStatus string `json:"cache_status"`
	LatencyMS   int64  `json:"latency_ms"`
	Usage       Usage  `json:"usage"`
}

// Error kinds let callers tell "upstream problem" from "model kept calling tools".
const (
	ErrorKindInvalidRequest = "invalid_request"
	ErrorKindTransport      = "transport"
	ErrorKindIterationLimit = "iteration_limit"
	ErrorKindInternal       = "internal"
)

// ErrorResponse is the single human-readable failure returned to the client.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Usage holds token accounting reported by the model endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage report into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ConfigStatus is returned by GET /api/v1/config. Secrets are never echoed in full.
type ConfigStatus struct {
	Provider          string `json:"provider"`
	HasModelKey       bool   `json:"has_model_key"`
	ModelKeyPreview   string `json:"model_key_preview"`
	BaseURL           string `json:"base_url"`
	Model             string `json:"model"`
	HasToolServer     bool   `json:"has_tool_server"`
	ToolServerURL     string `json:"tool_server_url"`
	HasResourceServer bool   `json:"has_resource_server"`
	ResourceServerURL string `json:"resource_server_url"`
	ToolCount         int    `json:"tool_count"`
}
