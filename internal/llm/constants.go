// In file: internal/llm/constants.go
package llm

import "time"

// This file centralizes constants shared across the providers in the llm package.
const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096

	// DefaultCompletionsURL is the OpenAI-compatible endpoint used when none is configured.
	DefaultCompletionsURL = "https://openrouter.ai/api/v1/chat/completions"
	// DefaultModel is the model requested when none is configured.
	DefaultModel = "anthropic/claude-sonnet-4.5"
)
