// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// GeminiClient is the alternative provider for Google's Gemini models.
type GeminiClient struct {
	client *genai.Client
}

var _ ModelClient = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Close releases the underlying SDK connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete performs one blocking request to the Gemini API. The last message
// of the history is sent as the new turn; everything before it is chat history.
func (c *GeminiClient) Complete(ctx context.Context, req *CompletionRequest) (*Reply, error) {
	if len(req.Messages) == 0 {
		return nil, &TransportError{Op: "request", Err: errors.New("no messages to send")}
	}

	// A model handle is cheap and carries per-request settings, so one is made per call.
	model := c.client.GenerativeModel(req.Model)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	if len(req.Tools) > 0 {
		model.Tools = toGeminiTools(req.Tools)
	}

	chat := model.StartChat()
	chat.History = toGeminiContentHistory(req.Messages)

	last := req.Messages[len(req.Messages)-1]
	resp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, &TransportError{Op: "request", Err: fmt.Errorf("gemini API call failed: %w", err)}
	}

	reply, err := parseGeminiResponse(resp, uuid.NewString)
	if err != nil {
		return nil, &TransportError{Op: "decode", Err: err}
	}

	// Fallback: some responses omit completion tokens; count them manually.
	if reply.Usage.CompletionTokens == 0 && reply.Content != "" {
		countResp, err := model.CountTokens(ctx, genai.Text(reply.Content))
		if err != nil {
			log.Printf("WARNING: Failed to manually count Gemini completion tokens: %v", err)
		} else {
			reply.Usage.CompletionTokens = int(countResp.TotalTokens)
			reply.Usage.TotalTokens = reply.Usage.PromptTokens + reply.Usage.CompletionTokens
		}
	}
	return reply, nil
}

// toGeminiTools converts catalog descriptors into one function-declaration tool.
func toGeminiTools(descs []tools.Descriptor) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(descs))
	for _, d := range descs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  convertSchema(d.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema maps the subset of JSON Schema Gemini understands onto genai.Schema.
func convertSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	typ := s.Type
	if typ == "" {
		for _, t := range s.Types {
			if t == "null" {
				out.Nullable = true
				continue
			}
			typ = t
		}
	}
	switch typ {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	for _, e := range s.Enum {
		if str, ok := e.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = convertSchema(v)
		}
	}
	return out
}

const emptyTurnPlaceholder = "(tool calls requested)"

// toGeminiContentHistory converts every message but the last to chat contents.
func toGeminiContentHistory(messages []Message) []*genai.Content {
	if len(messages) < 2 {
		return nil
	}
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, msg := range messages[:len(messages)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		// Gemini rejects empty text parts, and a turn that only requested tools has no text.
		text := msg.Content
		if strings.TrimSpace(text) == "" {
			text = emptyTurnPlaceholder
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}
	return history
}

// parseGeminiResponse converts a Gemini response into a Reply. Gemini does not
// assign ids to function calls, so newID supplies one per call.
func parseGeminiResponse(resp *genai.GenerateContentResponse, newID func() string) (*Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	var content strings.Builder
	var calls []tools.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			content.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				log.Printf("WARNING: could not marshal Gemini tool call args for %s: %v", v.Name, err)
				continue
			}
			calls = append(calls, tools.NewToolCall("gemini-"+newID(), v.Name, string(args)))
		}
	}

	reply := &Reply{
		Content:   strings.TrimSpace(content.String()),
		ToolCalls: calls,
	}
	if resp.UsageMetadata != nil {
		reply.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		reply.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		reply.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return reply, nil
}
