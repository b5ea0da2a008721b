// In file: cmd/gateway/handler.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
	"github.com/dileep-u-k/finance-chat-gateway/internal/cache"
	"github.com/dileep-u-k/finance-chat-gateway/internal/llm"
	"github.com/dileep-u-k/finance-chat-gateway/internal/orchestrator"
	"github.com/dileep-u-k/finance-chat-gateway/internal/stats"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

const contextPromptTemplate = "Using the following context, answer the question.\n\n%s\n\nQuestion: %s"

// ConversationRunner runs one bounded conversation.
type ConversationRunner interface {
	Run(ctx context.Context, req orchestrator.RunRequest) (*orchestrator.RunResult, error)
}

// ContextFetcher returns the resource context blob for a prompt.
type ContextFetcher interface {
	Fetch(ctx context.Context, endpoint string) (string, error)
}

// GatewayHandler serves the chat API. Everything it holds is shared
// read-only across requests.
type GatewayHandler struct {
	runner    ConversationRunner
	fetcher   ContextFetcher
	cache     *cache.ResponseCache
	stats     *stats.Recorder
	config    *AppConfig
	toolCount int
}

func NewGatewayHandler(runner ConversationRunner, fetcher ContextFetcher, responseCache *cache.ResponseCache, recorder *stats.Recorder, config *AppConfig, toolCount int) *GatewayHandler {
	return &GatewayHandler{
		runner:    runner,
		fetcher:   fetcher,
		cache:     responseCache,
		stats:     recorder,
		config:    config,
		toolCount: toolCount,
	}
}

// newRouter mounts every route of the gateway.
func newRouter(h *GatewayHandler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", h.HandleChat)
		v1.GET("/config", h.HandleConfig)
		v1.GET("/stats", h.HandleStats)
	}
	return engine
}

func (h *GatewayHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: " + err.Error(), Kind: api.ErrorKindInvalidRequest})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "please write a message", Kind: api.ErrorKindInvalidRequest})
		return
	}
	userID := h.resolveUserID(c, req.UserID)
	ctx := c.Request.Context()

	log.Printf("--- New Chat (User: %s, History: %d, Prompt: '%.30s...') ---", userID, len(req.History), prompt)

	cacheKey := cache.Key(userID, req.History, prompt)
	if cachedVal, found := h.cache.Get(ctx, cacheKey); found {
		var cachedResp api.ChatResponse
		if json.Unmarshal([]byte(cachedVal), &cachedResp) == nil {
			log.Println("✅ Cache HIT")
			h.stats.RecordCacheHit(ctx, h.config.Model)
			cachedResp.LatencyMS = time.Since(startTime).Milliseconds()
			cachedResp.CacheStatus = "HIT"
			c.JSON(http.StatusOK, cachedResp)
			return
		}
	}

	finalPrompt, contextUsed := h.augmentPrompt(ctx, prompt)
	messages := convertAPIMessagesToLLMMessages(req.History)
	messages = append(messages, llm.UserMessage(finalPrompt))

	result, err := h.runner.Run(ctx, orchestrator.RunRequest{UserID: userID, Messages: messages})
	latency := time.Since(startTime)
	if err != nil {
		status, errResp, outcome := classifyRunError(err)
		log.Printf("❌ Conversation run failed (%s): %v", errResp.Kind, err)
		h.stats.Record(ctx, h.config.Model, runStats(result, outcome, latency))
		c.JSON(status, errResp)
		return
	}
	h.stats.Record(ctx, h.config.Model, runStats(result, stats.OutcomeCompleted, latency))

	finalResponse := api.ChatResponse{
		Response:    result.Answer,
		Model:       h.config.Model,
		RunID:       result.RunID,
		Iterations:  result.Iterations,
		ToolCalls:   result.ToolCalls,
		ContextUsed: contextUsed,
		CacheStatus: "MISS",
		LatencyMS:   latency.Milliseconds(),
		Usage:       result.Usage,
	}

	respBytes, err := json.Marshal(finalResponse)
	if err != nil {
		log.Printf("WARNING: Failed to marshal response for caching: %v", err)
	} else {
		h.cache.Set(ctx, cacheKey, string(respBytes))
	}
	c.JSON(http.StatusOK, finalResponse)
}

// resolveUserID prefers the body, then the identity header, then the configured default.
func (h *GatewayHandler) resolveUserID(c *gin.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader(tools.UserIDHeader)); id != "" {
		return id
	}
	return h.config.DefaultUserID
}

// augmentPrompt prepends the resource context when there is any. A failed
// fetch only costs the context; the chat goes on without it.
func (h *GatewayHandler) augmentPrompt(ctx context.Context, prompt string) (string, bool) {
	if h.fetcher == nil || h.config.ResourceServerURL == "" {
		return prompt, false
	}
	blob, err := h.fetcher.Fetch(ctx, h.config.ResourceServerURL)
	if err != nil {
		log.Printf("WARNING: resource context unavailable: %v", err)
		return prompt, false
	}
	if strings.TrimSpace(blob) == "" {
		return prompt, false
	}
	log.Println("📝 Resource context found. Augmenting prompt.")
	return fmt.Sprintf(contextPromptTemplate, blob, prompt), true
}

// classifyRunError maps a failed run to an HTTP status, a client-facing error and a stats outcome.
func classifyRunError(err error) (int, api.ErrorResponse, stats.Outcome) {
	var transportErr *llm.TransportError
	switch {
	case errors.As(err, &transportErr):
		status := http.StatusBadGateway
		if transportErr.StatusCode >= 400 {
			status = transportErr.StatusCode
		}
		return status, api.ErrorResponse{
			Error: "The model service could not be reached: " + transportErr.Error(),
			Kind:  api.ErrorKindTransport,
		}, stats.OutcomeTransportFailure
	case errors.Is(err, orchestrator.ErrIterationLimit):
		return http.StatusInternalServerError, api.ErrorResponse{
			Error: "The assistant kept requesting tools without answering. Please rephrase your question.",
			Kind:  api.ErrorKindIterationLimit,
		}, stats.OutcomeIterationLimit
	default:
		return http.StatusInternalServerError, api.ErrorResponse{
			Error: "Error processing the message",
			Kind:  api.ErrorKindInternal,
		}, stats.OutcomeInternalFailure
	}
}

func runStats(result *orchestrator.RunResult, outcome stats.Outcome, latency time.Duration) stats.Run {
	run := stats.Run{Outcome: outcome, Latency: latency}
	if result != nil {
		run.Iterations = result.Iterations
		run.ToolCalls = result.ToolCalls
		run.ToolErrors = result.ToolErrors
		run.Usage = result.Usage
	}
	return run
}

func (h *GatewayHandler) HandleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, api.ConfigStatus{
		Provider:          h.config.Provider,
		HasModelKey:       h.config.APIKey != "",
		ModelKeyPreview:   keyPreview(h.config.APIKey),
		BaseURL:           h.config.BaseURL,
		Model:             h.config.Model,
		HasToolServer:     h.config.ToolServerURL != "",
		ToolServerURL:     orNotConfigured(h.config.ToolServerURL),
		HasResourceServer: h.config.ResourceServerURL != "",
		ResourceServerURL: orNotConfigured(h.config.ResourceServerURL),
		ToolCount:         h.toolCount,
	})
}

func (h *GatewayHandler) HandleStats(c *gin.Context) {
	s, err := h.stats.Get(c.Request.Context(), h.config.Model)
	if err != nil {
		log.Printf("WARNING: %v", err)
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "statistics are unavailable", Kind: api.ErrorKindInternal})
		return
	}
	c.JSON(http.StatusOK, s)
}

func orNotConfigured(v string) string {
	if v == "" {
		return "not configured"
	}
	return v
}

// convertAPIMessagesToLLMMessages maps client history onto conversation
// messages. Unknown roles are treated as user turns.
func convertAPIMessagesToLLMMessages(apiMessages []api.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(apiMessages)+1)
	for _, m := range apiMessages {
		role := llm.RoleUser
		switch llm.Role(m.Role) {
		case llm.RoleAssistant:
			role = llm.RoleAssistant
		case llm.RoleSystem:
			role = llm.RoleSystem
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	return messages
}
