// In file: cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/finance-chat-gateway/internal/cache"
	"github.com/dileep-u-k/finance-chat-gateway/internal/llm"
	"github.com/dileep-u-k/finance-chat-gateway/internal/orchestrator"
	"github.com/dileep-u-k/finance-chat-gateway/internal/resources"
	"github.com/dileep-u-k/finance-chat-gateway/internal/stats"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// main is the composition root: it loads configuration, builds every
// service, injects dependencies and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 Starting Finance Chat Gateway | %s", GetBuildInfo())

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")

	// 2. INITIALIZE SERVICES
	responseCache, recorder := initializeRedis(cfg)

	model, closeModel, err := initializeModelClient(cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	defer closeModel()

	// The catalog is discovered once and shared read-only by every run.
	discoveryCtx, cancel := context.WithTimeout(context.Background(), cfg.Loop.Timeouts.Discovery)
	catalog := tools.LoadCatalog(discoveryCtx, cfg.ToolServerURL, nil)
	cancel()

	invoker := tools.NewInvoker(cfg.ToolServerURL, catalog, tools.WithTimeout(cfg.Loop.Timeouts.Tool))
	loop := orchestrator.New(model, catalog, invoker, orchestrator.Config{
		Model:             cfg.Model,
		MaxTokens:         cfg.Loop.MaxTokens,
		MaxIterations:     cfg.Loop.MaxIterations,
		ModelTimeout:      cfg.Loop.Timeouts.Model,
		ParallelToolCalls: cfg.Loop.ParallelToolCalls,
	})
	fetcher := resources.NewFetcher(
		resources.WithTransport(cfg.ResourceTransport, nil),
		resources.WithTimeout(cfg.Loop.Timeouts.Resource),
	)

	gatewayHandler := NewGatewayHandler(loop, fetcher, responseCache, recorder, cfg, catalog.Len())
	log.Printf("✅ All services initialized (%d tools, max %d rounds).", catalog.Len(), loop.MaxIterations())

	// 3. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: newRouter(gatewayHandler)}
	runServerWithGracefulShutdown(srv)
}

// initializeRedis connects the cache and statistics store. Without REDIS_ADDR
// both are disabled; an unreachable configured Redis is fatal.
func initializeRedis(cfg *AppConfig) (*cache.ResponseCache, *stats.Recorder) {
	if cfg.RedisAddr == "" {
		log.Println("WARNING: REDIS_ADDR is not set; response cache and stats are disabled.")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ FATAL: Could not connect to Redis: %v", err)
	}
	log.Println("✅ Redis connected.")
	return cache.New(rdb, cache.DefaultTTL), stats.NewRecorder(rdb)
}

// initializeModelClient creates the client for the configured provider.
func initializeModelClient(cfg *AppConfig) (llm.ModelClient, func(), error) {
	switch cfg.Provider {
	case ProviderGemini:
		client, err := llm.NewGeminiClient(context.Background(), cfg.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		client, err := llm.NewCompletionsClient(cfg.APIKey,
			llm.WithURL(cfg.BaseURL),
			llm.WithAttribution(cfg.SiteURL, cfg.AppTitle),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create completions client: %w", err)
		}
		return client, func() {}, nil
	}
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Gateway is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
