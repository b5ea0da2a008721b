// In file: cmd/capserver/main.go
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
	"github.com/joho/godotenv"

	"github.com/dileep-u-k/finance-chat-gateway/internal/toolserver"
)

// capserver is the reference capability server: the finance tools over the
// tool HTTP protocol and a directory of documents as MCP resources at /mcp.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🚀 Starting capability server...")

	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}
	port := getenv("CAPSERVER_PORT", "8081")
	resourceDir := getenv("RESOURCE_DIR", "./docs")

	registry := toolserver.NewRegistry()
	for _, exec := range []toolserver.Executor{
		toolserver.NewCalculatorTool(),
		toolserver.NewGoalProgressTool(),
	} {
		if err := registry.Register(exec); err != nil {
			log.Fatalf("❌ FATAL: %v", err)
		}
	}
	log.Printf("✅ Registered %d tools.", registry.Len())

	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	toolserver.NewHandler(registry).Register(engine)

	resourceServer, count, err := toolserver.NewResourceServer("finance-docs", resourceDir)
	if err != nil {
		log.Printf("WARNING: resources disabled: %v", err)
	} else if count > 0 {
		engine.Any("/mcp", gin.WrapH(toolserver.NewResourceHandler(resourceServer)))
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: engine}
	go func() {
		log.Printf("👂 Capability server is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down capability server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}
	log.Println("👋 Capability server exited gracefully.")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
