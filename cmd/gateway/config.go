// In file: cmd/gateway/config.go
package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/finance-chat-gateway/internal/llm"
	"github.com/dileep-u-k/finance-chat-gateway/internal/orchestrator"
	"github.com/dileep-u-k/finance-chat-gateway/internal/resources"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	defaultConfigFile  = "config.yaml"
	defaultGeminiModel = "gemini-1.5-flash"
	defaultUserID      = "1"
)

// LoopConfig is the tuning read from the YAML config file.
type LoopConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	MaxTokens         int           `yaml:"max_tokens"`
	ParallelToolCalls bool          `yaml:"parallel_tool_calls"`
	Timeouts          TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig bounds each kind of network call. Values are Go durations ("30s").
type TimeoutConfig struct {
	Model     time.Duration `yaml:"model"`
	Tool      time.Duration `yaml:"tool"`
	Resource  time.Duration `yaml:"resource"`
	Discovery time.Duration `yaml:"discovery"`
}

// AppConfig holds all configuration for the gateway, loaded from the environment and config file.
type AppConfig struct {
	Port              string
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	SiteURL           string
	AppTitle          string
	ToolServerURL     string
	ResourceServerURL string
	ResourceTransport string
	RedisAddr         string
	DefaultUserID     string
	Loop              LoopConfig
}

// LoadConfig loads configuration from a .env file, environment variables, and the YAML file.
func LoadConfig() (*AppConfig, error) {
	// Only attempt to load a .env file in local development. In release mode
	// configuration is provided directly as environment variables.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}
	return loadConfigFrom(os.Getenv)
}

// loadConfigFrom builds the config from getenv, so tests need not touch the process environment.
func loadConfigFrom(getenv func(string) string) (*AppConfig, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	resourceURL := env("RESOURCE_SERVER_URL", "")
	cfg := &AppConfig{
		Port:              env("PORT", "8080"),
		Provider:          strings.ToLower(env("MODEL_PROVIDER", ProviderOpenRouter)),
		BaseURL:           env("LLM_BASE_URL", llm.DefaultCompletionsURL),
		SiteURL:           env("SITE_URL", ""),
		AppTitle:          env("APP_TITLE", "Finance Chat"),
		ToolServerURL:     env("MCP_SERVER_URL", ""),
		ResourceServerURL: resourceURL,
		ResourceTransport: strings.ToLower(env("RESOURCE_TRANSPORT", defaultResourceTransport(resourceURL))),
		RedisAddr:         env("REDIS_ADDR", ""),
		DefaultUserID:     env("DEFAULT_USER_ID", defaultUserID),
	}

	switch cfg.Provider {
	case ProviderOpenRouter:
		cfg.APIKey = env("LLM_API_KEY", "")
		cfg.Model = env("LLM_MODEL", llm.DefaultModel)
		if cfg.APIKey == "" {
			return nil, errors.New("LLM_API_KEY environment variable is not set")
		}
	case ProviderGemini:
		cfg.APIKey = env("GEMINI_API_KEY", "")
		cfg.Model = env("LLM_MODEL", defaultGeminiModel)
		if cfg.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported MODEL_PROVIDER %q (want %s or %s)", cfg.Provider, ProviderOpenRouter, ProviderGemini)
	}

	switch cfg.ResourceTransport {
	case resources.TransportSSE, resources.TransportStreamable:
	default:
		return nil, fmt.Errorf("unsupported RESOURCE_TRANSPORT %q (want %s or %s)", cfg.ResourceTransport, resources.TransportSSE, resources.TransportStreamable)
	}

	if err := cfg.loadLoopConfig(getenv("CONFIG_FILE")); err != nil {
		return nil, err
	}
	if cfg.ToolServerURL == "" {
		log.Println("WARNING: MCP_SERVER_URL is not set; chats will run without tools.")
	}
	return cfg, nil
}

// defaultResourceTransport picks streamable HTTP for endpoints mounted at /mcp
// (as cmd/capserver does) and SSE for everything else.
func defaultResourceTransport(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err == nil && strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/mcp") {
		return resources.TransportStreamable
	}
	return resources.TransportSSE
}

// loadLoopConfig reads the optional YAML tuning file. A missing default file
// is fine; a missing file that was named explicitly is an error.
func (cfg *AppConfig) loadLoopConfig(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg.Loop); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Printf("WARNING: %s not found, using default loop settings.", path)
	default:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if cfg.Loop.MaxIterations < 0 || cfg.Loop.MaxTokens < 0 {
		return fmt.Errorf("max_iterations and max_tokens must not be negative")
	}
	if cfg.Loop.MaxIterations == 0 {
		cfg.Loop.MaxIterations = orchestrator.DefaultMaxIterations
	}
	if cfg.Loop.MaxTokens == 0 {
		cfg.Loop.MaxTokens = orchestrator.DefaultMaxTokens
	}
	t := &cfg.Loop.Timeouts
	if t.Model <= 0 {
		t.Model = orchestrator.DefaultModelTimeout
	}
	if t.Tool <= 0 {
		t.Tool = 30 * time.Second
	}
	if t.Resource <= 0 {
		t.Resource = 15 * time.Second
	}
	if t.Discovery <= 0 {
		t.Discovery = 15 * time.Second
	}
	return nil
}

// keyPreview shows only the first 10 characters of a secret.
func keyPreview(key string) string {
	if key == "" {
		return "not configured"
	}
	if len(key) <= 10 {
		return key[:len(key)/2] + "..."
	}
	return key[:10] + "..."
}
