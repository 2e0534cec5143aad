// Package llm provides the rate-limited, retried transport to the
// extraction backend.
//
// Backends are a small closed set (Ollama and OpenAI-compatible remote
// APIs) selected once at configuration time behind the Provider interface.
// Rate limiting and retry are backend-agnostic and live in Client.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider is a single backend implementation. Implementations differ only
// in request/response shape; throttling and retry are layered on top by
// Client.
type Provider interface {
	// Complete sends a prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a backend identifier recorded on extraction results,
	// e.g. "ollama/llama3.1" or "remote-api/openai/gpt-4o-mini".
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0 = deterministic
	Format      string  // "json" for structured output
	System      string  // optional system prompt
}

// BackendConfig selects and configures a provider.
type BackendConfig struct {
	Backend  string // "ollama" or "remote-api"
	Model    string
	Endpoint string // base URL override
	APIKey   string // empty = read from env (remote-api only)
}

// NewProvider creates a provider for the configured backend.
func NewProvider(cfg BackendConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.1"
		}
		return &ollamaProvider{baseURL: endpoint, model: model}, nil

	case "remote-api", "remote":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENROUTER_API_KEY")
		}
		if key == "" {
			key = os.Getenv("FINGRAPH_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("remote-api backend requires an API key (OPENROUTER_API_KEY or FINGRAPH_API_KEY)")
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "https://openrouter.ai/api/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-4o-mini"
		}
		return &remoteProvider{apiKey: key, model: model, baseURL: endpoint}, nil

	default:
		return nil, fmt.Errorf("unknown backend: %q (supported: ollama, remote-api)", cfg.Backend)
	}
}
