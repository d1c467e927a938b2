// Package llm puts the supported chat-completion backends behind one
// Provider interface. The backend is chosen once, at startup, by New.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/kumanday/OmniLearn/pkg/httpclient"
)

// Provider names accepted by New.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider produces text from a conversation.
type Provider interface {
	// Name returns the provider name (e.g. "openai", "gemini").
	Name() string

	// GenerateCompletion sends messages to the backend and returns the
	// generated text. With jsonMode the backend is asked for a single JSON
	// value; the reply is not validated here. Failures are *UpstreamError.
	GenerateCompletion(ctx context.Context, messages []Message, jsonMode bool) (string, error)
}

// Config selects and configures the backend.
type Config struct {
	Provider string
	Model    string

	OpenAIKey         string
	OpenAIBaseURL     string
	OpenRouterKey     string
	OpenRouterBaseURL string
	GeminiKey         string
	GeminiBaseURL     string

	Timeout time.Duration
}

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout           = 60 * time.Second
)

// New validates cfg and returns the selected provider. It makes no network
// calls; a missing key or unknown provider is a *ConfigurationError.
func New(cfg Config, logger *slog.Logger) (Provider, error) {
	if cfg.Model == "" {
		return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "model is required"}
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "OPENAI_API_KEY is required"}
		}
		return newChatProvider(ProviderOpenAI, orDefault(cfg.OpenAIBaseURL, defaultOpenAIBaseURL),
			cfg.OpenAIKey, cfg.Model, newClient(ProviderOpenAI, cfg.Timeout, logger)), nil

	case ProviderOpenRouter:
		if cfg.OpenRouterKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "OPENROUTER_API_KEY is required"}
		}
		return newChatProvider(ProviderOpenRouter, orDefault(cfg.OpenRouterBaseURL, defaultOpenRouterBaseURL),
			cfg.OpenRouterKey, cfg.Model, newClient(ProviderOpenRouter, cfg.Timeout, logger)), nil

	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "GEMINI_API_KEY is required"}
		}
		return newGeminiProvider(orDefault(cfg.GeminiBaseURL, defaultGeminiBaseURL),
			cfg.GeminiKey, cfg.Model, newClient(ProviderGemini, cfg.Timeout, logger)), nil

	default:
		return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "unknown provider"}
	}
}

// newClient builds the HTTP client for one backend. Requests are never
// retried; the breaker only fails fast while the backend keeps erroring.
func newClient(name string, timeout time.Duration, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 0
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("llm-"+name), logger)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
