// Package llm provides a unified text-completion interface over several
// remote LLM providers (Gemini, OpenAI, DeepSeek, Groq, Anthropic, Ollama)
// and an ordered fallback Chain across them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names for ordering and configuration.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// DefaultOrder is the provider order used when none is configured.
var DefaultOrder = []string{ProviderGemini, ProviderOpenAI, ProviderDeepSeek, ProviderGroq}

// Common errors returned by providers and the chain.
var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrRateLimit    = errors.New("llm: rate limit exceeded")
	ErrProviderDown = errors.New("llm: provider unavailable")
	ErrInvalidModel = errors.New("llm: invalid model")
	ErrEmptyReply   = errors.New("llm: empty reply")
	ErrBadResponse  = errors.New("llm: unexpected response body")
	ErrNoProviders  = errors.New("llm: no providers configured")
	ErrNoReply      = errors.New("llm: no provider returned a reply")
)

// Completer is the capability every provider adapter implements: send one
// prompt, get back the model's text.
type Completer interface {
	// Name returns the provider identifier (e.g., "gemini", "groq").
	Name() string

	// Complete sends a single user prompt and returns the reply text.
	// Any transport fault, non-2xx status or unexpected body is an error.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Reply is a successful chain completion.
type Reply struct {
	Text     string        `json:"text"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// GenerationOptions holds the sampling settings fixed per adapter.
type GenerationOptions struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultGeneration returns the sampling settings used for price prompts.
func DefaultGeneration() GenerationOptions {
	return GenerationOptions{
		Temperature: 0.3,
		MaxTokens:   300,
	}
}

// nonEmpty trims a reply and reports ErrEmptyReply for blank text.
func nonEmpty(provider, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyReply, provider)
	}
	return text, nil
}
