package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frjar/frjarai/internal/config"
)

// DefaultCallTimeout bounds a single provider call when none is configured.
const DefaultCallTimeout = 30 * time.Second

// ProviderStats counts chain outcomes for one provider.
type ProviderStats struct {
	Calls     int64  `json:"calls"`
	Failures  int64  `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}

// Chain tries an ordered list of providers and returns the first
// non-empty reply. A failing provider is logged and skipped; the chain
// itself never retries.
type Chain struct {
	providers   []Completer
	callTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	stats map[string]*ProviderStats
}

// ChainOption configures the chain.
type ChainOption func(*Chain)

// WithCallTimeout bounds every individual provider call.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithLogger sets the logger used to report skipped providers.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a chain over providers, tried in the given order.
func NewChain(providers []Completer, opts ...ChainOption) *Chain {
	c := &Chain{
		providers:   providers,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
		stats:       make(map[string]*ProviderStats, len(providers)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range providers {
		c.stats[p.Name()] = &ProviderStats{}
	}
	return c
}

// Complete sends prompt to each provider in order and returns the first
// non-empty reply. When every provider fails it returns ErrNoReply; a
// cancelled ctx stops the iteration with ctx.Err().
func (c *Chain) Complete(ctx context.Context, prompt string) (Reply, error) {
	if len(c.providers) == 0 {
		return Reply{}, fmt.Errorf("%w: %w", ErrNoReply, ErrNoProviders)
	}

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		text, err := p.Complete(callCtx, prompt)
		cancel()

		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				err = fmt.Errorf("%w: %s", ErrEmptyReply, p.Name())
			}
		}
		c.record(p.Name(), err)

		if err == nil {
			return Reply{Text: text, Provider: p.Name(), Latency: time.Since(start)}, nil
		}
		c.logger.Warn("llm/chain: provider failed, trying next",
			"provider", p.Name(), "err", err, "elapsed", time.Since(start).Round(time.Millisecond))
	}

	return Reply{}, ErrNoReply
}

// Names returns the provider names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int { return len(c.providers) }

// Stats returns a snapshot of per-provider call counters.
func (c *Chain) Stats() map[string]ProviderStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]ProviderStats, len(c.stats))
	for name, s := range c.stats {
		out[name] = *s
	}
	return out
}

// ── Internal Helpers ──

func (c *Chain) record(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[name]
	if !ok {
		s = &ProviderStats{}
		c.stats[name] = s
	}
	s.Calls++
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
}

// NewChainFromConfig builds the chain from the application config. A
// provider joins the chain only when its key (or URL, for Ollama) is set;
// order follows cfg.LLM.Order, defaulting to DefaultOrder.
func NewChainFromConfig(cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	order := cfg.LLM.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	if logger == nil {
		logger = slog.Default()
	}

	temp, maxTokens := cfg.LLM.Temperature, cfg.LLM.MaxTokens
	var providers []Completer
	seen := make(map[string]bool)

	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true

		p, err := buildProvider(name, cfg, temp, maxTokens)
		if err != nil {
			logger.Debug("llm: provider not configured, skipping", "provider", name, "err", err)
			continue
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return NewChain(providers, WithCallTimeout(cfg.LLM.CallTimeout), WithLogger(logger)), nil
}

func buildProvider(name string, cfg *config.Config, temp float64, maxTokens int) (Completer, error) {
	l := cfg.LLM
	switch name {
	case ProviderGemini:
		return NewGeminiProvider(l.GeminiKey,
			WithGeminiModel(l.GeminiModel), WithGeminiGeneration(temp, maxTokens))
	case ProviderOpenAI:
		return NewOpenAIProvider(l.OpenAIKey,
			WithOpenAIModel(l.OpenAIModel), WithOpenAIGeneration(temp, maxTokens))
	case ProviderDeepSeek:
		return NewDeepSeekProvider(l.DeepSeekKey,
			WithOpenAIModel(l.DeepSeekModel), WithOpenAIGeneration(temp, maxTokens))
	case ProviderGroq:
		return NewGroqProvider(l.GroqKey,
			WithOpenAIModel(l.GroqModel), WithOpenAIGeneration(temp, maxTokens))
	case ProviderAnthropic:
		return NewAnthropicProvider(l.AnthropicKey,
			WithAnthropicModel(l.AnthropicModel), WithAnthropicGeneration(temp, maxTokens))
	case ProviderOllama:
		if l.OllamaURL == "" {
			return nil, fmt.Errorf("%w: ollama url not set", ErrProviderDown)
		}
		return NewOllamaProvider(l.OllamaURL,
			WithOllamaModel(l.OllamaModel), WithOllamaGeneration(temp, maxTokens))
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidModel, name)
}
