package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicProvider implements Completer for Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	gen     GenerationOptions
	client  *http.Client
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if model != "" {
			p.gen.Model = model
		}
	}
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicGeneration overrides temperature and max tokens.
func WithAnthropicGeneration(temperature float64, maxTokens int) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.gen.Temperature = temperature
		p.gen.MaxTokens = maxTokens
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = client }
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	gen := DefaultGeneration()
	gen.Model = "claude-3-5-haiku-20241022"
	p := &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		gen:     gen,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Model returns the configured model.
func (p *AnthropicProvider) Model() string { return p.gen.Model }

// Complete sends a single user message to the Messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := p.gen.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300 // required by the API
	}
	body := anthropicRequest{
		Model:       p.gen.Model,
		MaxTokens:   maxTokens,
		Temperature: p.gen.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return "", err
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: anthropic: decode: %v", ErrBadResponse, err)
	}
	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return nonEmpty(ProviderAnthropic, sb.String())
}

// ── Internal Types ──

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ── Helpers ──

func (p *AnthropicProvider) checkError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var apiErr anthropicErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: anthropic: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests, 529:
		return fmt.Errorf("%w: anthropic: %s", ErrRateLimit, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: anthropic: %s", ErrInvalidModel, msg)
	}
	return fmt.Errorf("%w: anthropic: HTTP %d: %s", ErrProviderDown, resp.StatusCode, msg)
}
