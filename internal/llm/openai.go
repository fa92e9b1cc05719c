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

// Default endpoints for the OpenAI-compatible chat-completions APIs.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	GroqBaseURL     = "https://api.groq.com/openai/v1"
)

// OpenAIProvider implements Completer for any OpenAI-compatible Chat
// Completions API. DeepSeek and Groq are served by the same adapter with
// their own base URL, model and name.
type OpenAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	gen     GenerationOptions
	client  *http.Client
}

// OpenAIOption configures the OpenAI-compatible provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL sets a custom base URL (e.g., for proxies or test servers).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIModel sets the model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.gen.Model = model
		}
	}
}

// WithOpenAIGeneration overrides temperature and max tokens.
func WithOpenAIGeneration(temperature float64, maxTokens int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.gen.Temperature = temperature
		p.gen.MaxTokens = maxTokens
	}
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

// NewOpenAIProvider creates an OpenAI provider (gpt-4o by default).
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	return newCompatProvider(ProviderOpenAI, OpenAIBaseURL, "gpt-4o", apiKey, opts...)
}

// NewDeepSeekProvider creates a DeepSeek provider (deepseek-chat by default).
func NewDeepSeekProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	return newCompatProvider(ProviderDeepSeek, DeepSeekBaseURL, "deepseek-chat", apiKey, opts...)
}

// NewGroqProvider creates a Groq provider (llama3-70b-8192 by default).
func NewGroqProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	return newCompatProvider(ProviderGroq, GroqBaseURL, "llama3-70b-8192", apiKey, opts...)
}

func newCompatProvider(name, baseURL, model, apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	gen := DefaultGeneration()
	gen.Model = model
	p := &OpenAIProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		gen:     gen,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the configured model.
func (p *OpenAIProvider) Model() string { return p.gen.Model }

// Complete sends a single-message chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := openAIChatRequest{
		Model:       p.gen.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: p.gen.Temperature,
		MaxTokens:   p.gen.MaxTokens,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProviderDown, p.name, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return "", err
	}

	var result openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %s: decode: %v", ErrBadResponse, p.name, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no choices", ErrBadResponse, p.name)
	}
	return nonEmpty(p.name, result.Choices[0].Message.Content)
}

// ── Internal Types ──

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Model   string         `json:"model"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ── Helpers ──

func (p *OpenAIProvider) checkError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var apiErr openAIErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", ErrNoAPIKey, p.name, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %s", ErrRateLimit, p.name, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", ErrInvalidModel, p.name, msg)
	}
	return fmt.Errorf("%w: %s: HTTP %d: %s", ErrProviderDown, p.name, resp.StatusCode, msg)
}
