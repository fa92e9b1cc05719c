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

// OllamaProvider implements Completer for a local Ollama instance.
type OllamaProvider struct {
	baseURL string
	gen     GenerationOptions
	client  *http.Client
}

// OllamaOption configures the Ollama provider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.gen.Model = model
		}
	}
}

// WithOllamaGeneration overrides temperature and the token budget.
func WithOllamaGeneration(temperature float64, maxTokens int) OllamaOption {
	return func(p *OllamaProvider) {
		p.gen.Temperature = temperature
		p.gen.MaxTokens = maxTokens
	}
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

// NewOllamaProvider creates an Ollama provider.
// baseURL is the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaProvider(baseURL string, opts ...OllamaOption) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	gen := DefaultGeneration()
	gen.Model = "qwen2.5:7b"
	p := &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		gen:     gen,
		client:  &http.Client{Timeout: 300 * time.Second}, // longer timeout for local models
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

// Model returns the configured model.
func (p *OllamaProvider) Model() string { return p.gen.Model }

// Complete sends a non-streaming /api/chat request.
func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := ollamaChatRequest{
		Model:    p.gen.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: p.gen.Temperature,
			NumPredict:  p.gen.MaxTokens,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: ollama: %s", ErrInvalidModel, strings.TrimSpace(string(msg)))
		}
		return "", fmt.Errorf("%w: ollama: HTTP %d: %s", ErrProviderDown, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: ollama: decode: %v", ErrBadResponse, err)
	}
	return nonEmpty(ProviderOllama, result.Message.Content)
}

// ── Internal Types ──

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
