package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiProvider implements Completer for Google's Gemini generateContent API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	gen     GenerationOptions
	client  *http.Client
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.gen.Model = model
		}
	}
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithGeminiGeneration overrides temperature and max output tokens.
func WithGeminiGeneration(temperature float64, maxTokens int) GeminiOption {
	return func(p *GeminiProvider) {
		p.gen.Temperature = temperature
		p.gen.MaxTokens = maxTokens
	}
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// NewGeminiProvider creates a Gemini provider (gemini-2.0-flash by default).
func NewGeminiProvider(apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	gen := DefaultGeneration()
	gen.Model = "gemini-2.0-flash"
	p := &GeminiProvider{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		gen:     gen,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// Model returns the configured model.
func (p *GeminiProvider) Model() string { return p.gen.Model }

// Complete sends a generateContent request with the key as a query parameter.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     p.gen.Temperature,
			MaxOutputTokens: p.gen.MaxTokens,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.gen.Model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrProviderDown, redactKey(err, p.apiKey))
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return "", err
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: gemini: decode: %v", ErrBadResponse, err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: gemini: no candidates", ErrBadResponse)
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return nonEmpty(ProviderGemini, sb.String())
}

// ── Internal Types ──

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ── Helpers ──

func (p *GeminiProvider) checkError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var apiErr geminiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: gemini: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: gemini: %s", ErrRateLimit, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: gemini: %s", ErrInvalidModel, msg)
	}
	return fmt.Errorf("%w: gemini: HTTP %d: %s", ErrProviderDown, resp.StatusCode, msg)
}

// redactKey keeps the query-string API key out of logged transport errors.
func redactKey(err error, key string) string {
	if key == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), url.QueryEscape(key), "***")
}
