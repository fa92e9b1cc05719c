// Package supplier queries the FRJAR supplier search endpoint.
package supplier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/frjar/frjarai/pkg/models"
)

// DefaultSearchURL is the public suggestions endpoint.
const DefaultSearchURL = "https://api.frjar.com/api/search/suggestions"

// ErrSearch is returned for transport faults, non-200 statuses and
// undecodable bodies.
var ErrSearch = errors.New("supplier: search failed")

// Suggestion is one search hit. The endpoint's schema is loose, so the
// raw object is kept and read through accessors.
type Suggestion map[string]any

// Name returns the first non-empty of name, title or company_name.
func (s Suggestion) Name() string { return s.str("name", "title", "company_name") }

// Location returns the first non-empty of location, city or address.
func (s Suggestion) Location() string { return s.str("location", "city", "address") }

func (s Suggestion) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := s[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type searchRequest struct {
	Search string `json:"search"`
	Lang   string `json:"lang"`
}

type searchResponse struct {
	Data []Suggestion `json:"data"`
}

// Client wraps a resty client bound to the search URL.
type Client struct {
	url    string
	http   *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.http.SetRetryCount(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a search client. An empty url selects DefaultSearchURL.
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultSearchURL
	}
	hc := resty.New().
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})
	c := &Client{url: url, http: hc, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search posts {"search": name, "lang": "ENGLISH"} and returns the data array.
func (c *Client) Search(ctx context.Context, name string) ([]Suggestion, error) {
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Search: name, Lang: "ENGLISH"}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrSearch, resp.StatusCode())
	}
	if !strings.Contains(resp.Header().Get("Content-Type"), "json") {
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrSearch, resp.Header().Get("Content-Type"))
	}
	if out.Data == nil {
		out.Data = []Suggestion{}
	}
	return out.Data, nil
}

// SearchOrEmpty is Search with failures logged and reported as no hits.
func (c *Client) SearchOrEmpty(ctx context.Context, name string) []Suggestion {
	hits, err := c.Search(ctx, name)
	if err != nil {
		c.logger.Warn("supplier search failed", "query", name, "err", err)
		return []Suggestion{}
	}
	return hits
}

// FilterByCity keeps suggestions whose location contains city,
// case-insensitively. The national pseudo-city keeps everything.
func FilterByCity(hits []Suggestion, city string) []Suggestion {
	if models.IsNationalCity(city) {
		return hits
	}
	want := strings.ToLower(strings.TrimSpace(city))
	out := make([]Suggestion, 0, len(hits))
	for _, h := range hits {
		if strings.Contains(strings.ToLower(h.Location()), want) {
			out = append(out, h)
		}
	}
	return out
}
