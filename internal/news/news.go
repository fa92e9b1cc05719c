// Package news fetches market headlines from RSS feeds to give the
// pricing prompt some current context.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/frjar/frjarai/internal/infra"
)

// Source is one RSS feed.
type Source struct {
	Name string
	URL  string
}

// Headline is one feed item.
type Headline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// DefaultKeywords select construction-market headlines.
var DefaultKeywords = []string{
	"cement", "steel", "rebar", "construction", "building material",
	"aggregate", "concrete", "housing", "real estate", "infrastructure",
}

const cacheTTL = 30 * time.Minute

// Fetcher reads a fixed set of feeds concurrently. Results are cached
// for 30 minutes.
type Fetcher struct {
	sources  []Source
	keywords []string
	cache    *infra.Cache[[]Headline]
	limiter  *infra.RateLimiter
	parser   *gofeed.Parser
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures the fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each feed request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithKeywords replaces the relevance keywords used by Titles.
func WithKeywords(kw []string) Option {
	return func(f *Fetcher) { f.keywords = kw }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher over feed URLs.
func NewFetcher(urls []string, opts ...Option) *Fetcher {
	sources := make([]Source, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			sources = append(sources, Source{Name: hostOf(u), URL: u})
		}
	}
	f := &Fetcher{
		sources:  sources,
		keywords: DefaultKeywords,
		cache:    infra.NewCache[[]Headline](cacheTTL),
		limiter:  infra.NewRateLimiter(4, time.Second),
		parser:   gofeed.NewParser(),
		timeout:  10 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Headlines returns up to limit headlines across all feeds, newest first,
// deduplicated by title. Failed feeds are logged and skipped; an error is
// returned only when every feed fails.
func (f *Fetcher) Headlines(ctx context.Context, limit int) ([]Headline, error) {
	all, err := f.all(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Titles returns up to limit headline titles, preferring those that
// mention a relevance keyword.
func (f *Fetcher) Titles(ctx context.Context, limit int) ([]string, error) {
	all, err := f.all(ctx)
	if err != nil {
		return nil, err
	}

	picked := make([]string, 0, limit)
	var rest []string
	for _, h := range all {
		if matchesAny(h.Title+" "+h.Summary, f.keywords) {
			picked = append(picked, h.Title)
		} else {
			rest = append(rest, h.Title)
		}
	}
	picked = append(picked, rest...)
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}
	return picked, nil
}

// ── Internal Helpers ──

func (f *Fetcher) all(ctx context.Context) ([]Headline, error) {
	const key = "headlines"
	if cached, ok := f.cache.Get(key); ok {
		return cached, nil
	}
	if len(f.sources) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		merged []Headline
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range f.sources {
		g.Go(func() error {
			items, err := f.fetch(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				f.logger.Warn("news: feed failed, skipping", "source", src.Name, "err", err)
				return nil
			}
			merged = append(merged, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(f.sources) {
		return nil, fmt.Errorf("news: all %d feeds failed", failed)
	}

	merged = dedupe(merged)
	slices.SortStableFunc(merged, func(a, b Headline) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	f.cache.Set(key, merged)
	return merged, nil
}

func (f *Fetcher) fetch(ctx context.Context, src Source) ([]Headline, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}
	name := src.Name
	if feed.Title != "" {
		name = feed.Title
	}

	out := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(cleanHTML(item.Title))
		if title == "" {
			continue
		}
		h := Headline{
			Title:   title,
			URL:     item.Link,
			Source:  name,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = *item.PublishedParsed
		}
		out = append(out, h)
	}
	return out, nil
}

func dedupe(in []Headline) []Headline {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, h := range in {
		k := strings.ToLower(h.Title)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	return out
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hostOf(u string) string {
	s := u
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
