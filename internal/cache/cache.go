// Package cache implements the two-tier price estimate cache: a TTL
// memory tier in front of a per-day persisted history.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/frjar/frjarai/internal/infra"
	"github.com/frjar/frjarai/internal/store"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

// DefaultTTL is how long a memory entry serves before it must be refreshed.
const DefaultTTL = 6 * time.Hour

// Key builds the cache key for a product in a city: the normalized name,
// then "#unit" when the unit is known, then "|city" for any city other
// than the national average. Same-named products sold in different units
// get separate entries.
func Key(name, unit, city string) string {
	k := utils.NormalizeName(name)
	if u := utils.NormalizeName(unit); u != "" {
		k += "#" + u
	}
	if models.IsNationalCity(city) {
		return k
	}
	return k + "|" + utils.NormalizeName(city)
}

// Manager owns both cache tiers. It is safe for concurrent use.
type Manager struct {
	mem    *infra.Cache[models.PriceEstimate]
	hist   store.HistoryStore
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex // guards history
	history store.History

	flight singleflight.Group
}

// Option configures the manager.
type Option func(*Manager)

// WithTTL sets the memory tier TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.mem = infra.NewCache[models.PriceEstimate](ttl)
		}
	}
}

// WithLocation sets the zone whose calendar day keys the history.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithClock replaces the time source for both tiers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager loads the persisted history and returns a ready manager.
// A corrupt history is logged and replaced by an empty one; any other
// load failure is returned.
func NewManager(ctx context.Context, hist store.HistoryStore, opts ...Option) (*Manager, error) {
	m := &Manager{
		mem:    infra.NewCache[models.PriceEstimate](DefaultTTL),
		hist:   hist,
		loc:    utils.AST,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mem.SetClock(m.now)

	h, err := hist.Load(ctx)
	switch {
	case errors.Is(err, store.ErrCorrupt):
		m.logger.Warn("cache: history unreadable, starting empty", "err", err)
	case err != nil:
		return nil, fmt.Errorf("cache: load history: %w", err)
	}
	if h == nil {
		h = make(store.History)
	}
	m.history = h
	return m, nil
}

// Today returns the current day key in the manager's zone.
func (m *Manager) Today() string {
	return utils.DayKey(m.now(), m.loc)
}

// Get looks up key in memory, then in today's history. A history hit is
// promoted into memory.
func (m *Manager) Get(key string) (models.PriceEstimate, bool) {
	if est, ok := m.mem.Get(key); ok {
		return est, true
	}

	m.mu.Lock()
	est, ok := m.history.Lookup(key, m.Today())
	m.mu.Unlock()
	if !ok {
		return models.PriceEstimate{}, false
	}
	m.mem.Set(key, est)
	return est, true
}

// Put stores est in memory and under today's history entry, then
// rewrites the persisted history. A persistence failure is logged and
// returned; the memory tier still serves the value.
func (m *Manager) Put(ctx context.Context, key string, est models.PriceEstimate) error {
	m.mem.Set(key, est)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Put(key, m.Today(), est)
	if err := m.hist.Save(ctx, m.history); err != nil {
		m.logger.Error("cache: persist history failed", "key", key, "err", err)
		return fmt.Errorf("cache: persist: %w", err)
	}
	return nil
}

// Do returns the cached estimate for key or computes it with fn. Concurrent
// misses for the same key share one fn call. fn reports whether its
// result may be cached.
func (m *Manager) Do(ctx context.Context, key string, fn func(ctx context.Context) (models.PriceEstimate, bool)) (models.PriceEstimate, bool) {
	if est, ok := m.Get(key); ok {
		return est, true
	}

	flightKey := key + "@" + m.Today()
	v, _, _ := m.flight.Do(flightKey, func() (any, error) {
		// A flight that finished just before this one started may have filled the cache.
		if est, ok := m.Get(key); ok {
			return est, nil
		}
		est, cacheable := fn(ctx)
		if cacheable {
			_ = m.Put(ctx, key, est)
		}
		return est, nil
	})
	return v.(models.PriceEstimate), false
}

// Invalidate drops key from the memory tier only.
func (m *Manager) Invalidate(key string) { m.mem.Invalidate(key) }

// Len returns the number of memory entries, expired ones included.
func (m *Manager) Len() int { return m.mem.Len() }

// HistoryKeys returns how many keys the history holds.
func (m *Manager) HistoryKeys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// StartJanitor evicts expired memory entries every interval until ctx ends.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.mem.Cleanup(); n > 0 {
					m.logger.Debug("cache: evicted expired entries", "count", n)
				}
			}
		}
	}()
}
