// Package store persists the daily price history and the training set.
//
// Two backends are provided: JSON files rewritten atomically on every
// save, and a gorm-backed SQL store for shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/frjar/frjarai/pkg/models"
)

// ErrCorrupt marks a persisted file that exists but cannot be decoded.
// Loaders return an empty value alongside it so callers can continue.
var ErrCorrupt = errors.New("store: corrupt data")

// History maps cache key → day (YYYY-MM-DD) → estimate.
type History map[string]map[string]models.PriceEstimate

// Clone returns a deep copy of h.
func (h History) Clone() History {
	out := make(History, len(h))
	for key, days := range h {
		d := make(map[string]models.PriceEstimate, len(days))
		for day, est := range days {
			d[day] = est
		}
		out[key] = d
	}
	return out
}

// Put records est under [key][day].
func (h History) Put(key, day string, est models.PriceEstimate) {
	days, ok := h[key]
	if !ok {
		days = make(map[string]models.PriceEstimate)
		h[key] = days
	}
	days[day] = est
}

// Lookup returns the estimate stored under [key][day].
func (h History) Lookup(key, day string) (models.PriceEstimate, bool) {
	est, ok := h[key][day]
	return est, ok
}

// HistoryStore loads and saves the full daily history.
type HistoryStore interface {
	Load(ctx context.Context) (History, error)
	Save(ctx context.Context, h History) error
}

// TrainingStore loads and saves the full training set.
type TrainingStore interface {
	Load(ctx context.Context) ([]models.TrainingExample, error)
	Save(ctx context.Context, examples []models.TrainingExample) error
}
