// Package training records accepted price estimates as labelled examples
// for retraining the local model offline.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frjar/frjarai/internal/store"
	"github.com/frjar/frjarai/pkg/models"
)

// Recorder appends examples and persists the full set after each record.
// The set grows without bound; rotation is left to operators.
type Recorder struct {
	store  store.TrainingStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	examples []models.TrainingExample
}

// Option configures the recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder loads the existing set. A corrupt set is logged and
// replaced by an empty one.
func NewRecorder(ctx context.Context, s store.TrainingStore, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	examples, err := s.Load(ctx)
	switch {
	case errors.Is(err, store.ErrCorrupt):
		r.logger.Warn("training: stored set unreadable, starting empty", "err", err)
		examples = nil
	case err != nil:
		return nil, fmt.Errorf("training: load: %w", err)
	}
	r.examples = append([]models.TrainingExample{}, examples...)
	return r, nil
}

// Record appends one example built from stats and the accepted price,
// then rewrites the persisted set. Duplicates are kept.
func (r *Recorder) Record(ctx context.Context, stats models.ProductStats, price float64, city string, source models.ModelSource) error {
	ex := models.TrainingExample{
		Name:        stats.Name,
		City:        city,
		MinPrice:    stats.MinPrice,
		MaxPrice:    stats.MaxPrice,
		Average:     stats.Average,
		Median:      stats.EffectiveMedian(),
		Unit:        stats.Unit,
		AIPrice:     price,
		ModelSource: source,
		RecordedAt:  r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.examples = append(r.examples, ex)
	if err := r.store.Save(ctx, r.examples); err != nil {
		r.logger.Error("training: persist failed", "product", stats.Name, "err", err)
		return fmt.Errorf("training: persist: %w", err)
	}
	return nil
}

// Examples returns a copy of the recorded set.
func (r *Recorder) Examples() []models.TrainingExample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TrainingExample(nil), r.examples...)
}

// Len returns the number of recorded examples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.examples)
}
