// Package predictor loads the local fallback price model.
package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/frjar/frjarai/internal/pricing"
	"github.com/frjar/frjarai/pkg/models"
)

var (
	// ErrNoModel means no artifact exists; callers fall through to the static fallback.
	ErrNoModel = errors.New("predictor: no model artifact")
	// ErrDimension means the feature vector length does not match the model.
	ErrDimension = errors.New("predictor: feature dimension mismatch")
)

// DefaultFluctuation is the ± fraction of random jitter applied by Blend.
const DefaultFluctuation = 0.02

// Predictor maps a feature vector to a raw price.
type Predictor interface {
	Predict(features []float64) (float64, error)
	Dim() int
}

// LinearModel is a linear regression over the feature vector.
type LinearModel struct {
	NFeatures    int       `json:"n_features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	TrainedAt    time.Time `json:"trained_at,omitzero"`
}

// Load reads a LinearModel artifact from path.
func Load(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("predictor: read %s: %w", path, err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("predictor: decode %s: %w", path, err)
	}
	if m.NFeatures <= 0 || len(m.Coefficients) != m.NFeatures {
		return nil, fmt.Errorf("predictor: %s declares %d features but has %d coefficients",
			path, m.NFeatures, len(m.Coefficients))
	}
	return &m, nil
}

// Dim returns the expected feature vector length.
func (m *LinearModel) Dim() int { return m.NFeatures }

// Predict returns intercept + Σ coefficients·features.
func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != m.NFeatures {
		return 0, fmt.Errorf("%w: got %d, model expects %d", ErrDimension, len(features), m.NFeatures)
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * features[i]
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("predictor: non-finite prediction")
	}
	return y, nil
}

// Blend mixes a raw model prediction with a weighted statistical anchor,
// applies ±fluctuation jitter, and bounds the result with the adjuster.
//
//	(pred + 0.25·min + 0.25·median + 0.40·avg + 0.10·max) / 2 × (1 + U(−f, f))
func Blend(pred float64, stats models.ProductStats, fluctuation float64, rng *rand.Rand) float64 {
	median := stats.EffectiveMedian()
	anchor := 0.25*stats.MinPrice + 0.25*median + 0.40*stats.Average + 0.10*stats.MaxPrice
	blended := (pred + anchor) / 2

	if fluctuation > 0 {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			u = rand.Float64()
		}
		blended *= 1 + (2*u-1)*fluctuation
	}
	return pricing.AdjustTodayPrice(blended, stats.MinPrice, stats.MaxPrice, stats.Average)
}

// Local adapts a Predictor into the estimator's local-model hook.
type Local struct {
	model       Predictor
	fluctuation float64

	mu  sync.Mutex // *rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewLocal wraps model. A nil rng uses the global source.
func NewLocal(model Predictor, fluctuation float64, rng *rand.Rand) *Local {
	return &Local{model: model, fluctuation: fluctuation, rng: rng}
}

// Estimate extracts features from stats, predicts, and blends.
func (l *Local) Estimate(stats models.ProductStats) (float64, error) {
	pred, err := l.model.Predict(pricing.ExtractFeatures(stats))
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Blend(pred, stats, l.fluctuation, l.rng), nil
}
