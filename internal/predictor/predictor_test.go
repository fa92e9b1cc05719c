package predictor

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frjar/frjarai/internal/infra"
	"github.com/frjar/frjarai/internal/llm"
	"github.com/frjar/frjarai/internal/pricing"
	"github.com/frjar/frjarai/pkg/models"
)

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "price_model.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// averageOnlyModel predicts the average price (feature index 2).
func averageOnlyModel() string {
	coef := make([]string, pricing.FeatureLength)
	for i := range coef {
		coef[i] = "0"
	}
	coef[2] = "1"
	return `{"n_features":31,"intercept":0,"coefficients":[` + strings.Join(coef, ",") + `],"trained_at":"2026-10-01T00:00:00Z"}`
}

// ════════════════════════════════════════════════════════════════════
// Load
// ════════════════════════════════════════════════════════════════════

func TestLoadMissing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if m != nil || !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected nil, ErrNoModel; got %v, %v", m, err)
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeArtifact(t, "not json"))
	if err == nil || errors.Is(err, ErrNoModel) {
		t.Fatalf("malformed artifact should be a distinct error, got %v", err)
	}
}

func TestLoadCoefficientMismatch(t *testing.T) {
	if _, err := Load(writeArtifact(t, `{"n_features":31,"intercept":1,"coefficients":[1,2,3]}`)); err == nil {
		t.Fatal("coefficient count must match n_features")
	}
}

func TestLoadAndPredict(t *testing.T) {
	m, err := Load(writeArtifact(t, averageOnlyModel()))
	if err != nil {
		t.Fatal(err)
	}
	if m.Dim() != 31 || m.TrainedAt.IsZero() {
		t.Fatalf("unexpected model: dim=%d trained=%v", m.Dim(), m.TrainedAt)
	}

	f := pricing.ExtractFeatures(models.ProductStats{MinPrice: 10, MaxPrice: 25, Average: 18, Median: 18})
	got, err := m.Predict(f)
	if err != nil || got != 18 {
		t.Fatalf("Predict = %v, %v; want 18", got, err)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	m := &LinearModel{NFeatures: 9, Coefficients: make([]float64, 9)}
	_, err := m.Predict(make([]float64, pricing.FeatureLength))
	if !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Blend
// ════════════════════════════════════════════════════════════════════

func TestBlendWithoutJitter(t *testing.T) {
	stats := models.ProductStats{MinPrice: 10, MaxPrice: 30, Average: 20, Median: 16}
	// anchor = 2.5 + 4 + 8 + 3 = 17.5 ; (22.5 + 17.5)/2 = 20 → equals avg, nudged away.
	got := Blend(22.5, stats, 0, nil)
	if math.Abs(got-20) < pricing.AdjustEpsilon-1e-9 || got <= 10 || got >= 30 {
		t.Fatalf("Blend = %v, must be in (10,30) and away from 20", got)
	}
	if got < 20 {
		t.Fatalf("a value on the average should nudge upward, got %v", got)
	}

	got = Blend(12.5, stats, 0, nil) // (12.5+17.5)/2 = 15
	if math.Abs(got-15) > 1e-9 {
		t.Fatalf("Blend = %v, want 15", got)
	}
}

func TestBlendJitterBounded(t *testing.T) {
	stats := models.ProductStats{MinPrice: 100, MaxPrice: 200, Average: 140, Median: 140}
	rng := rand.New(rand.NewPCG(1, 2))
	// anchor = 25+35+56+20 = 136; (144+136)/2 = 140 → jitter up to ±2.8
	for i := 0; i < 500; i++ {
		got := Blend(144, stats, DefaultFluctuation, rng)
		if got < 140*0.98-1e-9 || got > 140*1.02+1e-9 {
			t.Fatalf("jitter out of ±2%%: %v", got)
		}
		if math.Abs(got-140) < pricing.AdjustEpsilon-1e-9 {
			t.Fatalf("result too close to average: %v", got)
		}
	}
}

func TestBlendDeterministicWithSeed(t *testing.T) {
	stats := models.ProductStats{MinPrice: 10, MaxPrice: 25, Average: 18, Median: 18}
	a := Blend(19, stats, DefaultFluctuation, rand.New(rand.NewPCG(7, 7)))
	b := Blend(19, stats, DefaultFluctuation, rand.New(rand.NewPCG(7, 7)))
	if a != b {
		t.Fatalf("same seed gave %v and %v", a, b)
	}
}

// ════════════════════════════════════════════════════════════════════
// Local
// ════════════════════════════════════════════════════════════════════

func TestLocalEstimate(t *testing.T) {
	m, err := Load(writeArtifact(t, averageOnlyModel()))
	if err != nil {
		t.Fatal(err)
	}
	stats := models.ProductStats{MinPrice: 10, MaxPrice: 25, Average: 18, Median: 18}
	got, err := NewLocal(m, 0, nil).Estimate(stats)
	if err != nil {
		t.Fatal(err)
	}
	// anchor = 2.5+4.5+7.2+2.5 = 16.7 ; (18+16.7)/2 = 17.35
	if math.Abs(got-17.35) > 1e-9 {
		t.Fatalf("Estimate = %v, want 17.35", got)
	}
}

func TestLocalRejectsWrongDimension(t *testing.T) {
	m := &LinearModel{NFeatures: 12, Coefficients: make([]float64, 12)}
	if _, err := NewLocal(m, 0, nil).Estimate(models.ProductStats{MinPrice: 1, MaxPrice: 2, Average: 1.5}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

type downChain struct{}

func (downChain) Complete(context.Context, string) (llm.Reply, error) {
	return llm.Reply{}, llm.ErrNoReply
}

func TestEstimatorFallsBackOnWrongDimensionModel(t *testing.T) {
	m := &LinearModel{NFeatures: 12, Coefficients: make([]float64, 12)}
	est := pricing.NewEstimator(downChain{},
		pricing.WithLocalModel(NewLocal(m, 0, nil)),
		pricing.WithLogger(infra.DiscardLogger()))

	stats := models.ProductStats{Name: "Sand", Unit: "m3", MinPrice: 10, MaxPrice: 25, Average: 18, Median: 18}
	got := est.EstimateTodayPrice(context.Background(), stats, "")
	if got.ModelSource != models.SourceFallback {
		t.Fatalf("source = %s, want Fallback", got.ModelSource)
	}
	if got.TodayPrice <= 10 || got.TodayPrice >= 25 || got.TodayPrice == 18 {
		t.Fatalf("fallback price %v outside (10,25) or equal to average", got.TodayPrice)
	}
}
