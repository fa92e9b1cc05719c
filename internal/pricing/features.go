// Package pricing implements the today-price estimation pipeline:
// feature extraction, price bounding and the Estimator that ties the
// provider chain, local model and caches together.
package pricing

import (
	"math"

	"github.com/frjar/frjarai/pkg/models"
)

// FeatureLength is the fixed length of every feature vector. Trained
// model artifacts are built against exactly this many inputs.
const FeatureLength = 31

// FeatureEpsilon keeps the ratio features finite when a denominator is zero.
const FeatureEpsilon = 1e-5

// Feature indices for the derived values echoed into a PriceEstimate.
const (
	FeatureMin = iota
	FeatureMax
	FeatureAverage
	FeatureMedian
	FeatureRange
	FeatureVolatility
	FeatureSymmetry
	FeatureMid
)

// ExtractFeatures converts price statistics into the fixed-length feature
// vector. It never fails: non-finite inputs count as 0 and a zero median
// falls back to the average.
func ExtractFeatures(s models.ProductStats) []float64 {
	minP := finite(s.MinPrice)
	maxP := finite(s.MaxPrice)
	avg := finite(s.Average)
	median := finite(s.Median)
	if median == 0 {
		median = avg
	}

	priceRange := maxP - minP
	features := []float64{
		minP, maxP, avg, median,
		priceRange,
		priceRange / (avg + FeatureEpsilon),
		(avg - median) / (priceRange + FeatureEpsilon),
		(minP + maxP) / 2,
		avg / (minP + FeatureEpsilon),
		avg / (maxP + FeatureEpsilon),
		median / (minP + FeatureEpsilon),
		median / (maxP + FeatureEpsilon),
		safeLog1p(minP), safeLog1p(maxP),
		safeLog1p(avg), safeLog1p(median),
	}

	out := make([]float64, FeatureLength)
	for i := 0; i < len(features) && i < FeatureLength; i++ {
		out[i] = finite(features[i])
	}
	return out
}

// ── Internal Helpers ──

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func safeLog1p(v float64) float64 {
	if v <= -1 {
		return 0
	}
	return math.Log1p(v)
}
