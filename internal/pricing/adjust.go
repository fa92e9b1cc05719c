package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// AdjustEpsilon is the minimum distance, in SAR, a today price keeps from
// its bounds and from the average.
const AdjustEpsilon = 0.01

// AdjustTodayPrice bounds a raw candidate price. For min < max the result
// lies in [min+ε, max−ε] and differs from avg by at least ε whenever that
// interval allows it. Degenerate bounds (min+ε ≥ max−ε, including min > max)
// fall back to the plain [min, max] interval; the result is then only
// guaranteed to be finite.
func AdjustTodayPrice(raw, minP, maxP, avg float64) float64 {
	minP, maxP, avg = finite(minP), finite(maxP), finite(avg)
	if !isFinite(raw) {
		raw = avg
		if raw == 0 {
			raw = (minP + maxP) / 2
		}
	}

	lo, hi := minP+AdjustEpsilon, maxP-AdjustEpsilon
	if lo >= hi {
		lo, hi = math.Min(minP, maxP), math.Max(minP, maxP)
	}

	price := clamp(raw, lo, hi)
	if math.Abs(price-avg) >= AdjustEpsilon {
		return price
	}
	return nudge(price, raw, avg, lo, hi)
}

// RoundPrice rounds p to 2 decimals when the rounded value still honours
// the adjuster's bounds, [min+ε, max−ε] or (min, max) when that interval is
// degenerate, and keeps its distance from avg; otherwise p is returned
// unchanged.
func RoundPrice(p, minP, maxP, avg float64) float64 {
	rounded := Round2(p)
	if rounded == p {
		return p
	}
	lo, hi := minP+AdjustEpsilon, maxP-AdjustEpsilon
	switch {
	case lo < hi:
		if rounded < lo || rounded > hi {
			return p
		}
	case minP < maxP:
		if rounded <= minP || rounded >= maxP {
			return p
		}
	}
	if math.Abs(p-avg) >= AdjustEpsilon && math.Abs(rounded-avg) < AdjustEpsilon-1e-9 {
		return p
	}
	return rounded
}

// Round2 rounds to two decimals using decimal arithmetic.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ── Internal Helpers ──

// nudge moves price ε away from avg, preferring the side raw was on,
// without leaving [lo, hi].
func nudge(price, raw, avg, lo, hi float64) float64 {
	up, down := avg+AdjustEpsilon, avg-AdjustEpsilon
	// Float rounding can leave avg±ε a hair closer than ε.
	if up-avg < AdjustEpsilon {
		up = math.Nextafter(up, math.Inf(1))
	}
	if avg-down < AdjustEpsilon {
		down = math.Nextafter(down, math.Inf(-1))
	}
	canUp, canDown := up <= hi, down >= lo

	switch {
	case raw < avg && canDown:
		return down
	case canUp:
		return up
	case canDown:
		return down
	}
	// Interval narrower than 2ε around avg: take the farther bound.
	if math.Abs(hi-avg) >= math.Abs(avg-lo) {
		return hi
	}
	return lo
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
