package pricing

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/frjar/frjarai/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// AdjustTodayPrice
// ════════════════════════════════════════════════════════════════════

func checkBounded(t *testing.T, got, minP, maxP, avg float64) {
	t.Helper()
	if !(got > minP && got < maxP) {
		t.Fatalf("adjust(%v,%v,%v) = %v, outside (min,max)", minP, maxP, avg, got)
	}
	if math.Abs(got-avg) < AdjustEpsilon {
		t.Fatalf("adjust(%v,%v,%v) = %v, within ε of avg", minP, maxP, avg, got)
	}
}

// checkInside asserts the [min+ε, max−ε] bound and the avg gap for a
// possibly rounded price. Rounded prices may sit a float ulp short of ε
// from avg.
func checkInside(t *testing.T, label string, got, minP, maxP, avg float64) {
	t.Helper()
	if got < minP+AdjustEpsilon || got > maxP-AdjustEpsilon {
		t.Fatalf("%s(%v,%v,%v) = %v, outside [min+ε, max−ε]", label, minP, maxP, avg, got)
	}
	if math.Abs(got-avg) < AdjustEpsilon-1e-9 {
		t.Fatalf("%s(%v,%v,%v) = %v, within ε of avg", label, minP, maxP, avg, got)
	}
}

func TestAdjustTable(t *testing.T) {
	tests := []struct {
		name               string
		raw, min, max, avg float64
		want               float64
	}{
		{"inside untouched", 90.5, 88.11, 94.88, 89, 90.5},
		{"clamped to upper", 120, 10, 25, 18, 24.99},
		{"clamped to lower", 1, 10, 25, 18, 10.01},
		{"at avg nudges up", 18, 10, 25, 18, 18.01},
		{"just below avg nudges down", 17.999, 10, 25, 18, 17.99},
		{"just above avg nudges up", 18.004, 10, 25, 18, 18.01},
	}
	for _, tt := range tests {
		got := AdjustTodayPrice(tt.raw, tt.min, tt.max, tt.avg)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
		checkBounded(t, got, tt.min, tt.max, tt.avg)
	}
}

func TestAdjustAvgAtUpperEdgeNudgesDown(t *testing.T) {
	// avg+ε would leave the interval, so the nudge goes down.
	got := AdjustTodayPrice(25, 10, 25, 24.995)
	checkBounded(t, got, 10, 25, 24.995)
	if got > 24.995 {
		t.Fatalf("expected downward nudge, got %v", got)
	}
}

func TestAdjustSweep(t *testing.T) {
	stats := [][3]float64{
		{10, 25, 18}, {88.11, 94.88, 89}, {0.5, 0.9, 0.7}, {1000, 1000.5, 1000.2}, {2400, 2900, 2899.9},
	}
	for _, s := range stats {
		minP, maxP, avg := s[0], s[1], s[2]
		for raw := minP - 5; raw <= maxP+5; raw += (maxP - minP) / 97 {
			got := AdjustTodayPrice(raw, minP, maxP, avg)
			checkBounded(t, got, minP, maxP, avg)
			checkInside(t, "adjust", got, minP, maxP, avg)

			st := models.ProductStats{MinPrice: minP, MaxPrice: maxP, Average: avg}
			checkInside(t, "bound", bound(raw, st), minP, maxP, avg)
		}
	}
}

func TestBoundRandomSweep(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for range 50000 {
		minP := 1 + rng.Float64()*1000
		maxP := minP + 0.05 + rng.Float64()*100
		avg := minP + rng.Float64()*(maxP-minP)
		raw := minP - 10 + rng.Float64()*(maxP-minP+20)

		st := models.ProductStats{MinPrice: minP, MaxPrice: maxP, Average: avg}
		checkInside(t, "bound", bound(raw, st), minP, maxP, avg)
	}
}

func TestBoundClampedLowerEdgeStaysAboveEpsilon(t *testing.T) {
	// Clamping gives 42.47374970712657; rounding to 42.47 would fall below min+ε.
	st := models.ProductStats{MinPrice: 42.46374970712657, MaxPrice: 60, Average: 50}
	got := bound(40.977, st)
	checkInside(t, "bound", got, st.MinPrice, st.MaxPrice, st.Average)
	if got == 42.47 {
		t.Fatalf("rounded below min+ε: %v", got)
	}
}

func TestAdjustNonFiniteRaw(t *testing.T) {
	got := AdjustTodayPrice(math.NaN(), 10, 25, 18)
	checkBounded(t, got, 10, 25, 18)

	// No average: the midpoint stands in.
	got = AdjustTodayPrice(math.Inf(1), 10, 20, 0)
	if got != 15 {
		t.Fatalf("midpoint substitution: got %v", got)
	}
}

func TestAdjustDegenerateBounds(t *testing.T) {
	tests := [][4]float64{
		{5, 10, 10, 10},
		{5, 30, 10, 20},     // min > max
		{5, 10, 10.015, 10}, // narrower than 2ε
		{math.NaN(), math.NaN(), math.Inf(1), math.NaN()},
		{7, 0, 0, 0},
	}
	for _, tt := range tests {
		got := AdjustTodayPrice(tt[0], tt[1], tt[2], tt[3])
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("adjust%v = %v, want finite", tt, got)
		}
	}

	got := AdjustTodayPrice(50, 30, 10, 20)
	if got < 10 || got > 30 {
		t.Fatalf("inverted bounds must still clamp into [10,30], got %v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// RoundPrice / Round2
// ════════════════════════════════════════════════════════════════════

func TestRound2(t *testing.T) {
	tests := map[float64]float64{
		1.005:    1.01,
		2.675:    2.68,
		18.0049:  18,
		-3.14159: -3.14,
	}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestRoundPriceKeepsInvariants(t *testing.T) {
	if got := RoundPrice(18.0149, 10, 25, 18); got != 18.01 {
		t.Fatalf("plain rounding: got %v", got)
	}
	// Rounding would pull the price within ε of avg, so it is kept raw.
	if got := RoundPrice(18.0149, 10, 25, 18.0045); got != 18.0149 {
		t.Fatalf("rounding must not break the avg gap, got %v", got)
	}
	// Rounding would reach the bound itself.
	if got := RoundPrice(10.004, 10, 25, 18); got != 10.004 {
		t.Fatalf("rounding must not land on min, got %v", got)
	}
	// Rounding would leave [min+ε, max−ε] on either side.
	if got := RoundPrice(42.4737, 42.4637, 60, 50); got != 42.4737 {
		t.Fatalf("rounding must not drop below min+ε, got %v", got)
	}
	if got := RoundPrice(59.9863, 40, 59.9963, 50); got != 59.9863 {
		t.Fatalf("rounding must not rise above max−ε, got %v", got)
	}
	// Degenerate bounds still keep rounding strictly inside (min, max).
	if got := RoundPrice(10.006, 10, 10.015, 10); got != 10.01 {
		t.Fatalf("degenerate bounds: got %v", got)
	}
}
