package models

import (
	"math"
	"testing"
)

func TestEffectiveMedian(t *testing.T) {
	if got := (ProductStats{Average: 18}).EffectiveMedian(); got != 18 {
		t.Errorf("unset median: got %v, want 18", got)
	}
	if got := (ProductStats{Average: 18, Median: 17}).EffectiveMedian(); got != 17 {
		t.Errorf("set median: got %v, want 17", got)
	}
}

func TestIsNationalCity(t *testing.T) {
	for _, c := range []string{"", "  ", NationalAverage, "national average"} {
		if !IsNationalCity(c) {
			t.Errorf("IsNationalCity(%q) = false", c)
		}
	}
	if IsNationalCity("Riyadh") {
		t.Error("Riyadh is not national")
	}
}

func TestApplyCityMargin(t *testing.T) {
	s := ProductStats{
		Name: "Portland Cement", MinPrice: 10, MaxPrice: 20, Average: 15,
		CityMargins: map[string]CityMargin{
			"Jeddah": {MinMarginPercent: 10, MaxMarginPercent: -5},
		},
	}

	tests := []struct {
		city     string
		min, max float64
	}{
		{"Jeddah", 11, 19},
		{"jeddah ", 11, 19},
		{"Riyadh", 10, 20},
		{NationalAverage, 10, 20},
		{"", 10, 20},
	}
	for _, tt := range tests {
		got := s.ApplyCityMargin(tt.city)
		if math.Abs(got.MinPrice-tt.min) > 1e-9 || math.Abs(got.MaxPrice-tt.max) > 1e-9 {
			t.Errorf("%q: got [%v, %v], want [%v, %v]", tt.city, got.MinPrice, got.MaxPrice, tt.min, tt.max)
		}
		if got.Average != 15 {
			t.Errorf("%q: average changed to %v", tt.city, got.Average)
		}
	}
	if s.MinPrice != 10 {
		t.Fatal("receiver must not be modified")
	}
}

func TestSourceScore(t *testing.T) {
	tests := map[ModelSource]float64{
		SourceAI:         1.0,
		SourceLocalModel: 0.75,
		SourceFallback:   0.5,
		"":               0.5,
	}
	for src, want := range tests {
		if got := src.Score(); got != want {
			t.Errorf("%q.Score() = %v, want %v", src, got, want)
		}
	}
}

func TestVerifyItemQuery(t *testing.T) {
	if q := (VerifyItem{Name: "Rebar 12mm"}).Query(); q != "Rebar 12mm" {
		t.Errorf("Query() = %q", q)
	}
	if q := (VerifyItem{Name: "Rebar 12mm", Category: "Steel"}).Query(); q != "Rebar 12mm - Steel" {
		t.Errorf("Query() = %q", q)
	}
}

func TestProductStats(t *testing.T) {
	p := Product{Name: "Gypsum Board", Unit: "Sheet", MinPrice: 20, MaxPrice: 30, Average: 25, Median: 24,
		Suppliers: []Supplier{{Name: "A"}}}
	s := p.Stats()
	if s.Name != p.Name || s.Unit != "Sheet" || s.Median != 24 || s.MaxPrice != 30 {
		t.Fatalf("Stats() = %+v", s)
	}
}
