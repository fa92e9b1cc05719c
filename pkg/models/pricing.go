// Package models defines the core data structures used throughout FRJAR.ai.
package models

import (
	"strings"
	"time"
)

// NationalAverage is the pseudo-city meaning "no city margin applied".
const NationalAverage = "National Average"

// Cities lists the cities offered for city-adjusted estimates.
var Cities = []string{NationalAverage, "Riyadh", "Jeddah", "Makkah", "Dammam", "Medina"}

// ModelSource tags which estimation tier produced a price.
type ModelSource string

const (
	SourceAI         ModelSource = "AI"
	SourceLocalModel ModelSource = "LocalModel"
	SourceFallback   ModelSource = "Fallback"
)

// Score returns the confidence weight attached to a source.
func (s ModelSource) Score() float64 {
	switch s {
	case SourceAI:
		return 1.0
	case SourceLocalModel:
		return 0.75
	default:
		return 0.5
	}
}

// CityMargin holds the percentage adjustment applied to national bounds for a city.
type CityMargin struct {
	MinMarginPercent float64 `json:"min_margin_percent"`
	MaxMarginPercent float64 `json:"max_margin_percent"`
}

// ProductStats is the historical price summary of a single product.
type ProductStats struct {
	Name        string                `json:"name"`
	Unit        string                `json:"unit"`
	MinPrice    float64               `json:"min_price"`
	MaxPrice    float64               `json:"max_price"`
	Average     float64               `json:"average"`
	Median      float64               `json:"median,omitempty"` // 0 means "same as average"
	CityMargins map[string]CityMargin `json:"city_margins,omitempty"`
}

// EffectiveMedian returns the median, defaulting to the average when unset.
func (s ProductStats) EffectiveMedian() float64 {
	if s.Median == 0 {
		return s.Average
	}
	return s.Median
}

// IsNationalCity reports whether city carries no margin.
func IsNationalCity(city string) bool {
	c := strings.TrimSpace(city)
	return c == "" || strings.EqualFold(c, NationalAverage)
}

// ApplyCityMargin returns a copy of s whose min/max are scaled by the
// city's margins. Unknown or national cities leave the bounds untouched.
func (s ProductStats) ApplyCityMargin(city string) ProductStats {
	out := s
	if IsNationalCity(city) {
		return out
	}
	m, ok := s.CityMargins[city]
	if !ok {
		for name, margin := range s.CityMargins {
			if strings.EqualFold(name, strings.TrimSpace(city)) {
				m, ok = margin, true
				break
			}
		}
	}
	if !ok {
		return out
	}
	out.MinPrice = s.MinPrice * (1 + m.MinMarginPercent/100)
	out.MaxPrice = s.MaxPrice * (1 + m.MaxMarginPercent/100)
	return out
}

// SupplierCounts summarises how many suppliers of each tier list a product.
type SupplierCounts struct {
	Wholesale   int `json:"wholesale"`
	SecondLayer int `json:"second_layer"`
	Retail      int `json:"retail"`
}

// PriceEstimate is the result of a today-price estimation.
// It is immutable once produced and is cached by value.
type PriceEstimate struct {
	Product           string         `json:"product"`
	Unit              string         `json:"unit,omitempty"`
	City              string         `json:"city"`
	Date              string         `json:"date"` // YYYY-MM-DD, Asia/Riyadh
	TodayPrice        float64        `json:"today_price"`
	MinPrice          float64        `json:"min_price"`
	MaxPrice          float64        `json:"max_price"`
	AveragePrice      float64        `json:"average_price"`
	Volatility        float64        `json:"volatility"`
	SymmetryIndex     float64        `json:"symmetry_index"`
	MonthlyVolatility float64        `json:"monthly_volatility"`
	SourceScore       float64        `json:"source_score"`
	SupplierCounts    SupplierCounts `json:"supplier_counts"`
	ModelSource       ModelSource    `json:"model_source"`
	Provider          string         `json:"provider,omitempty"` // set for AI results
}

// TrainingExample is one labelled row for retraining the local model.
type TrainingExample struct {
	Name        string      `json:"name"`
	City        string      `json:"city"`
	MinPrice    float64     `json:"min_price"`
	MaxPrice    float64     `json:"max_price"`
	Average     float64     `json:"average"`
	Median      float64     `json:"median"`
	Unit        string      `json:"unit"`
	AIPrice     float64     `json:"ai_price"`
	ModelSource ModelSource `json:"model_source,omitempty"`
	RecordedAt  time.Time   `json:"recorded_at"`
}
