package utils

import (
	"math"
	"testing"
)

func TestFormatSAR(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "0.00 SAR"},
		{13.45, "13.45 SAR"},
		{999.999, "1,000.00 SAR"},
		{2550, "2,550.00 SAR"},
		{1234567.891, "1,234,567.89 SAR"},
		{-12345.5, "-12,345.50 SAR"},
		{math.NaN(), "n/a SAR"},
	}
	for _, tt := range tests {
		if got := FormatSAR(tt.amount); got != tt.want {
			t.Errorf("FormatSAR(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
