package utils

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Cement", "cement"},
		{"  Portland  Cement 50KG ", "portland cement 50kg"},
		{"Steel\tRebar\n12mm", "steel rebar 12mm"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanProductName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SABIC Steel Rebar Co.", "steel rebar"},
		{"Saudi Cement Company", "cement"},
		{"United Group Pipes", "pipes"},
		{"National Gypsum Board", "gypsum board"},
		{"Cobalt Blue Paint", "cobalt blue paint"},
		{"Tiles", "tiles"},
	}
	for _, tt := range tests {
		if got := CleanProductName(tt.input); got != tt.want {
			t.Errorf("CleanProductName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
