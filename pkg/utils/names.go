package utils

import (
	"regexp"
	"strings"
)

var (
	spaceRun = regexp.MustCompile(`\s+`)

	// Brand and corporate noise words that do not identify a material.
	noiseWords = regexp.MustCompile(`\b(sabic|saudi|national|united|group|company|co\.?)(\s|$)`)
)

// NormalizeName lowercases, trims and collapses internal whitespace.
//
//	NormalizeName("  Portland  Cement 50KG ") → "portland cement 50kg"
func NormalizeName(name string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// CleanProductName strips brand/noise words from a product name so that
// the same material from different vendors compares equal.
//
//	CleanProductName("SABIC Steel Rebar Co.") → "steel rebar"
func CleanProductName(name string) string {
	n := strings.ToLower(name)
	n = noiseWords.ReplaceAllString(n, " ")
	return NormalizeName(n)
}
