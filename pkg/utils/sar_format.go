package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatSAR formats an amount as Saudi Riyals with thousands separators,
// e.g. 12345.5 → "12,345.50 SAR".
func FormatSAR(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a SAR"
	}
	negative := amount < 0
	s := fmt.Sprintf("%.2f", math.Abs(amount))
	intPart, decPart := s[:len(s)-3], s[len(s)-2:]

	formatted := groupThousands(intPart) + "." + decPart
	if negative {
		formatted = "-" + formatted
	}
	return formatted + " SAR"
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
