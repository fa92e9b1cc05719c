package pricing

import (
	"fmt"
	"strings"

	"github.com/frjar/frjarai/pkg/models"
)

// PromptInput carries everything rendered into the today-price prompt.
type PromptInput struct {
	Stats     models.ProductStats
	City      string
	Date      string
	Headlines []string
}

// BuildPrompt renders the today-price prompt. Bounds are the
// city-adjusted ones; the reply is requested as strict JSON.
func BuildPrompt(in PromptInput) string {
	s := in.Stats
	city := strings.TrimSpace(in.City)
	if city == "" {
		city = models.NationalAverage
	}
	unit := s.Unit
	if unit == "" {
		unit = "unit"
	}

	var b strings.Builder
	b.WriteString("You are a Saudi Arabia construction material pricing expert.\n\n")
	fmt.Fprintf(&b, "Estimate today's market price (%s) in SAR for:\n", in.Date)
	fmt.Fprintf(&b, "- Product: %s\n", s.Name)
	fmt.Fprintf(&b, "- Unit: %s\n", unit)
	fmt.Fprintf(&b, "- City: %s\n", city)
	fmt.Fprintf(&b, "- Historical minimum: %.2f SAR\n", s.MinPrice)
	fmt.Fprintf(&b, "- Historical maximum: %.2f SAR\n", s.MaxPrice)
	fmt.Fprintf(&b, "- Average: %.2f SAR\n", s.Average)
	fmt.Fprintf(&b, "- Median: %.2f SAR\n", s.EffectiveMedian())

	if len(in.Headlines) > 0 {
		b.WriteString("\nRecent market context:\n")
		for _, h := range in.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	b.WriteString("\nThe price must lie strictly between the minimum and maximum and must not equal the average.\n")
	b.WriteString("Respond with STRICT JSON only:\n\n")
	b.WriteString(`{"today_price_sar": 123.45}`)
	b.WriteString("\n")
	return b.String()
}
