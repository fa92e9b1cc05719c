// Package extract pulls structured values out of free-form LLM replies.
//
// Every function is permissive: a reply that does not contain the
// expected shape yields "no result" rather than an error.
package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	firstDecimal = regexp.MustCompile(`\d+\.\d+`)
	htmlTag      = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// JSONObject returns the text between the first '{' and the last '}' of
// reply, after stripping any HTML markup.
func JSONObject(reply string) (string, bool) {
	text := StripHTML(reply)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// StripHTML returns the visible text of s when it contains HTML tags and
// s unchanged otherwise.
func StripHTML(s string) string {
	if !htmlTag.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return doc.Text()
}

// TodayPrice reads the today_price_sar (or today_price) field of the
// JSON object embedded in reply.
func TodayPrice(reply string) (float64, bool) {
	obj, ok := decodeObject(reply)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"today_price_sar", "today_price"} {
		if raw, present := obj[key]; present {
			return positive(raw)
		}
	}
	return 0, false
}

// Range is a min/max/average/today price quadruple.
type Range struct {
	Min     float64 `json:"min_price"`
	Max     float64 `json:"max_price"`
	Average float64 `json:"average_price"`
	Today   float64 `json:"today_price"`
}

// PriceRange reads a full Range; every field is required and must be positive.
func PriceRange(reply string) (Range, bool) {
	obj, ok := decodeObject(reply)
	if !ok {
		return Range{}, false
	}
	var r Range
	fields := []struct {
		key string
		dst *float64
	}{
		{"min_price", &r.Min},
		{"max_price", &r.Max},
		{"average_price", &r.Average},
		{"today_price", &r.Today},
	}
	for _, f := range fields {
		v, ok := positive(obj[f.key])
		if !ok {
			return Range{}, false
		}
		*f.dst = v
	}
	return r, true
}

// UnitPrice is a verified unit of sale with its SAR price.
type UnitPrice struct {
	Unit     string  `json:"unit"`
	PriceSAR float64 `json:"price_sar"`
}

// ParseUnitPrice reads {"unit", "price_sar"} from reply.
func ParseUnitPrice(reply string) (UnitPrice, bool) {
	obj, ok := decodeObject(reply)
	if !ok {
		return UnitPrice{}, false
	}
	return unitPriceFrom(obj)
}

// BatchUnitPrices reads a {name: {unit, price_sar}} map. Invalid entries
// are dropped; a reply without any valid entry yields an empty map.
func BatchUnitPrices(reply string) map[string]UnitPrice {
	out := make(map[string]UnitPrice)
	obj, ok := decodeObject(reply)
	if !ok {
		return out
	}
	for name, raw := range obj {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			continue
		}
		if up, ok := unitPriceFrom(inner); ok {
			out[strings.TrimSpace(name)] = up
		}
	}
	return out
}

// Forecast reads {"past_prices": {year: price}, "future_prices": {...}}.
// Non-positive or non-numeric entries are dropped; ok is false when both
// maps end up empty.
func Forecast(reply string) (past, future map[string]float64, ok bool) {
	obj, found := decodeObject(reply)
	if !found {
		return nil, nil, false
	}
	past = yearPrices(obj["past_prices"])
	future = yearPrices(obj["future_prices"])
	if len(past) == 0 && len(future) == 0 {
		return nil, nil, false
	}
	return past, future, true
}

// FirstDecimal returns the first number with a fractional part in reply.
func FirstDecimal(reply string) (float64, bool) {
	m := firstDecimal.FindString(reply)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ── Internal Helpers ──

func decodeObject(reply string) (map[string]json.RawMessage, bool) {
	text, ok := JSONObject(reply)
	if !ok {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func unitPriceFrom(obj map[string]json.RawMessage) (UnitPrice, bool) {
	var unit string
	if err := json.Unmarshal(obj["unit"], &unit); err != nil {
		return UnitPrice{}, false
	}
	unit = strings.TrimSpace(unit)
	price, ok := positive(obj["price_sar"])
	if unit == "" || !ok {
		return UnitPrice{}, false
	}
	return UnitPrice{Unit: unit, PriceSAR: price}, true
}

func yearPrices(raw json.RawMessage) map[string]float64 {
	out := make(map[string]float64)
	var m map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return out
	}
	for year, v := range m {
		if p, ok := positive(v); ok {
			out[strings.TrimSpace(year)] = p
		}
	}
	return out
}

// positive decodes a JSON number or numeric string that is finite and > 0.
func positive(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "SAR"))
		s = strings.ReplaceAll(s, ",", "")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
