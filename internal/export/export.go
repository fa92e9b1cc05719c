// Package export writes market reports and forecasts as xlsx workbooks
// and reads product lists back from uploaded sheets.
package export

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/frjar/frjarai/pkg/models"
)

const (
	MarketSheet   = "Market Report"
	ForecastSheet = "Forecast"
)

// ErrNoColumn is returned when an uploaded sheet lacks the product column.
var ErrNoColumn = errors.New("export: product column not found")

var marketHeader = []any{
	"Product Name", "Category", "Unit",
	"Minimum Price (SAR)", "Maximum Price (SAR)", "Current Average Price (SAR)",
}

// WriteMarketReport writes rows to a single "Market Report" sheet.
func WriteMarketReport(w io.Writer, rows []models.MarketRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, MarketSheet, marketHeader); err != nil {
		return err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{r.ProductName, r.Category, r.Unit, money(r.MinPrice), money(r.MaxPrice), money(r.AveragePrice)}
		if err := f.SetSheetRow(MarketSheet, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(MarketSheet, "A", "A", 40)
	_ = f.SetColWidth(MarketSheet, "B", "C", 18)
	_ = f.SetColWidth(MarketSheet, "D", "F", 26)
	return write(f, w)
}

// WriteForecast writes a "Forecast" sheet with one Year/Price/Kind row per
// year, past years first.
func WriteForecast(w io.Writer, fc models.Forecast) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, ForecastSheet, []any{"Year", "Price (SAR)", "Kind"}); err != nil {
		return err
	}
	_ = f.SetCellValue(ForecastSheet, "E1", "Product")
	_ = f.SetCellValue(ForecastSheet, "F1", fc.Product)
	_ = f.SetCellValue(ForecastSheet, "E2", "Source")
	_ = f.SetCellValue(ForecastSheet, "F2", string(fc.Source))

	next := 2
	for _, part := range []struct {
		kind   string
		prices map[string]float64
	}{{"Past", fc.PastPrices}, {"Forecast", fc.FuturePrices}} {
		for _, year := range sortedYears(part.prices) {
			cell, _ := excelize.CoordinatesToCellName(1, next)
			row := []any{yearValue(year), money(part.prices[year]), part.kind}
			if err := f.SetSheetRow(ForecastSheet, cell, &row); err != nil {
				return fmt.Errorf("export: forecast row %s: %w", year, err)
			}
			next++
		}
	}
	return write(f, w)
}

// ReadProductList returns the non-empty values of the named column from
// the first sheet of an xlsx workbook. An empty column name selects
// "Product Name". A "Category" column, when present, is carried along.
func ReadProductList(r io.Reader, column string) ([]models.VerifyItem, error) {
	if column == "" {
		column = "Product Name"
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("export: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumn
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("export: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoColumn
	}

	nameCol, catCol := -1, -1
	for i, h := range rows[0] {
		switch {
		case strings.EqualFold(strings.TrimSpace(h), column):
			nameCol = i
		case strings.EqualFold(strings.TrimSpace(h), "Category"):
			catCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, column)
	}

	var items []models.VerifyItem
	for _, row := range rows[1:] {
		if nameCol >= len(row) || strings.TrimSpace(row[nameCol]) == "" {
			continue
		}
		item := models.VerifyItem{Name: strings.TrimSpace(row[nameCol])}
		if catCol >= 0 && catCol < len(row) {
			item.Category = strings.TrimSpace(row[catCol])
		}
		items = append(items, item)
	}
	return items, nil
}

// ── Internal Helpers ──

func newSheet(f *excelize.File, name string, header []any) error {
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return fmt.Errorf("export: sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	return f.SetCellStyle(name, "A1", last, style)
}

func write(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}

// money rounds to halalas.
func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func sortedYears(m map[string]float64) []string {
	years := make([]string, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	slices.SortFunc(years, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai - bi
		}
		return strings.Compare(a, b)
	})
	return years
}

func yearValue(y string) any {
	if n, err := strconv.Atoi(y); err == nil {
		return n
	}
	return y
}
