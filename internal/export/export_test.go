package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/frjar/frjarai/pkg/models"
)

func reopen(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteMarketReport(t *testing.T) {
	rows := []models.MarketRow{
		{ProductName: "Portland Cement 50kg", Category: "Cement", Unit: "50kg Bag", MinPrice: 13.046, MaxPrice: 13.85, AveragePrice: 13.45},
		{ProductName: "Steel Rebar 12mm", Unit: "Ton", MinPrice: 2473.5, MaxPrice: 2626.5, AveragePrice: 2550},
	}
	var buf bytes.Buffer
	if err := WriteMarketReport(&buf, rows); err != nil {
		t.Fatal(err)
	}

	f := reopen(t, &buf)
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != MarketSheet {
		t.Fatalf("sheets = %v", sheets)
	}
	got, err := f.GetRows(MarketSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(got))
	}
	if got[0][0] != "Product Name" || got[0][5] != "Current Average Price (SAR)" {
		t.Fatalf("header = %v", got[0])
	}
	if got[1][0] != "Portland Cement 50kg" || got[1][3] != "13.05" {
		t.Fatalf("row 1 = %v", got[1])
	}
	if got[2][2] != "Ton" || got[2][5] != "2550" {
		t.Fatalf("row 2 = %v", got[2])
	}
}

func TestWriteForecast(t *testing.T) {
	fc := models.Forecast{
		Product:      "Cement",
		PastPrices:   map[string]float64{"2025": 148.5, "2024": 147},
		FuturePrices: map[string]float64{"2027": 152.25},
		Source:       models.ForecastSimulated,
	}
	var buf bytes.Buffer
	if err := WriteForecast(&buf, fc); err != nil {
		t.Fatal(err)
	}

	f := reopen(t, &buf)
	got, err := f.GetRows(ForecastSheet)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"2024", "147", "Past"},
		{"2025", "148.5", "Past"},
		{"2027", "152.25", "Forecast"},
	}
	for i, w := range want {
		row := got[i+1]
		if row[0] != w[0] || row[1] != w[1] || row[2] != w[2] {
			t.Fatalf("row %d = %v, want %v", i+1, row[:3], w)
		}
	}
	if v, _ := f.GetCellValue(ForecastSheet, "F2"); v != "Simulated" {
		t.Fatalf("source cell = %q", v)
	}
}

func TestReadProductList(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"Category", "Product Name"},
		{"Cement", "Portland Cement"},
		{"", ""},
		{"Steel", "Rebar 12mm"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	f.Close()

	items, err := ReadProductList(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Query() != "Portland Cement - Cement" || items[1].Name != "Rebar 12mm" {
		t.Fatalf("items = %+v", items)
	}

	_, err = ReadProductList(bytes.NewReader(buf.Bytes()), "SKU")
	if !errors.Is(err, ErrNoColumn) {
		t.Fatalf("expected ErrNoColumn, got %v", err)
	}
}

func TestMoney(t *testing.T) {
	if got := money(13.046); got != 13.05 {
		t.Fatalf("money = %v", got)
	}
}
