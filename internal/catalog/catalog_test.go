package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frjar/frjarai/pkg/models"
)

const sampleCatalog = `{
  "materials": [
    {
      "name": "Cement",
      "unit": "50kg Bag",
      "products": [
        {
          "name": "SABIC Portland Cement",
          "min_price": 10, "max_price": 25, "average": 18, "median": 18,
          "city_margins": {"Riyadh": {"min_margin_percent": 5, "max_margin_percent": 10}},
          "suppliers": [
            {"name": "A", "location": "Riyadh, Industrial Area"},
            {"name": "B", "location": "Jeddah"}
          ],
          "second_layer_wholesale_suppliers": [{"name": "C", "location": "riyadh"}],
          "retail_suppliers": [{"name": "D", "location": "Dammam", "sales_email": "d@x.sa"}]
        },
        {"name": "White Cement", "min_price": 20, "max_price": 30, "average": 24, "unit": "Bag"}
      ]
    },
    {
      "name": "Steel",
      "products": [
        {"name": "Steel Rebar 12mm", "min_price": 2400, "max_price": 2900, "average": 2600, "unit": "Ton"},
        {"name": "steel rebar 12MM", "min_price": 1, "max_price": 2, "average": 1.5, "unit": "Ton"}
      ]
    }
  ]
}`

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// ════════════════════════════════════════════════════════════════════
// Load / Find
// ════════════════════════════════════════════════════════════════════

func TestLoad(t *testing.T) {
	c := loadSample(t)
	if len(c.Materials()) != 2 {
		t.Fatalf("materials = %d", len(c.Materials()))
	}
	if c.Len() != 3 {
		t.Fatalf("duplicate product names should collapse, Len = %d", c.Len())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file should fail")
	}
	if _, err := Parse(strings.NewReader("[")); err == nil {
		t.Fatal("bad JSON should fail")
	}
}

func TestFind(t *testing.T) {
	c := loadSample(t)

	e, err := c.Find("  sabic portland   CEMENT")
	if err != nil {
		t.Fatal(err)
	}
	if e.Material != "Cement" || e.Product.Unit != "50kg Bag" {
		t.Fatalf("material unit should be inherited: %+v", e)
	}
	if e.Product.Stats().CityMargins["Riyadh"].MaxMarginPercent != 10 {
		t.Fatal("city margins lost")
	}

	if e, err := c.Find("Portland Cement"); err != nil || e.Product.Name != "SABIC Portland Cement" {
		t.Fatalf("cleaned-name match failed: %+v, %v", e, err)
	}
	if e, _ := c.Find("steel rebar 12mm"); e.Product.Average != 2600 {
		t.Fatalf("first duplicate should win: %+v", e)
	}
	if _, err := c.Find("Gravel"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductsAndSearch(t *testing.T) {
	c := loadSample(t)
	ps := c.Products()
	if len(ps) != 3 || ps[0].Product.Name != "SABIC Portland Cement" || ps[2].Material != "Steel" {
		t.Fatalf("unexpected order: %+v", ps)
	}
	if got := c.Search("cement"); len(got) != 2 {
		t.Fatalf("Search(cement) = %d entries", len(got))
	}
}

// ════════════════════════════════════════════════════════════════════
// Suppliers
// ════════════════════════════════════════════════════════════════════

func TestFilterByCity(t *testing.T) {
	sup := []models.Supplier{{Location: "Riyadh"}, {Location: "North RIYADH"}, {Location: "Jeddah"}, {}}
	if got := FilterByCity(sup, models.NationalAverage); len(got) != 4 {
		t.Fatalf("national average keeps all, got %d", len(got))
	}
	if got := FilterByCity(sup, "riyadh"); len(got) != 2 {
		t.Fatalf("riyadh filter = %d", len(got))
	}
	if got := FilterByCity(sup, "Medina"); len(got) != 0 {
		t.Fatalf("medina filter = %d", len(got))
	}
}

func TestSupplierCounts(t *testing.T) {
	e, _ := loadSample(t).Find("SABIC Portland Cement")

	got := SupplierCounts(e.Product, "Riyadh")
	if got != (models.SupplierCounts{Wholesale: 1, SecondLayer: 1, Retail: 0}) {
		t.Fatalf("Riyadh counts = %+v", got)
	}
	got = SupplierCounts(e.Product, "")
	if got != (models.SupplierCounts{Wholesale: 2, SecondLayer: 1, Retail: 1}) {
		t.Fatalf("national counts = %+v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Cleaning
// ════════════════════════════════════════════════════════════════════

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"SABIC Steel Rebar Co.":          "steel rebar",
		"Saudi  National Cement Company": "cement",
		"United Group Gypsum Board":      "gypsum board",
		"Concrete Blocks":                "concrete blocks",
	}
	for in, want := range tests {
		if got := CleanName(in); got != want {
			t.Errorf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDedupe(t *testing.T) {
	rows := []models.MarketRow{
		{ProductName: "Cement", Unit: "Bag", AveragePrice: 13},
		{ProductName: "cement ", Unit: "bag", AveragePrice: 99},
		{ProductName: "Cement", Unit: "Ton", AveragePrice: 260},
	}
	got := Dedupe(rows)
	if len(got) != 2 || got[0].AveragePrice != 13 || got[1].Unit != "Ton" {
		t.Fatalf("Dedupe = %+v", got)
	}
}
