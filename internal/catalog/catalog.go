// Package catalog loads the material price catalog and answers lookups
// against it.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

// ErrNotFound is returned when no product matches a lookup.
var ErrNotFound = errors.New("catalog: product not found")

// Entry is a product together with the material it belongs to.
type Entry struct {
	Material string         `json:"material"`
	Product  models.Product `json:"product"`
}

// Catalog is an immutable, indexed view over the materials file.
type Catalog struct {
	materials []models.Material
	byName    map[string]Entry
	order     []string
}

type document struct {
	Materials []models.Material `json:"materials"`
}

// Load reads the catalog JSON file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a {"materials": [...]} document.
func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc.Materials), nil
}

// New indexes materials. The first product wins when names collide.
func New(materials []models.Material) *Catalog {
	c := &Catalog{
		materials: materials,
		byName:    make(map[string]Entry),
	}
	for _, m := range materials {
		for _, p := range m.Products {
			if p.Unit == "" {
				p.Unit = m.Unit
			}
			key := utils.NormalizeName(p.Name)
			if key == "" {
				continue
			}
			if _, dup := c.byName[key]; dup {
				continue
			}
			c.byName[key] = Entry{Material: m.Name, Product: p}
			c.order = append(c.order, key)
		}
	}
	return c
}

// Materials returns the materials as loaded.
func (c *Catalog) Materials() []models.Material { return c.materials }

// Len returns the number of distinct products.
func (c *Catalog) Len() int { return len(c.order) }

// Find looks a product up by name, case- and whitespace-insensitively.
// When no exact match exists, a unique product whose cleaned name
// equals the cleaned query is accepted.
func (c *Catalog) Find(name string) (Entry, error) {
	if e, ok := c.byName[utils.NormalizeName(name)]; ok {
		return e, nil
	}

	want := CleanName(name)
	var match *Entry
	for _, key := range c.order {
		e := c.byName[key]
		if CleanName(e.Product.Name) != want {
			continue
		}
		if match != nil {
			return Entry{}, fmt.Errorf("%w: %q is ambiguous", ErrNotFound, name)
		}
		match = &e
	}
	if match == nil || want == "" {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return *match, nil
}

// Products lists every product in catalog order.
func (c *Catalog) Products() []Entry {
	out := make([]Entry, len(c.order))
	for i, key := range c.order {
		out[i] = c.byName[key]
	}
	return out
}

// Search returns products whose name contains q, case-insensitively.
func (c *Catalog) Search(q string) []Entry {
	q = utils.NormalizeName(q)
	var out []Entry
	for _, key := range c.order {
		if strings.Contains(key, q) {
			out = append(out, c.byName[key])
		}
	}
	return out
}

// FilterByCity keeps suppliers whose location mentions city. The
// national average, or an empty city, keeps everything.
func FilterByCity(suppliers []models.Supplier, city string) []models.Supplier {
	if models.IsNationalCity(city) {
		return suppliers
	}
	want := strings.ToLower(strings.TrimSpace(city))
	var out []models.Supplier
	for _, s := range suppliers {
		if strings.Contains(strings.ToLower(s.Location), want) {
			out = append(out, s)
		}
	}
	return out
}

// SupplierCounts counts the product's suppliers per tier in city.
func SupplierCounts(p models.Product, city string) models.SupplierCounts {
	return models.SupplierCounts{
		Wholesale:   len(FilterByCity(p.Suppliers, city)),
		SecondLayer: len(FilterByCity(p.SecondLayerSupplier, city)),
		Retail:      len(FilterByCity(p.RetailSuppliers, city)),
	}
}

// CleanName strips brand and corporate noise words from a product name.
func CleanName(name string) string {
	return utils.CleanProductName(name)
}

// Dedupe keeps the first row for each (product name, unit) pair.
func Dedupe(rows []models.MarketRow) []models.MarketRow {
	seen := make(map[[2]string]bool, len(rows))
	out := make([]models.MarketRow, 0, len(rows))
	for _, r := range rows {
		k := [2]string{utils.NormalizeName(r.ProductName), utils.NormalizeName(r.Unit)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
