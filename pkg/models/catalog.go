package models

// Supplier is a vendor listing for a product.
type Supplier struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	SalesEmail  string `json:"sales_email,omitempty"`
	Website     string `json:"website,omitempty"`
}

// Product is a catalog entry with its historical price statistics.
type Product struct {
	Name                string                `json:"name"`
	MinPrice            float64               `json:"min_price"`
	MaxPrice            float64               `json:"max_price"`
	Average             float64               `json:"average"`
	Median              float64               `json:"median,omitempty"`
	Unit                string                `json:"unit"`
	CityMargins         map[string]CityMargin `json:"city_margins,omitempty"`
	Suppliers           []Supplier            `json:"suppliers,omitempty"`
	SecondLayerSupplier []Supplier            `json:"second_layer_wholesale_suppliers,omitempty"`
	RetailSuppliers     []Supplier            `json:"retail_suppliers,omitempty"`
}

// Stats projects a product onto the statistics consumed by the estimator.
func (p Product) Stats() ProductStats {
	return ProductStats{
		Name:        p.Name,
		Unit:        p.Unit,
		MinPrice:    p.MinPrice,
		MaxPrice:    p.MaxPrice,
		Average:     p.Average,
		Median:      p.Median,
		CityMargins: p.CityMargins,
	}
}

// Material groups related products (e.g. "Cement").
type Material struct {
	Name     string    `json:"name"`
	Unit     string    `json:"unit,omitempty"`
	Products []Product `json:"products"`
}

// MarketRow is one line of a verified market report.
type MarketRow struct {
	ProductName  string  `json:"product_name"`
	Category     string  `json:"category,omitempty"`
	Unit         string  `json:"unit"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	AveragePrice float64 `json:"average_price"`
}

// ForecastSource tags where a forecast came from.
type ForecastSource string

const (
	ForecastAI        ForecastSource = "AI"
	ForecastSimulated ForecastSource = "Simulated"
)

// Forecast holds yearly past and future price estimates keyed by year.
type Forecast struct {
	Product      string             `json:"product"`
	Country      string             `json:"country"`
	PastPrices   map[string]float64 `json:"past_prices"`
	FuturePrices map[string]float64 `json:"future_prices"`
	Source       ForecastSource     `json:"source"`
}

// VerifyItem is one product queued for market verification.
type VerifyItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Query returns "name - category", or just the name without a category.
func (i VerifyItem) Query() string {
	if i.Category == "" {
		return i.Name
	}
	return i.Name + " - " + i.Category
}
