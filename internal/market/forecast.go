package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frjar/frjarai/internal/extract"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

// Forecaster defaults.
const (
	DefaultCountry       = "Saudi Arabia"
	DefaultYears         = 3
	DefaultForecastTries = 3
)

// Forecaster produces past and future yearly prices for a product.
type Forecaster struct {
	chain       Chain
	country     string
	pastYears   int
	futureYears int
	attempts    int
	retryDelay  time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// ForecastOption configures a Forecaster.
type ForecastOption func(*Forecaster)

// WithCountry sets the market named in prompts.
func WithCountry(c string) ForecastOption {
	return func(f *Forecaster) {
		if c != "" {
			f.country = c
		}
	}
}

// WithYears sets how many past and future years to cover.
func WithYears(past, future int) ForecastOption {
	return func(f *Forecaster) {
		if past > 0 {
			f.pastYears = past
		}
		if future > 0 {
			f.futureYears = future
		}
	}
}

// WithForecastAttempts sets the attempt budget and the pause between attempts.
func WithForecastAttempts(n int, delay time.Duration) ForecastOption {
	return func(f *Forecaster) {
		if n > 0 {
			f.attempts = n
		}
		if delay >= 0 {
			f.retryDelay = delay
		}
	}
}

// WithForecastClock overrides the clock used to pick the current year.
func WithForecastClock(now func() time.Time) ForecastOption {
	return func(f *Forecaster) {
		if now != nil {
			f.now = now
		}
	}
}

// WithForecastLogger sets the logger.
func WithForecastLogger(l *slog.Logger) ForecastOption {
	return func(f *Forecaster) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewForecaster creates a Forecaster over chain.
func NewForecaster(chain Chain, opts ...ForecastOption) *Forecaster {
	f := &Forecaster{
		chain:       chain,
		country:     DefaultCountry,
		pastYears:   DefaultYears,
		futureYears: DefaultYears,
		attempts:    DefaultForecastTries,
		retryDelay:  time.Second,
		now:         utils.NowAST,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForecastPrompt asks for yearly prices around year under a ±10% cap.
func ForecastPrompt(product, country string, past, future, year int) string {
	return fmt.Sprintf(`You are an expert in %s's construction material pricing.

Product: %q

Estimate:
- Past %d years prices
- Future %d years prices
- Assume stable market with max ±10%% change.

Respond STRICT JSON:

{
  "past_prices": {
    "%d": 140.00,
    "%d": 145.00
  },
  "future_prices": {
    "%d": 155.00,
    "%d": 160.00
  }
}
`, country, product, past, future, year-2, year-1, year+1, year+2)
}

// RetailPromptFor asks for a bare realistic retail price.
func RetailPromptFor(product, country string) string {
	return fmt.Sprintf("Estimate a realistic retail price (SAR) for %q in %s. Only return number like: 123.45\n", product, country)
}

// Forecast asks the chain for a forecast and falls back to a simulated
// trend around basePrice. A non-positive basePrice is first resolved with
// RetailPrice.
func (f *Forecaster) Forecast(ctx context.Context, product string, basePrice float64) (models.Forecast, error) {
	year := f.now().Year()
	out := models.Forecast{Product: product, Country: f.country}

	prompt := ForecastPrompt(product, f.country, f.pastYears, f.futureYears, year)
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, f.retryDelay); err != nil {
				return out, err
			}
		}
		reply, err := f.chain.Complete(ctx, prompt)
		if err != nil {
			f.logger.Debug("forecast attempt failed", "product", product, "attempt", attempt, "err", err)
			continue
		}
		past, future, ok := extract.Forecast(reply.Text)
		if !ok {
			continue
		}
		out.PastPrices, out.FuturePrices, out.Source = past, future, models.ForecastAI
		return out, nil
	}

	if basePrice <= 0 {
		p, err := f.RetailPrice(ctx, product)
		if err != nil {
			return out, fmt.Errorf("%w: %s", ErrNoForecast, product)
		}
		basePrice = p
	}
	f.logger.Info("forecast simulated", "product", product, "base", basePrice)
	out.PastPrices, out.FuturePrices = SimulateForecast(basePrice, f.pastYears, f.futureYears, year)
	out.Source = models.ForecastSimulated
	return out, nil
}

// RetailPrice returns the first decimal number in the chain's reply.
func (f *Forecaster) RetailPrice(ctx context.Context, product string) (float64, error) {
	reply, err := f.chain.Complete(ctx, RetailPromptFor(product, f.country))
	if err != nil {
		return 0, fmt.Errorf("market: retail price: %w", err)
	}
	p, ok := extract.FirstDecimal(reply.Text)
	if !ok {
		return 0, fmt.Errorf("%w: no price in reply for %s", ErrUnverified, product)
	}
	return p, nil
}

// SimulateForecast derives a gentle trend from base: past year i back is
// base·(1−0.01i), future year i ahead is base·(1+0.015i), both rounded to
// two decimals.
func SimulateForecast(base float64, past, future, year int) (pastPrices, futurePrices map[string]float64) {
	b := decimal.NewFromFloat(base)
	one := decimal.NewFromInt(1)
	pastPrices = make(map[string]float64, past)
	futurePrices = make(map[string]float64, future)
	for i := 1; i <= past; i++ {
		f := one.Sub(decimal.New(int64(i), -2))
		pastPrices[strconv.Itoa(year-i)] = b.Mul(f).Round(2).InexactFloat64()
	}
	for i := 1; i <= future; i++ {
		f := one.Add(decimal.New(int64(15*i), -3))
		futurePrices[strconv.Itoa(year+i)] = b.Mul(f).Round(2).InexactFloat64()
	}
	return pastPrices, futurePrices
}
