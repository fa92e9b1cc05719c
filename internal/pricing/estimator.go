package pricing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/frjar/frjarai/internal/cache"
	"github.com/frjar/frjarai/internal/extract"
	"github.com/frjar/frjarai/internal/llm"
	"github.com/frjar/frjarai/internal/training"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

// Chain is the remote completion capability the estimator consults first.
type Chain interface {
	Complete(ctx context.Context, prompt string) (llm.Reply, error)
}

// LocalModel produces a bounded price from statistics when no provider replies.
type LocalModel interface {
	Estimate(stats models.ProductStats) (float64, error)
}

// HeadlineSource supplies market headlines for the prompt context block.
type HeadlineSource interface {
	Titles(ctx context.Context, limit int) ([]string, error)
}

// SupplierCounter reports supplier counts for a product in a city.
type SupplierCounter func(product, city string) models.SupplierCounts

// Estimator runs the today-price pipeline: cache, provider chain, local
// model, static fallback. It is safe for concurrent use.
type Estimator struct {
	chain     Chain
	cache     *cache.Manager
	local     LocalModel
	recorder  *training.Recorder
	headlines HeadlineSource
	maxNews   int
	suppliers SupplierCounter
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// EstimatorOption configures the estimator.
type EstimatorOption func(*Estimator)

// WithCache enables both cache tiers.
func WithCache(m *cache.Manager) EstimatorOption {
	return func(e *Estimator) { e.cache = m }
}

// WithLocalModel sets the fallback model used when the chain has no reply.
func WithLocalModel(m LocalModel) EstimatorOption {
	return func(e *Estimator) { e.local = m }
}

// WithRecorder records every accepted AI and local-model price.
func WithRecorder(r *training.Recorder) EstimatorOption {
	return func(e *Estimator) { e.recorder = r }
}

// WithHeadlines adds up to limit market headlines to each prompt.
func WithHeadlines(src HeadlineSource, limit int) EstimatorOption {
	return func(e *Estimator) {
		e.headlines = src
		e.maxNews = limit
	}
}

// WithSupplierCounter fills supplier_counts on each result.
func WithSupplierCounter(fn SupplierCounter) EstimatorOption {
	return func(e *Estimator) { e.suppliers = fn }
}

// WithLocation sets the zone of the result date.
func WithLocation(loc *time.Location) EstimatorOption {
	return func(e *Estimator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) EstimatorOption {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EstimatorOption {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEstimator creates an estimator over chain. A nil chain skips the
// remote tier entirely.
func NewEstimator(chain Chain, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		chain:  chain,
		loc:    utils.AST,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EstimateTodayPrice returns today's price estimate for a product in a
// city. It always returns a structurally valid result: remote failures
// fall through to the local model and then to the static fallback, and
// the source is reported in ModelSource.
func (e *Estimator) EstimateTodayPrice(ctx context.Context, stats models.ProductStats, city string) models.PriceEstimate {
	if models.IsNationalCity(city) {
		city = models.NationalAverage
	}
	adjusted := stats.ApplyCityMargin(city)

	if e.cache == nil {
		est, _ := e.estimate(ctx, adjusted, city)
		return est
	}

	key := cache.Key(stats.Name, stats.Unit, city)
	est, hit := e.cache.Do(ctx, key, func(ctx context.Context) (models.PriceEstimate, bool) {
		return e.estimate(ctx, adjusted, city)
	})
	if hit {
		e.logger.Debug("pricing: cache hit", "key", key, "source", est.ModelSource)
	}
	return est
}

// estimate runs the uncached pipeline. The bool reports whether the
// result may be cached; static fallbacks and results computed for a
// cancelled caller are not, so the next request retries the providers.
func (e *Estimator) estimate(ctx context.Context, stats models.ProductStats, city string) (models.PriceEstimate, bool) {
	features := ExtractFeatures(stats)
	date := utils.DayKey(e.now(), e.loc)

	price, provider, ok := e.remote(ctx, stats, city, date)
	source := models.SourceAI
	if !ok {
		price, ok = e.localEstimate(stats)
		source = models.SourceLocalModel
	}
	if !ok {
		price = StaticFallback(stats)
		source = models.SourceFallback
	}

	volatility := features[FeatureVolatility]
	result := models.PriceEstimate{
		Product:           stats.Name,
		Unit:              stats.Unit,
		City:              city,
		Date:              date,
		TodayPrice:        price,
		MinPrice:          Round2(stats.MinPrice),
		MaxPrice:          Round2(stats.MaxPrice),
		AveragePrice:      Round2(stats.Average),
		Volatility:        volatility,
		SymmetryIndex:     features[FeatureSymmetry],
		MonthlyVolatility: volatility / math.Sqrt(12),
		SourceScore:       source.Score(),
		ModelSource:       source,
		Provider:          provider,
	}
	if e.suppliers != nil {
		result.SupplierCounts = e.suppliers(stats.Name, city)
	}

	e.logger.Info("pricing: estimated today price",
		"product", stats.Name, "city", city, "source", source, "price", price)

	// A cancelled caller never reached the providers, so its local result
	// must not stand in for today's AI price.
	if ctx.Err() != nil {
		e.logger.Debug("pricing: caller cancelled, result not kept",
			"product", stats.Name, "city", city, "source", source)
		return result, false
	}
	if source != models.SourceFallback && e.recorder != nil {
		// A failed write is logged by the recorder; the estimate still stands.
		_ = e.recorder.Record(ctx, stats, price, city, source)
	}
	return result, source != models.SourceFallback
}

func (e *Estimator) remote(ctx context.Context, stats models.ProductStats, city, date string) (float64, string, bool) {
	if e.chain == nil {
		return 0, "", false
	}

	prompt := BuildPrompt(PromptInput{
		Stats:     stats,
		City:      city,
		Date:      date,
		Headlines: e.marketContext(ctx),
	})
	reply, err := e.chain.Complete(ctx, prompt)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, llm.ErrNoReply) {
			level = slog.LevelInfo
		}
		e.logger.Log(ctx, level, "pricing: no provider reply, using local fallback",
			"product", stats.Name, "err", err)
		return 0, "", false
	}

	raw, ok := extract.TodayPrice(reply.Text)
	if !ok {
		e.logger.Warn("pricing: reply had no usable price",
			"product", stats.Name, "provider", reply.Provider)
		return 0, "", false
	}
	return bound(raw, stats), reply.Provider, true
}

func (e *Estimator) localEstimate(stats models.ProductStats) (float64, bool) {
	if e.local == nil {
		return 0, false
	}
	p, err := e.local.Estimate(stats)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		e.logger.Warn("pricing: local model unavailable", "product", stats.Name, "err", err)
		return 0, false
	}
	return bound(p, stats), true
}

func (e *Estimator) marketContext(ctx context.Context) []string {
	if e.headlines == nil || e.maxNews <= 0 {
		return nil
	}
	titles, err := e.headlines.Titles(ctx, e.maxNews)
	if err != nil {
		e.logger.Debug("pricing: headlines unavailable", "err", err)
		return nil
	}
	return titles
}

// StaticFallback bounds the average (else the median, else the midpoint)
// with the adjuster.
func StaticFallback(stats models.ProductStats) float64 {
	base := stats.Average
	if !(base > 0) || math.IsInf(base, 0) {
		base = stats.Median
	}
	if !(base > 0) || math.IsInf(base, 0) {
		base = (stats.MinPrice + stats.MaxPrice) / 2
	}
	return bound(base, stats)
}

func bound(raw float64, stats models.ProductStats) float64 {
	p := AdjustTodayPrice(raw, stats.MinPrice, stats.MaxPrice, stats.Average)
	return RoundPrice(p, stats.MinPrice, stats.MaxPrice, stats.Average)
}
