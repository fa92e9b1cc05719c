// Package app assembles the pricing components from configuration. The
// CLI and the HTTP server both build one App and share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/frjar/frjarai/internal/assistant"
	"github.com/frjar/frjarai/internal/cache"
	"github.com/frjar/frjarai/internal/catalog"
	"github.com/frjar/frjarai/internal/config"
	"github.com/frjar/frjarai/internal/llm"
	"github.com/frjar/frjarai/internal/market"
	"github.com/frjar/frjarai/internal/news"
	"github.com/frjar/frjarai/internal/predictor"
	"github.com/frjar/frjarai/internal/pricing"
	"github.com/frjar/frjarai/internal/store"
	"github.com/frjar/frjarai/internal/supplier"
	"github.com/frjar/frjarai/internal/training"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

// Storage backends.
const (
	BackendJSON  = "json"
	BackendMySQL = "mysql"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Catalog    *catalog.Catalog
	Chain      *llm.Chain
	Cache      *cache.Manager
	Recorder   *training.Recorder
	Model      *predictor.LinearModel // nil when no artifact loaded
	ModelErr   error                  // why Model is nil
	Estimator  *pricing.Estimator
	Verifier   *market.Verifier
	Forecaster *market.Forecaster
	Suppliers  *supplier.Client
	News       *news.Fetcher // nil when news is disabled
	Assistant  *assistant.Assistant

	db *gorm.DB
}

// Build wires every component from cfg. Missing provider keys, a missing
// catalog and a missing model artifact are logged and tolerated; storage
// failures are not.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	loc := utils.LoadZone(cfg.Pricing.Timezone)

	cat, err := catalog.Load(cfg.Pricing.CatalogFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("catalog file not found, starting with an empty catalog", "path", cfg.Pricing.CatalogFile)
		cat = catalog.New(nil)
	case err != nil:
		return nil, err
	}
	a.Catalog = cat

	chain, err := llm.NewChainFromConfig(cfg, logger)
	if err != nil {
		logger.Warn("no LLM provider configured, estimates will use local tiers only", "err", err)
		chain = llm.NewChain(nil, llm.WithLogger(logger))
	}
	a.Chain = chain

	hist, train, err := a.openStores(cfg)
	if err != nil {
		return nil, err
	}
	a.Cache, err = cache.NewManager(ctx, hist,
		cache.WithTTL(cfg.Pricing.MemoryTTL), cache.WithLocation(loc), cache.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Recorder, err = training.NewRecorder(ctx, train, training.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}

	estOpts := []pricing.EstimatorOption{
		pricing.WithCache(a.Cache),
		pricing.WithRecorder(a.Recorder),
		pricing.WithLocation(loc),
		pricing.WithLogger(logger),
		pricing.WithSupplierCounter(a.supplierCounts),
	}

	a.Model, a.ModelErr = predictor.Load(cfg.Pricing.ModelFile)
	switch {
	case a.ModelErr == nil:
		estOpts = append(estOpts, pricing.WithLocalModel(predictor.NewLocal(a.Model, cfg.Pricing.Fluctuation, nil)))
		logger.Debug("local price model loaded", "path", cfg.Pricing.ModelFile, "features", a.Model.Dim())
	case errors.Is(a.ModelErr, predictor.ErrNoModel):
		logger.Debug("no local price model", "path", cfg.Pricing.ModelFile)
	default:
		logger.Warn("local price model rejected", "path", cfg.Pricing.ModelFile, "err", a.ModelErr)
	}

	if cfg.News.Enabled {
		a.News = news.NewFetcher(cfg.News.Feeds, news.WithTimeout(cfg.News.Timeout), news.WithLogger(logger))
		estOpts = append(estOpts, pricing.WithHeadlines(a.News, cfg.News.MaxHeadlines))
	}
	a.Estimator = pricing.NewEstimator(chain, estOpts...)

	a.Verifier = market.NewVerifier(chain,
		market.WithWorkers(cfg.Verify.Workers),
		market.WithAttempts(cfg.Verify.MaxAttempts),
		market.WithRetryDelay(cfg.Verify.RetryDelay),
		market.WithVerifierLogger(logger))
	a.Forecaster = market.NewForecaster(chain,
		market.WithCountry(cfg.Forecast.Country),
		market.WithYears(cfg.Forecast.PastYears, cfg.Forecast.FutureYears),
		market.WithForecastAttempts(cfg.Forecast.Attempts, cfg.Forecast.RetryDelay),
		market.WithForecastClock(func() time.Time { return time.Now().In(loc) }),
		market.WithForecastLogger(logger))
	a.Suppliers = supplier.NewClient(cfg.Supplier.SearchURL,
		supplier.WithTimeout(cfg.Supplier.Timeout),
		supplier.WithRetries(cfg.Supplier.RetryCount),
		supplier.WithLogger(logger))
	a.Assistant = assistant.New(chain, assistant.WithLogger(logger))

	return a, nil
}

// EstimateProduct looks name up in the catalog and estimates today's price.
func (a *App) EstimateProduct(ctx context.Context, name, city string) (models.PriceEstimate, error) {
	e, err := a.Catalog.Find(name)
	if err != nil {
		return models.PriceEstimate{}, err
	}
	return a.Estimator.EstimateTodayPrice(ctx, e.Product.Stats(), city), nil
}

// Close releases the SQL connection pool, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	a.db = nil
	return sqlDB.Close()
}

func (a *App) openStores(cfg *config.Config) (store.HistoryStore, store.TrainingStore, error) {
	switch cfg.Storage.Backend {
	case "", BackendJSON:
		return store.NewJSONHistory(cfg.Pricing.HistoryFile), store.NewJSONTraining(cfg.Pricing.TrainingFile), nil
	case BackendMySQL:
		if cfg.Storage.MySQLDSN == "" {
			return nil, nil, fmt.Errorf("app: storage backend mysql needs storage.mysql_dsn")
		}
		db, err := store.OpenSQL(cfg.Storage.MySQLDSN, store.SQLOptions{
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		return store.NewSQLHistory(db), store.NewSQLTraining(db), nil
	default:
		return nil, nil, fmt.Errorf("app: unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *App) supplierCounts(product, city string) models.SupplierCounts {
	e, err := a.Catalog.Find(product)
	if err != nil {
		return models.SupplierCounts{}
	}
	return catalog.SupplierCounts(e.Product, city)
}
