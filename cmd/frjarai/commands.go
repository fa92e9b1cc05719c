package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frjar/frjarai/api"
	"github.com/frjar/frjarai/internal/app"
	"github.com/frjar/frjarai/internal/config"
	"github.com/frjar/frjarai/internal/export"
	"github.com/frjar/frjarai/internal/predictor"
	"github.com/frjar/frjarai/internal/supplier"
	"github.com/frjar/frjarai/pkg/models"
	"github.com/frjar/frjarai/pkg/utils"
)

const rule = "═══════════════════════════════════════"

// --- Estimate Command ---

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [product]",
		Short: "Estimate today's price of a catalog product",
		Long: `Estimate today's price of a catalog product, optionally adjusted
for a city's margins.

Examples:
  frjarai estimate "Portland Cement"
  frjarai estimate "Rebar 12mm" --city Jeddah`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city, _ := cmd.Flags().GetString("city")
			name := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				est, err := a.EstimateProduct(ctx, name, city)
				if err != nil {
					return err
				}
				printEstimate(cmd.OutOrStdout(), est)
				return nil
			})
		},
	}
	cmd.Flags().String("city", models.NationalAverage, "city whose margins apply")
	return cmd
}

func printEstimate(out io.Writer, est models.PriceEstimate) {
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  %s (%s)\n", est.Product, est.City)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Today:        %s", utils.FormatSAR(est.TodayPrice))
	if est.Unit != "" {
		fmt.Fprintf(out, " / %s", est.Unit)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Range:        %s to %s\n", utils.FormatSAR(est.MinPrice), utils.FormatSAR(est.MaxPrice))
	fmt.Fprintf(out, "  Average:      %s\n", utils.FormatSAR(est.AveragePrice))
	fmt.Fprintf(out, "  Volatility:   %.4f (monthly %.4f)\n", est.Volatility, est.MonthlyVolatility)
	fmt.Fprintf(out, "  Symmetry:     %.4f\n", est.SymmetryIndex)
	source := string(est.ModelSource)
	if est.Provider != "" {
		source += " via " + est.Provider
	}
	fmt.Fprintf(out, "  Source:       %s (score %.2f)\n", source, est.SourceScore)
	fmt.Fprintf(out, "  Suppliers:    %d wholesale, %d second layer, %d retail\n",
		est.SupplierCounts.Wholesale, est.SupplierCounts.SecondLayer, est.SupplierCounts.Retail)
	fmt.Fprintf(out, "  Date:         %s\n", est.Date)
}

// --- Verify Command ---

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [names...]",
		Short: "Verify current market prices for a list of products",
		Long: `Verify current market prices for products given as arguments or
read from a spreadsheet, optionally writing the market report as xlsx.

Examples:
  frjarai verify "Portland Cement" "Gypsum Board"
  frjarai verify --from products.xlsx --xlsx report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			column, _ := cmd.Flags().GetString("column")
			category, _ := cmd.Flags().GetString("category")
			outPath, _ := cmd.Flags().GetString("xlsx")

			items, err := verifyItems(args, category, from, column)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("provide product names or --from a spreadsheet")
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				errOut := cmd.ErrOrStderr()
				rows, err := a.Verifier.VerifyAll(ctx, items, func(done, total int) {
					fmt.Fprintf(errOut, "\r  verified %d/%d", done, total)
				})
				fmt.Fprintln(errOut)
				if err != nil {
					return err
				}
				printRows(cmd.OutOrStdout(), rows, len(items))
				if outPath == "" {
					return nil
				}
				if err := writeFile(outPath, func(w io.Writer) error {
					return export.WriteMarketReport(w, rows)
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  Report written to %s\n", outPath)
				return nil
			})
		},
	}
	cmd.Flags().String("from", "", "xlsx file listing the products")
	cmd.Flags().String("column", "", "product column in --from (default \"Product Name\")")
	cmd.Flags().String("category", "", "category appended to every named product")
	cmd.Flags().String("xlsx", "", "write the market report to this xlsx file")
	return cmd
}

func verifyItems(names []string, category, from, column string) ([]models.VerifyItem, error) {
	var items []models.VerifyItem
	for _, n := range names {
		items = append(items, models.VerifyItem{Name: n, Category: category})
	}
	if from == "" {
		return items, nil
	}
	f, err := os.Open(from)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	listed, err := export.ReadProductList(f, column)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", from, err)
	}
	return append(items, listed...), nil
}

func printRows(out io.Writer, rows []models.MarketRow, requested int) {
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Market report: %d of %d verified\n", len(rows), requested)
	fmt.Fprintln(out, rule)
	for _, r := range rows {
		fmt.Fprintf(out, "  %-32s %-10s %s  (%s to %s)\n", r.ProductName, r.Unit,
			utils.FormatSAR(r.AveragePrice), utils.FormatSAR(r.MinPrice), utils.FormatSAR(r.MaxPrice))
	}
}

// --- Forecast Command ---

func newForecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast [product]",
		Short: "Show past and future yearly prices for a product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetFloat64("base")
			outPath, _ := cmd.Flags().GetString("xlsx")
			product := strings.Join(args, " ")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				fc, err := a.Forecaster.Forecast(ctx, product, base)
				if err != nil {
					return err
				}
				printForecast(cmd.OutOrStdout(), fc)
				if outPath == "" {
					return nil
				}
				return writeFile(outPath, func(w io.Writer) error {
					return export.WriteForecast(w, fc)
				})
			})
		},
	}
	cmd.Flags().Float64("base", 0, "current price used by the simulated fallback (looked up when 0)")
	cmd.Flags().String("xlsx", "", "write the forecast to this xlsx file")
	return cmd
}

func printForecast(out io.Writer, fc models.Forecast) {
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  %s in %s (%s)\n", fc.Product, fc.Country, fc.Source)
	fmt.Fprintln(out, rule)
	for _, y := range slices.Sorted(maps.Keys(fc.PastPrices)) {
		fmt.Fprintf(out, "  %s  past      %s\n", y, utils.FormatSAR(fc.PastPrices[y]))
	}
	for _, y := range slices.Sorted(maps.Keys(fc.FuturePrices)) {
		fmt.Fprintf(out, "  %s  forecast  %s\n", y, utils.FormatSAR(fc.FuturePrices[y]))
	}
}

// --- Suppliers Command ---

func newSuppliersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suppliers [query]",
		Short: "Search the supplier directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city, _ := cmd.Flags().GetString("city")
			q := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				hits, err := a.Suppliers.Search(ctx, q)
				if err != nil {
					return err
				}
				hits = supplier.FilterByCity(hits, city)
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(out, "No suppliers found for %q\n", q)
					return nil
				}
				for _, h := range hits {
					fmt.Fprintf(out, "  %-40s %s\n", h.Name(), h.Location())
				}
				return nil
			})
		},
	}
	cmd.Flags().String("city", models.NationalAverage, "only show suppliers in this city")
	return cmd
}

// --- Chat Command ---

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the FRJAR assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _ := cmd.Flags().GetString("session")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				answer, err := a.Assistant.Ask(ctx, session, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}
	cmd.Flags().String("session", "cli", "conversation session id")
	return cmd
}

// --- Serve Command (API Server) ---

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.API.Addr()
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Starting FRJAR.ai API server on %s\n", addr)
				return api.NewServer(a, version).ListenAndServe(ctx, addr)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from api.host and api.port)")
	return cmd
}

// --- Status Command ---

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			printStatus(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printStatus(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "  FRJAR.ai System Status")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
	fmt.Fprintf(out, "  Time (AST):    %s\n", utils.FormatDateTimeAST(utils.NowAST()))
	fmt.Fprintf(out, "  Price Day:     %s\n", utils.TodayAST())
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Configuration:")
	file := cfg.File
	if file == "" {
		file = "(defaults)"
	}
	fmt.Fprintf(out, "    Config File:   %s\n", file)
	fmt.Fprintf(out, "    LLM Order:     %s\n", strings.Join(cfg.LLM.Order, ", "))
	fmt.Fprintf(out, "    Providers:     %d configured\n", config.ConfiguredProviders(cfg))
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = app.BackendJSON
	}
	fmt.Fprintf(out, "    Storage:       %s\n", backend)
	fmt.Fprintf(out, "    Catalog:       %s\n", cfg.Pricing.CatalogFile)
	fmt.Fprintf(out, "    API Server:    %s\n", cfg.API.Addr())
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Local Model:")
	m, err := predictor.Load(cfg.Pricing.ModelFile)
	switch {
	case errors.Is(err, predictor.ErrNoModel):
		fmt.Fprintf(out, "    %s: not found\n", cfg.Pricing.ModelFile)
	case err != nil:
		fmt.Fprintf(out, "    %s: unusable (%v)\n", cfg.Pricing.ModelFile, err)
	default:
		fmt.Fprintf(out, "    %s: %d features", cfg.Pricing.ModelFile, m.Dim())
		if !m.TrainedAt.IsZero() {
			fmt.Fprintf(out, ", trained %s", utils.FormatDateTimeAST(m.TrainedAt))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  API Keys:")
	for _, k := range config.CheckAPIKeys(cfg) {
		status := "not set"
		if k.IsSet {
			status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
		}
		fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
	}
	fmt.Fprintln(out, rule)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
