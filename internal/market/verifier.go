package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/frjar/frjarai/internal/catalog"
	"github.com/frjar/frjarai/internal/extract"
	"github.com/frjar/frjarai/pkg/models"
)

// Verifier defaults.
const (
	DefaultWorkers     = 10
	DefaultAttempts    = 5
	DefaultRetryDelay  = time.Second
	boundSpreadPercent = 3
)

// ProgressFunc is called after every completed item, successful or not.
// It may be called from several goroutines at once.
type ProgressFunc func(done, total int)

// Verifier asks the chain for a unit and SAR price per product.
type Verifier struct {
	chain      Chain
	workers    int
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithWorkers bounds concurrent verifications.
func WithWorkers(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithAttempts sets the per-item attempt budget.
func WithAttempts(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.attempts = n
		}
	}
}

// WithRetryDelay sets the fixed pause between attempts.
func WithRetryDelay(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d >= 0 {
			v.retryDelay = d
		}
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier creates a Verifier over chain.
func NewVerifier(chain Chain, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		chain:      chain,
		workers:    DefaultWorkers,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyPrompt asks for the unit of sale and a SAR price of query.
func VerifyPrompt(query string) string {
	return fmt.Sprintf(`You are a Saudi Arabia construction material pricing expert.

Analyze the product: %q

Return STRICT JSON format:

{
  "unit": "Ton, Piece, 50kg Bag, Square Meter, Cubic Meter, etc.",
  "price_sar": 123.45
}
`, query)
}

// BatchPrompt asks for units and prices of several products in one reply.
func BatchPrompt(names []string) string {
	var b strings.Builder
	b.WriteString("You are a Saudi Arabia construction expert. Analyze the following products:\n\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	b.WriteString(`
Reply STRICT JSON like:

{
  "Cement 50kg": { "unit": "50kg Bag", "price_sar": 13.45 },
  "Steel Rebar": { "unit": "Ton", "price_sar": 2550.00 }
}
`)
	return b.String()
}

// Verify resolves one item into a market row with bounds at ±3% of the
// verified price.
func (v *Verifier) Verify(ctx context.Context, item models.VerifyItem) (models.MarketRow, error) {
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	if item.Name == "" {
		return models.MarketRow{}, fmt.Errorf("%w: empty product name", ErrUnverified)
	}

	prompt := VerifyPrompt(item.Query())
	for attempt := 1; attempt <= v.attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, v.retryDelay); err != nil {
				return models.MarketRow{}, err
			}
		}
		reply, err := v.chain.Complete(ctx, prompt)
		if err != nil {
			v.logger.Debug("verify attempt failed", "product", item.Name, "attempt", attempt, "err", err)
			continue
		}
		up, ok := extract.ParseUnitPrice(reply.Text)
		if !ok {
			v.logger.Debug("verify reply unparseable", "product", item.Name, "attempt", attempt, "provider", reply.Provider)
			continue
		}
		return Row(item, up), nil
	}
	return models.MarketRow{}, fmt.Errorf("%w: %s after %d attempts", ErrUnverified, item.Name, v.attempts)
}

// Row builds a market row from a verified unit price.
func Row(item models.VerifyItem, up extract.UnitPrice) models.MarketRow {
	p := decimal.NewFromFloat(up.PriceSAR)
	spread := decimal.New(boundSpreadPercent, -2)
	one := decimal.NewFromInt(1)
	return models.MarketRow{
		ProductName:  item.Name,
		Category:     item.Category,
		Unit:         up.Unit,
		MinPrice:     p.Mul(one.Sub(spread)).Round(2).InexactFloat64(),
		MaxPrice:     p.Mul(one.Add(spread)).Round(2).InexactFloat64(),
		AveragePrice: up.PriceSAR,
	}
}

// VerifyAll verifies items on a bounded worker pool. Failed items are
// omitted; rows come back in completion order, deduplicated by name and
// unit. The only error is ctx cancellation.
func (v *Verifier) VerifyAll(ctx context.Context, items []models.VerifyItem, progress ProgressFunc) ([]models.MarketRow, error) {
	var (
		mu   sync.Mutex
		rows []models.MarketRow
		done atomic.Int64
	)
	total := len(items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			row, err := v.Verify(gctx, item)
			if err == nil {
				mu.Lock()
				rows = append(rows, row)
				mu.Unlock()
			} else if gctx.Err() == nil {
				v.logger.Warn("product not verified", "product", item.Name, "err", err)
			}
			n := done.Add(1)
			if progress != nil {
				progress(int(n), total)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return catalog.Dedupe(rows), err
	}
	return catalog.Dedupe(rows), nil
}

// VerifyBatch asks for every name in one prompt. Entries the reply leaves
// out or gets wrong are simply absent from the result.
func (v *Verifier) VerifyBatch(ctx context.Context, names []string) (map[string]extract.UnitPrice, error) {
	if len(names) == 0 {
		return map[string]extract.UnitPrice{}, nil
	}
	reply, err := v.chain.Complete(ctx, BatchPrompt(names))
	if err != nil {
		return nil, fmt.Errorf("market: batch verify: %w", err)
	}
	out := extract.BatchUnitPrices(reply.Text)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: batch reply had no valid entries", ErrUnverified)
	}
	return out, nil
}
