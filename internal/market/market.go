// Package market verifies unit prices against the provider chain in bulk
// and produces multi-year price forecasts.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/frjar/frjarai/internal/llm"
)

var (
	// ErrUnverified means no attempt produced a usable {unit, price_sar}.
	ErrUnverified = errors.New("market: price not verified")
	// ErrNoForecast means neither the chain nor a base price could produce a forecast.
	ErrNoForecast = errors.New("market: no forecast available")
)

// Chain is the provider-chain capability used by this package.
type Chain interface {
	Complete(ctx context.Context, prompt string) (llm.Reply, error)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
