// Package ticker periodically refreshes market prices through the price
// client and publishes them for the live feed.
package ticker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/models"
)

// PriceUpdate represents a single price update for a symbol.
type PriceUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Ts        int64   `json:"ts"` // Unix timestamp milliseconds
}

// SymbolLister yields the symbols to refresh on each round.
type SymbolLister interface {
	MarketSymbols(ctx context.Context) []string
}

type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]models.TokenPrice, error)
}

const updateBuffer = 100

// Refresher polls prices on a fixed interval. Updates are dropped rather
// than blocking when nobody is draining Updates.
type Refresher struct {
	symbols  SymbolLister
	prices   PriceFetcher
	interval time.Duration
	updates  chan PriceUpdate
	logger   *zap.Logger
}

func NewRefresher(symbols SymbolLister, prices PriceFetcher, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		symbols:  symbols,
		prices:   prices,
		interval: interval,
		updates:  make(chan PriceUpdate, updateBuffer),
		logger:   logger,
	}
}

// Updates is closed when Run returns.
func (r *Refresher) Updates() <-chan PriceUpdate {
	return r.updates
}

// Refresh runs one round and returns how many updates were published.
func (r *Refresher) Refresh(ctx context.Context) int {
	symbols := r.symbols.MarketSymbols(ctx)
	if len(symbols) == 0 {
		return 0
	}
	quotes, err := r.prices.FetchPrices(ctx, symbols)
	if err != nil {
		r.logger.Warn("price refresh failed", zap.Strings("symbols", symbols), zap.Error(err))
	}

	published := 0
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			continue
		}
		ts := q.FetchedAt
		if ts.IsZero() {
			ts = time.Now()
		}
		update := PriceUpdate{Symbol: sym, Price: q.Price, Change24h: q.Change24h, Ts: ts.UnixMilli()}
		select {
		case r.updates <- update:
			published++
		default:
			r.logger.Debug("price update channel full, dropping update", zap.String("symbol", sym))
		}
	}
	return published
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	defer close(r.updates)

	r.logger.Info("price refresher started", zap.Duration("interval", r.interval))
	r.Refresh(ctx)

	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher stopped")
			return
		case <-t.C:
			r.Refresh(ctx)
		}
	}
}
