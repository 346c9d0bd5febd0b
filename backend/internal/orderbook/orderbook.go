// Package orderbook aggregates resting limit orders into a depth snapshot.
//
// The simulator never matches users against each other; every order fills
// against the market price. The book is a read-only view of PENDING orders.
package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/user/papercex/backend/internal/models"
)

// DefaultMaxLevels caps each side of a depth snapshot.
const DefaultMaxLevels = 20

// BookLevel is the total resting quantity at one price.
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Orders   int     `json:"orders"`
}

type OrderBookDepth struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"` // highest price first
	Asks   []BookLevel `json:"asks"` // lowest price first
}

type level struct {
	qty    decimal.Decimal
	orders int
}

// GetDepth aggregates the PENDING orders for symbol by price level. Orders for
// other symbols or in a terminal state are ignored. maxLevels <= 0 keeps every
// level.
func GetDepth(symbol string, orders []*models.Order, maxLevels int) *OrderBookDepth {
	bids := make(map[float64]*level)
	asks := make(map[float64]*level)
	for _, o := range orders {
		if o == nil || o.Symbol != symbol || o.Status != models.StatusPending {
			continue
		}
		side := asks
		if o.Side == models.SideBuy {
			side = bids
		}
		l, ok := side[o.Price]
		if !ok {
			l = &level{}
			side[o.Price] = l
		}
		l.qty = l.qty.Add(decimal.NewFromFloat(o.Quantity))
		l.orders++
	}

	return &OrderBookDepth{
		Symbol: symbol,
		Bids:   flatten(bids, true, maxLevels),
		Asks:   flatten(asks, false, maxLevels),
	}
}

func flatten(levels map[float64]*level, descending bool, maxLevels int) []BookLevel {
	prices := make([]float64, 0, len(levels))
	for p := range levels {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool {
		if descending {
			return prices[i] > prices[j]
		}
		return prices[i] < prices[j]
	})
	if maxLevels > 0 && len(prices) > maxLevels {
		prices = prices[:maxLevels]
	}

	out := make([]BookLevel, 0, len(prices))
	for _, p := range prices {
		l := levels[p]
		out = append(out, BookLevel{Price: p, Quantity: l.qty.InexactFloat64(), Orders: l.orders})
	}
	return out
}

// Spread is the gap between the best ask and the best bid, false when
// either side is empty.
func (d *OrderBookDepth) Spread() (float64, bool) {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return 0, false
	}
	return decimal.NewFromFloat(d.Asks[0].Price).Sub(decimal.NewFromFloat(d.Bids[0].Price)).InexactFloat64(), true
}
