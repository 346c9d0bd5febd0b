package trading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/wallet"
)

// RevenuePeriods are the windows reported by Portfolio.
var RevenuePeriods = []struct {
	Label  string
	Period time.Duration
}{
	{"1d", 24 * time.Hour},
	{"3d", 3 * 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

type Holding struct {
	Symbol  string  `json:"symbol"`
	Balance float64 `json:"balance"`
	Price   float64 `json:"price"`
	Value   float64 `json:"value"`
	Priced  bool    `json:"priced"`
}

type PortfolioSummary struct {
	TotalValue float64            `json:"total_value"`
	Holdings   []Holding          `json:"holdings"`
	Revenue    map[string]float64 `json:"revenue"`
	// Partial is set when some holding could not be priced; such a total is
	// not recorded in the value history.
	Partial bool `json:"partial"`
}

// Portfolio values every non-zero balance at current prices (USDT at 1),
// records the total in the portfolio history and reports revenue over
// RevenuePeriods.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*PortfolioSummary, error) {
	w, err := s.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, sym := range w.Symbols() {
		if sym != wallet.Quote && w.Balance(sym) != 0 {
			symbols = append(symbols, sym)
		}
	}

	prices := make(map[string]float64, len(symbols))
	if len(symbols) > 0 {
		quotes, err := s.prices.FetchPrices(ctx, symbols)
		if err != nil {
			s.logger.Warn("portfolio priced without market data",
				zap.Stringer("user_id", userID), zap.Error(err))
		}
		for sym, q := range quotes {
			prices[sym] = q.Price
		}
	}

	quote := decimal.NewFromFloat(w.Balance(wallet.Quote))
	total := quote
	summary := &PortfolioSummary{
		Holdings: []Holding{{
			Symbol:  wallet.Quote,
			Balance: quote.InexactFloat64(),
			Price:   1,
			Value:   quote.InexactFloat64(),
			Priced:  true,
		}},
		Revenue: make(map[string]float64, len(RevenuePeriods)),
	}
	for _, sym := range symbols {
		h := Holding{Symbol: sym, Balance: w.Balance(sym)}
		if p, ok := prices[sym]; ok {
			value := decimal.NewFromFloat(h.Balance).Mul(decimal.NewFromFloat(p))
			h.Price = p
			h.Value = value.InexactFloat64()
			h.Priced = true
			total = total.Add(value)
		} else {
			summary.Partial = true
		}
		summary.Holdings = append(summary.Holdings, h)
	}
	summary.TotalValue = total.InexactFloat64()

	key := userID.String()
	if s.portfolio != nil && !summary.Partial {
		s.portfolio.Add(key, summary.TotalValue)
	}
	for _, p := range RevenuePeriods {
		if s.portfolio == nil {
			summary.Revenue[p.Label] = 0
			continue
		}
		summary.Revenue[p.Label] = s.portfolio.Revenue(key, summary.TotalValue, p.Period)
	}
	return summary, nil
}
