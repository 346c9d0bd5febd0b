package pricing

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/user/papercex/backend/internal/models"
)

// DefaultSimulatedPrices are the opening prices of the simulated market.
func DefaultSimulatedPrices() map[string]float64 {
	return map[string]float64{
		"BTC": 60000,
		"ETH": 3000,
		"SOL": 150,
		"BNB": 550,
	}
}

// SimulatedSource is an offline Source producing a random walk of at most
// +/-0.5% per quote. Unknown symbols open at 1.
type SimulatedSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	opening map[string]float64
	current map[string]float64
}

// NewSimulatedSource creates a random walk starting from prices. A nil map
// uses DefaultSimulatedPrices.
func NewSimulatedSource(prices map[string]float64, seed uint64) *SimulatedSource {
	if prices == nil {
		prices = DefaultSimulatedPrices()
	}
	s := &SimulatedSource{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		opening: make(map[string]float64, len(prices)),
		current: make(map[string]float64, len(prices)),
	}
	for sym, p := range prices {
		sym = Canonical(sym)
		s.opening[sym] = p
		s.current[sym] = p
	}
	return s
}

// Quote implements Source.
func (s *SimulatedSource) Quote(ctx context.Context, symbol string) (models.TokenPrice, error) {
	if err := ctx.Err(); err != nil {
		return models.TokenPrice{}, err
	}
	sym := Canonical(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.current[sym]
	if !ok {
		old = 1
		s.opening[sym] = old
	}
	next := old * (1 + (s.rng.Float64()-0.5)/100)
	if next <= 0 {
		next = old * 0.1
	}
	s.current[sym] = next

	return models.TokenPrice{
		Symbol:    sym,
		Name:      sym,
		Price:     next,
		Change24h: (next/s.opening[sym] - 1) * 100,
	}, nil
}
