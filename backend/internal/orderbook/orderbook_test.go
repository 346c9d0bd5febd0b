package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/papercex/backend/internal/models"
)

func pending(side models.Side, price, qty float64) *models.Order {
	return &models.Order{Symbol: "BTC", Side: side, Kind: models.KindLimit, Price: price, Quantity: qty, Status: models.StatusPending}
}

func TestGetDepthAggregatesLevels(t *testing.T) {
	orders := []*models.Order{
		pending(models.SideBuy, 49000, 0.1),
		pending(models.SideBuy, 49500, 0.2),
		pending(models.SideBuy, 49000, 0.2),
		pending(models.SideSell, 51000, 0.3),
		pending(models.SideSell, 50500, 0.05),
		{Symbol: "BTC", Side: models.SideSell, Price: 50000, Quantity: 9, Status: models.StatusCancelled},
		{Symbol: "ETH", Side: models.SideBuy, Price: 3000, Quantity: 1, Status: models.StatusPending},
	}

	depth := GetDepth("BTC", orders, 0)

	assert.Equal(t, "BTC", depth.Symbol)
	assert.Equal(t, []BookLevel{
		{Price: 49500, Quantity: 0.2, Orders: 1},
		{Price: 49000, Quantity: 0.3, Orders: 2},
	}, depth.Bids)
	assert.Equal(t, []BookLevel{
		{Price: 50500, Quantity: 0.05, Orders: 1},
		{Price: 51000, Quantity: 0.3, Orders: 1},
	}, depth.Asks)

	spread, ok := depth.Spread()
	require.True(t, ok)
	assert.Equal(t, 1000.0, spread)
}

func TestGetDepthCapsLevels(t *testing.T) {
	var orders []*models.Order
	for i := 0; i < 5; i++ {
		orders = append(orders, pending(models.SideBuy, float64(100+i), 1))
	}
	depth := GetDepth("BTC", orders, 2)
	require.Len(t, depth.Bids, 2)
	assert.Equal(t, 104.0, depth.Bids[0].Price)
	assert.Empty(t, depth.Asks)

	_, ok := depth.Spread()
	assert.False(t, ok)
}
