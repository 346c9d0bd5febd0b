package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/user/papercex/backend/internal/orderbook"
	"github.com/user/papercex/backend/internal/wallet"
)

const maxDepthLevels = 100

// DepthResponse is the book depth plus the best ask minus best bid, null
// while either side is empty.
type DepthResponse struct {
	*orderbook.OrderBookDepth
	Spread *float64 `json:"spread"`
}

// GetOrderBookDepth aggregates every user's resting orders for a symbol.
// This endpoint is public.
func (h *Handler) GetOrderBookDepth(c *fiber.Ctx) error {
	symbol := wallet.Canonical(c.Params("symbol"))
	if symbol == "" {
		return badRequest(c, "Symbol parameter is required")
	}
	levels := c.QueryInt("levels", orderbook.DefaultMaxLevels)
	if levels <= 0 || levels > maxDepthLevels {
		return badRequest(c, "levels must be between 1 and 100")
	}

	orders, err := h.store.PendingBySymbol(c.Context(), symbol)
	if err != nil {
		return h.fail(c, err)
	}
	resp := DepthResponse{OrderBookDepth: orderbook.GetDepth(symbol, orders, levels)}
	if spread, ok := resp.OrderBookDepth.Spread(); ok {
		resp.Spread = &spread
	}
	return c.JSON(resp)
}
