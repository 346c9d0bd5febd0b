package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/user/papercex/backend/internal/history"
	"github.com/user/papercex/backend/internal/middleware"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/trading"
	"github.com/user/papercex/backend/internal/wallet"
)

// CreateOrderRequest defines the expected JSON body for creating an order
type CreateOrderRequest struct {
	Symbol     string  `json:"symbol"`      // e.g., "BTC"
	Side       string  `json:"side"`        // "BUY" or "SELL"
	Kind       string  `json:"kind"`        // "MARKET" or "LIMIT"
	Quantity   float64 `json:"quantity"`    // amount of the token
	LimitPrice float64 `json:"limit_price"` // required for LIMIT orders
}

// TradeView is everything the trade screen needs for one symbol.
type TradeView struct {
	Symbol   string             `json:"symbol"`
	Price    models.TokenPrice  `json:"price"`
	History  []history.Point    `json:"history"`
	Balances map[string]float64 `json:"balances"`
	Filled   []*models.Order    `json:"filled"`
}

// CreateOrder prices the order at the current market quote and places it.
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	req := new(CreateOrderRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}
	symbol := wallet.Canonical(req.Symbol)
	if symbol == "" {
		return badRequest(c, "Symbol is required")
	}
	if err := h.catalog.CheckListed(c.Context(), symbol); err != nil {
		return h.fail(c, err)
	}

	quote, err := h.prices.FetchPrice(c.Context(), symbol)
	if err != nil {
		return h.fail(c, err)
	}

	order, err := h.trading.PlaceOrder(c.Context(), trading.PlaceOrderRequest{
		UserID:     userID,
		Side:       models.Side(strings.ToUpper(strings.TrimSpace(req.Side))),
		Kind:       models.OrderKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Symbol:     symbol,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	}, quote.Price)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// Trade refreshes the symbol's price, settles any pending orders it
// satisfies and returns the trade screen state. An optional window query
// (e.g. "1h") limits the returned price history.
func (h *Handler) Trade(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	symbol := wallet.Canonical(c.Params("symbol"))
	if symbol == "" || symbol == wallet.Quote {
		return badRequest(c, "Invalid symbol")
	}
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return badRequest(c, "Invalid window, expected a duration like 1h")
		}
		window = d
	}
	if err := h.catalog.CheckListed(c.Context(), symbol); err != nil {
		return h.fail(c, err)
	}

	quote, err := h.prices.FetchPrice(c.Context(), symbol)
	if err != nil {
		return h.fail(c, err)
	}
	filled, err := h.trading.Evaluate(c.Context(), userID, symbol, quote.Price)
	if err != nil {
		return h.fail(c, err)
	}
	w, err := h.trading.Wallet(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	view := TradeView{
		Symbol: symbol,
		Price:  quote,
		Balances: map[string]float64{
			wallet.Quote: w.Balance(wallet.Quote),
			symbol:       w.Balance(symbol),
		},
		Filled: filled,
	}
	if h.history != nil {
		if window > 0 {
			view.History = h.history.Since(symbol, window)
		} else {
			view.History = h.history.Points(symbol)
		}
	}
	if view.History == nil {
		view.History = []history.Point{}
	}
	return c.JSON(view)
}

// GetOrders retrieves the authenticated user's orders, newest first.
func (h *Handler) GetOrders(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	orders, err := h.trading.ListOrders(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	if orders == nil {
		orders = make([]*models.Order, 0)
	}
	return c.JSON(orders)
}

// GetOrderByID retrieves a specific order by its ID.
func (h *Handler) GetOrderByID(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID format")
	}
	order, err := h.trading.GetOrder(c.Context(), userID, orderID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// CancelOrder cancels a pending order and refunds its reservation.
func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID format")
	}
	order, err := h.trading.CancelOrder(c.Context(), userID, orderID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order cancelled successfully", "order": order})
}
