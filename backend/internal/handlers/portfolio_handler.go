package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/user/papercex/backend/internal/middleware"
	"github.com/user/papercex/backend/internal/trading"
)

// TransferRequest defines the expected JSON body for a token transfer
type TransferRequest struct {
	Recipient string  `json:"recipient"` // username
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
}

// GetWallet returns the raw balances of the authenticated user.
func (h *Handler) GetWallet(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.trading.Wallet(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"balances": w.ToMap()})
}

// GetPortfolio values the user's holdings and reports revenue.
func (h *Handler) GetPortfolio(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	summary, err := h.trading.Portfolio(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summary)
}

// Transfer sends tokens to another user by username.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	req := new(TransferRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}
	receipt, err := h.trading.Transfer(c.Context(), trading.TransferRequest{
		SenderID:  userID,
		Recipient: req.Recipient,
		Symbol:    req.Symbol,
		Amount:    req.Amount,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(receipt)
}
