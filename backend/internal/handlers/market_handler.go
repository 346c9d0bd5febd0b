package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MarketEntry is one row of the public market list.
type MarketEntry struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	Priced    bool    `json:"priced"`
}

// CreateTokenRequest defines the expected JSON body for listing a token
type CreateTokenRequest struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"` // defaults to true
}

// UpdateTokenRequest leaves nil fields unchanged.
type UpdateTokenRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

// GetMarket lists the tradable symbols with their latest quotes. Symbols the
// price client could not serve are returned unpriced.
func (h *Handler) GetMarket(c *fiber.Ctx) error {
	symbols := h.catalog.MarketSymbols(c.Context())
	names := make(map[string]string, len(symbols))
	if tokens, err := h.catalog.ListEnabled(c.Context()); err == nil {
		for _, t := range tokens {
			names[t.Symbol] = t.Name
		}
	}

	quotes, err := h.prices.FetchPrices(c.Context(), symbols)
	if err != nil {
		return h.fail(c, err)
	}

	entries := make([]MarketEntry, 0, len(symbols))
	for _, sym := range symbols {
		e := MarketEntry{Symbol: sym, Name: names[sym]}
		if q, ok := quotes[sym]; ok {
			e.Price = q.Price
			e.Change24h = q.Change24h
			e.Volume24h = q.Volume24h
			e.Priced = true
			if e.Name == "" {
				e.Name = q.Name
			}
		}
		entries = append(entries, e)
	}
	return c.JSON(entries)
}

// ListTokens returns the full catalog, enabled or not.
func (h *Handler) ListTokens(c *fiber.Ctx) error {
	tokens, err := h.catalog.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(tokens)
}

func (h *Handler) CreateToken(c *fiber.Ctx) error {
	req := new(CreateTokenRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	token, err := h.catalog.Create(c.Context(), req.Symbol, req.Name, enabled)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

func (h *Handler) UpdateToken(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid token ID format")
	}
	req := new(UpdateTokenRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}
	token, err := h.catalog.Update(c.Context(), id, req.Name, req.Enabled)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(token)
}

func (h *Handler) DeleteToken(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid token ID format")
	}
	if err := h.catalog.Delete(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("token deleted by admin", zap.Stringer("token_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}
