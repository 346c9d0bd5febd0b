// Package handlers exposes the exchange over HTTP and WebSocket.
package handlers

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/auth"
	"github.com/user/papercex/backend/internal/catalog"
	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/history"
	"github.com/user/papercex/backend/internal/middleware"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/pricing"
	"github.com/user/papercex/backend/internal/trading"
	"github.com/user/papercex/backend/internal/wallet"
	internalws "github.com/user/papercex/backend/internal/websocket"
)

// Prices is the read side of the price client.
type Prices interface {
	FetchPrice(ctx context.Context, symbol string) (models.TokenPrice, error)
	FetchPrices(ctx context.Context, symbols []string) (map[string]models.TokenPrice, error)
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Store        database.Store
	Auth         *auth.Manager
	Trading      *trading.Service
	Catalog      *catalog.Service
	Prices       Prices
	PriceHistory *history.Tracker
	Hub          *internalws.Hub
	Seed         wallet.Seed
	Logger       *zap.Logger
}

type Handler struct {
	store   database.Store
	auth    *auth.Manager
	trading *trading.Service
	catalog *catalog.Service
	prices  Prices
	history *history.Tracker
	hub     *internalws.Hub
	seed    wallet.Seed
	logger  *zap.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:   d.Store,
		auth:    d.Auth,
		trading: d.Trading,
		catalog: d.Catalog,
		prices:  d.Prices,
		history: d.PriceHistory,
		hub:     d.Hub,
		seed:    d.Seed,
		logger:  logger,
	}
}

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "papercex",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(h.logger))
	h.Register(app)
	return app
}

// Register mounts the routes on app.
func (h *Handler) Register(app *fiber.App) {
	// --- WebSocket Routes ---
	wsGroup := app.Group("/ws")
	wsGroup.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsGroup.Get("/prices", websocket.New(h.PriceFeed))

	// --- API Routes ---
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("papercex API is healthy!")
	})
	api.Get("/market", h.GetMarket)
	api.Get("/book/:symbol", h.GetOrderBookDepth)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", h.Signup)
	authGroup.Post("/login", h.Login)

	// --- Protected Routes ---
	api.Use(middleware.Protected(h.auth))

	api.Get("/me", h.Me)
	api.Get("/wallet", h.GetWallet)
	api.Get("/trade/:symbol", h.Trade)

	ordersGroup := api.Group("/orders")
	ordersGroup.Post("/", h.CreateOrder)
	ordersGroup.Get("/", h.GetOrders)
	ordersGroup.Get("/:id", h.GetOrderByID)
	ordersGroup.Delete("/:id", h.CancelOrder)

	api.Get("/portfolio", h.GetPortfolio)
	api.Post("/transfers", h.Transfer)

	admin := api.Group("/admin", middleware.AdminOnly(h.auth))
	admin.Get("/tokens", h.ListTokens)
	admin.Post("/tokens", h.CreateToken)
	admin.Put("/tokens/:id", h.UpdateToken)
	admin.Delete("/tokens/:id", h.DeleteToken)
}

// fail maps a domain error to a status code and the error JSON body.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, trading.ErrInvalidOrder),
		errors.Is(err, trading.ErrInvalidTransfer),
		errors.Is(err, trading.ErrInsufficientBalance),
		errors.Is(err, trading.ErrNotCancellable),
		errors.Is(err, catalog.ErrInvalidToken),
		errors.Is(err, auth.ErrPasswordTooShort):
		status = fiber.StatusBadRequest
	case errors.Is(err, trading.ErrOrderNotFound),
		errors.Is(err, trading.ErrUserNotFound),
		errors.Is(err, trading.ErrRecipientNotFound),
		errors.Is(err, catalog.ErrTokenNotFound),
		errors.Is(err, catalog.ErrNotListed):
		status = fiber.StatusNotFound
	case errors.Is(err, trading.ErrOrderForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, catalog.ErrDuplicateSymbol):
		status = fiber.StatusConflict
	case errors.Is(err, pricing.ErrRateLimited):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, pricing.ErrNoPrices):
		status = fiber.StatusServiceUnavailable
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
}
