package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/auth"
	"github.com/user/papercex/backend/internal/catalog"
	"github.com/user/papercex/backend/internal/config"
	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/handlers"
	"github.com/user/papercex/backend/internal/history"
	"github.com/user/papercex/backend/internal/logger"
	"github.com/user/papercex/backend/internal/pricing"
	"github.com/user/papercex/backend/internal/ticker"
	"github.com/user/papercex/backend/internal/trading"
	"github.com/user/papercex/backend/internal/wallet"
	internalws "github.com/user/papercex/backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.Path("conf", config.GetEnv())
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting papercex", zap.String("env", cfg.Env), zap.String("config", path))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	seed := wallet.Seed{QuoteBalance: cfg.Wallet.QuoteBalance, Tokens: cfg.Wallet.Tokens}
	priceHistory := history.NewPriceHistory()
	portfolioHistory := history.NewPortfolioHistory()

	prices := pricing.NewClient(newSource(cfg.Pricing),
		pricing.WithLogger(log.Named("pricing")),
		pricing.WithHistory(priceHistory),
		pricing.WithCacheTTL(cfg.Pricing.CacheTTL),
		pricing.WithMinInterval(cfg.Pricing.MinInterval),
		pricing.WithRateLimitCooldown(cfg.Pricing.RateLimitCooldown),
		pricing.WithConcurrency(cfg.Pricing.Concurrency),
	)
	tokens := catalog.New(store, cfg.Market.DefaultSymbols, log.Named("catalog"))
	trader := trading.NewService(store, prices, portfolioHistory,
		trading.WithLogger(log.Named("trading")),
		trading.WithSeed(seed),
	)

	refresher := ticker.NewRefresher(tokens, prices, cfg.Pricing.RefreshInterval, log.Named("ticker"))
	hub := internalws.NewHub(log.Named("ws"))
	h := handlers.New(handlers.Deps{
		Store:        store,
		Auth:         auth.NewManager(cfg.Auth, log),
		Trading:      trader,
		Catalog:      tokens,
		Prices:       prices,
		PriceHistory: priceHistory,
		Hub:          hub,
		Seed:         seed,
		Logger:       log.Named("http"),
	})
	if cfg.Auth.AdminPassword == "" {
		log.Warn("admin password not configured, admin account is not seeded",
			zap.String("admin_email", cfg.Auth.AdminEmail))
	} else if _, err := h.SeedAdmin(ctx, cfg.Auth); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	go refresher.Run(ctx)
	go hub.Run(ctx, refresher.Updates())
	app := handlers.NewApp(h)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("address", cfg.Server.Address))
		errCh <- app.Listen(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Database, log *zap.Logger) (database.Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return database.NewMemoryStore(), nil
	case "postgres":
		pool, err := database.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := database.Migrate(ctx, cfg.DSN, log); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return database.NewPostgresStore(pool, log.Named("db")), nil
	}
	return nil, errors.New("unknown database driver " + cfg.Driver)
}

func newSource(cfg config.Pricing) pricing.Source {
	if cfg.Source == "livecoinwatch" {
		return pricing.NewLiveCoinWatchSource(cfg.BaseURL, cfg.APIKey, pricing.WithTimeout(cfg.HTTPTimeout))
	}
	return pricing.NewSimulatedSource(pricing.DefaultSimulatedPrices(), uint64(time.Now().UnixNano()))
}
