package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/papercex/backend/internal/history"
	"github.com/user/papercex/backend/internal/models"
)

const (
	DefaultMinInterval       = 9 * time.Second
	DefaultRateLimitCooldown = 60 * time.Second
	DefaultConcurrency       = 8
)

// Client is a cached, rate-limited fan-out client over a Source.
type Client struct {
	source   Source
	cache    *Cache
	history  *history.Tracker
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration

	minInterval time.Duration
	cooldown    time.Duration
	concurrency int

	mu           sync.Mutex
	limiter      *rate.Limiter
	backoffUntil time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides time.Now for the cache, the request gate and backoff.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithHistory records every successful fetch into h.
func WithHistory(h *history.Tracker) Option {
	return func(c *Client) {
		c.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithCacheTTL sets the freshness window.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithMinInterval sets the minimum time between network batches.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		c.minInterval = d
	}
}

// WithRateLimitCooldown sets how long to stay off the network after a 429.
func WithRateLimitCooldown(d time.Duration) Option {
	return func(c *Client) {
		c.cooldown = d
	}
}

// WithConcurrency caps in-flight requests per batch.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a client over src.
func NewClient(src Source, opts ...Option) *Client {
	c := &Client{
		source:      src,
		logger:      zap.NewNop(),
		now:         time.Now,
		cacheTTL:    DefaultCacheTTL,
		minInterval: DefaultMinInterval,
		cooldown:    DefaultRateLimitCooldown,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = NewCache(c.cacheTTL, c.now)
	c.limiter = rate.NewLimiter(rate.Every(c.minInterval), 1)
	return c
}

// GetCachedPrice returns the last known quote for symbol, fresh or not.
func (c *Client) GetCachedPrice(symbol string) (models.TokenPrice, bool) {
	return c.cache.Get(symbol)
}

// FetchPrice fetches a single symbol through the same cache and gate as
// FetchPrices.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (models.TokenPrice, error) {
	sym := Canonical(symbol)
	prices, err := c.FetchPrices(ctx, []string{sym})
	if err != nil {
		return models.TokenPrice{}, err
	}
	p, ok := prices[sym]
	if !ok {
		return models.TokenPrice{}, fmt.Errorf("%s: %w", sym, ErrNoPrices)
	}
	return p, nil
}

// FetchPrices returns the best available quote for each symbol.
//
// Fresh cache entries never touch the network. Stale or missing symbols are
// fetched concurrently when the request gate allows it; otherwise whatever
// the cache holds is returned. The result is partial on partial failure and
// an error is returned only when it would be empty.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]models.TokenPrice, error) {
	result := make(map[string]models.TokenPrice, len(symbols))
	var stale []string
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		sym := Canonical(s)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}

		if p, ok := c.cache.Fresh(sym); ok {
			result[sym] = p
			continue
		}
		stale = append(stale, sym)
	}
	if len(stale) == 0 {
		return result, nil
	}

	if !c.allow() {
		c.fillFromCache(result, stale)
		if len(result) == 0 {
			return nil, ErrRateLimited
		}
		c.logger.Debug("price request gated, serving cache",
			zap.Strings("symbols", stale), zap.Int("served", len(result)))
		return result, nil
	}

	fetched, errs := c.fanOut(ctx, stale)
	for sym, p := range fetched {
		result[sym] = p
	}

	var failed []string
	for _, sym := range stale {
		if _, ok := fetched[sym]; !ok {
			failed = append(failed, sym)
		}
	}
	if len(failed) > 0 {
		c.fillFromCache(result, failed)
		c.logger.Warn("price fetch partially failed",
			zap.Strings("failed", failed), zap.Error(errors.Join(errs...)))
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoPrices, errors.Join(errs...))
	}
	return result, nil
}

// allow reports whether a network batch may start now.
func (c *Client) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Before(c.backoffUntil) {
		return false
	}
	return c.limiter.AllowN(now, 1)
}

func (c *Client) tripCooldown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(c.cooldown)
	if until.After(c.backoffUntil) {
		c.backoffUntil = until
		c.logger.Warn("price provider rate limited", zap.Time("until", until))
	}
}

func (c *Client) fillFromCache(dst map[string]models.TokenPrice, symbols []string) {
	for _, sym := range symbols {
		if p, ok := c.cache.Get(sym); ok {
			dst[sym] = p
		}
	}
}

func (c *Client) fanOut(ctx context.Context, symbols []string) (map[string]models.TokenPrice, []error) {
	var (
		mu      sync.Mutex
		fetched = make(map[string]models.TokenPrice, len(symbols))
		errs    []error
	)

	workers := c.concurrency
	if workers > len(symbols) {
		workers = len(symbols)
	}
	p := pool.New().WithMaxGoroutines(workers)
	for _, sym := range symbols {
		p.Go(func() {
			price, err := c.source.Quote(ctx, sym)
			if err != nil {
				if errors.Is(err, ErrUpstreamRateLimited) {
					c.tripCooldown()
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sym, err))
				mu.Unlock()
				return
			}
			price.Symbol = sym
			if price.FetchedAt.IsZero() {
				price.FetchedAt = c.now()
			}
			c.cache.Put(price)
			if c.history != nil {
				c.history.AddAt(sym, price.Price, price.FetchedAt)
			}
			mu.Lock()
			fetched[sym] = price
			mu.Unlock()
		})
	}
	p.Wait()
	return fetched, errs
}
