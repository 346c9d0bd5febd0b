// Package trading implements simulated order placement, limit-order
// fulfillment, cancellation, peer transfers and portfolio valuation on top
// of the persistence layer.
//
// Every wallet mutation happens inside a single unit of work that holds the
// user's wallet lock, so balance checks and writes cannot interleave.
package trading

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/history"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/wallet"
)

var (
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderForbidden      = errors.New("order belongs to another user")
	ErrNotCancellable      = errors.New("only pending orders can be cancelled")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidTransfer     = errors.New("invalid transfer")
	ErrRecipientNotFound   = errors.New("recipient not found")
)

// PriceFetcher is the part of the price client the service needs.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]models.TokenPrice, error)
}

// Service is safe for concurrent use.
type Service struct {
	store     database.Store
	prices    PriceFetcher
	portfolio *history.Tracker
	seed      wallet.Seed
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithSeed sets the balances assumed for wallets missing seeded keys.
func WithSeed(seed wallet.Seed) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// NewService wires a Service. portfolio may be nil to disable revenue
// tracking.
func NewService(store database.Store, prices PriceFetcher, portfolio *history.Tracker, opts ...Option) *Service {
	s := &Service{
		store:     store,
		prices:    prices,
		portfolio: portfolio,
		seed:      wallet.DefaultSeed(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// walletFrom builds a wallet from persisted data, reporting skipped entries.
func (s *Service) walletFrom(userID uuid.UUID, raw map[string]any) *wallet.Wallet {
	w, skipped := wallet.FromMap(s.seed, raw)
	if len(skipped) > 0 {
		s.logger.Warn("skipping malformed wallet entries",
			zap.Stringer("user_id", userID), zap.Strings("keys", skipped))
	}
	return w
}

func (s *Service) lockWallet(ctx context.Context, tx database.Tx, userID uuid.UUID) (*wallet.Wallet, error) {
	raw, err := tx.LockWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.walletFrom(userID, raw), nil
}

// Wallet returns the user's current balances.
func (s *Service) Wallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	raw, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.walletFrom(userID, raw), nil
}
