// Package catalog manages the admin-curated list of tradable tokens.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/wallet"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrDuplicateSymbol = errors.New("token symbol already listed")
	ErrTokenNotFound   = errors.New("token not found")
	ErrNotListed       = errors.New("symbol is not listed for trading")
)

// Service wraps token CRUD with validation.
type Service struct {
	store    database.Store
	logger   *zap.Logger
	defaults []string
}

// New returns a catalog. defaults are the market symbols reported while the
// catalog has no enabled tokens.
func New(store database.Store, defaults []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, defaults: defaults}
}

// Create lists a new token. The symbol is stored upper case.
func (s *Service) Create(ctx context.Context, symbol, name string, enabled bool) (*models.Token, error) {
	sym := wallet.Canonical(symbol)
	name = strings.TrimSpace(name)
	switch {
	case sym == "":
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidToken)
	case sym == wallet.Quote:
		return nil, fmt.Errorf("%w: %s is the quote asset", ErrInvalidToken, wallet.Quote)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidToken)
	}

	t := &models.Token{Symbol: sym, Name: name, Enabled: enabled}
	if err := s.store.CreateToken(ctx, t); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateSymbol
		}
		return nil, err
	}
	s.logger.Info("token listed", zap.String("symbol", t.Symbol), zap.Bool("enabled", t.Enabled))
	return t, nil
}

// Update changes the name and/or enabled flag. Nil fields are left as is.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name *string, enabled *bool) (*models.Token, error) {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidToken)
		}
		t.Name = n
	}
	if enabled != nil {
		t.Enabled = *enabled
	}
	t.UpdatedAt = time.Time{} // stamped by the store
	if err := s.store.UpdateToken(ctx, t); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

// Delete removes a token from the catalog. Balances held in it are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteToken(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	s.logger.Info("token delisted", zap.Stringer("token_id", id))
	return nil
}

// List returns every token ordered by symbol.
func (s *Service) List(ctx context.Context) ([]*models.Token, error) {
	return s.store.ListTokens(ctx, false)
}

// ListEnabled returns the tradable tokens ordered by symbol.
func (s *Service) ListEnabled(ctx context.Context) ([]*models.Token, error) {
	return s.store.ListTokens(ctx, true)
}

// MarketSymbols returns the symbols to quote on the market page and the
// price feed. It never fails: store errors and an empty catalog both fall
// back to the defaults.
func (s *Service) MarketSymbols(ctx context.Context) []string {
	tokens, err := s.ListEnabled(ctx)
	if err != nil {
		s.logger.Warn("token catalog unavailable, using defaults", zap.Error(err))
	}
	if len(tokens) == 0 {
		out := make([]string, len(s.defaults))
		copy(out, s.defaults)
		return out
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Symbol)
	}
	return out
}

// CheckListed returns ErrNotListed unless symbol is one of MarketSymbols.
func (s *Service) CheckListed(ctx context.Context, symbol string) error {
	sym := wallet.Canonical(symbol)
	if slices.Contains(s.MarketSymbols(ctx), sym) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotListed, sym)
}
