package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/user/papercex/backend/internal/models"
)

var (
	// ErrRateLimited is returned when the request gate is closed and the
	// cache has nothing to offer.
	ErrRateLimited = errors.New("price requests are rate limited, try again shortly")
	// ErrUpstreamRateLimited is returned by a Source on HTTP 429.
	ErrUpstreamRateLimited = errors.New("price provider rate limit exceeded")
	// ErrNoPrices means no quote could be produced for any requested symbol.
	ErrNoPrices = errors.New("no prices available")
)

// Source fetches one quote from a price provider.
type Source interface {
	Quote(ctx context.Context, symbol string) (models.TokenPrice, error)
}

// Canonical normalizes a symbol to the form used as cache and history key.
func Canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
