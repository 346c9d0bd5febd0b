package pricing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/user/papercex/backend/internal/models"
)

const (
	DefaultLiveCoinWatchURL = "https://api.livecoinwatch.com"
	defaultHTTPTimeout      = 10 * time.Second
)

// LiveCoinWatchSource quotes coins through the LiveCoinWatch REST API.
type LiveCoinWatchSource struct {
	baseURL    string
	apiKey     string
	currency   string
	httpClient *http.Client
}

// LiveCoinWatchOption configures a LiveCoinWatchSource.
type LiveCoinWatchOption func(*LiveCoinWatchSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) LiveCoinWatchOption {
	return func(s *LiveCoinWatchSource) {
		s.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) LiveCoinWatchOption {
	return func(s *LiveCoinWatchSource) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// NewLiveCoinWatchSource creates a source. An empty baseURL uses the public API.
func NewLiveCoinWatchSource(baseURL, apiKey string, opts ...LiveCoinWatchOption) *LiveCoinWatchSource {
	if baseURL == "" {
		baseURL = DefaultLiveCoinWatchURL
	}
	s := &LiveCoinWatchSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		currency: "USD",
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type coinRequest struct {
	Currency string `json:"currency"`
	Code     string `json:"code"`
	Meta     bool   `json:"meta"`
}

type coinResponse struct {
	Name   string   `json:"name"`
	Rate   *float64 `json:"rate"`
	Volume float64  `json:"volume"`
	Delta  struct {
		Day float64 `json:"day"`
	} `json:"delta"`
}

// Quote implements Source.
func (s *LiveCoinWatchSource) Quote(ctx context.Context, symbol string) (models.TokenPrice, error) {
	sym := Canonical(symbol)
	body, err := json.Marshal(coinRequest{Currency: s.currency, Code: sym, Meta: true})
	if err != nil {
		return models.TokenPrice{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/coins/single", bytes.NewReader(body))
	if err != nil {
		return models.TokenPrice{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.TokenPrice{}, fmt.Errorf("request %s: %w", sym, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.TokenPrice{}, ErrUpstreamRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return models.TokenPrice{}, fmt.Errorf("price provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out coinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.TokenPrice{}, fmt.Errorf("decode %s: %w", sym, err)
	}
	if out.Rate == nil {
		return models.TokenPrice{}, fmt.Errorf("%s: response has no rate", sym)
	}

	name := out.Name
	if name == "" {
		name = sym
	}
	var change float64
	if out.Delta.Day != 0 {
		// delta.day is a multiplier relative to 24h ago
		change = (out.Delta.Day - 1) * 100
	}
	return models.TokenPrice{
		Symbol:    sym,
		Name:      name,
		Price:     *out.Rate,
		Change24h: change,
		Volume24h: out.Volume,
	}, nil
}
