package wallet

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsDefaults(t *testing.T) {
	w := New(DefaultSeed())

	assert.Equal(t, 10000.0, w.Balance("USDT"))
	for _, s := range []string{"BTC", "ETH", "SOL", "BNB"} {
		assert.Zero(t, w.Balance(s), s)
	}
	assert.Equal(t, []string{"BNB", "BTC", "ETH", "SOL", "USDT"}, w.Symbols())
}

func TestBalanceIsCaseInsensitive(t *testing.T) {
	w := New(DefaultSeed())
	w.SetBalance("btc", 1.5)

	assert.Equal(t, 1.5, w.Balance("BTC"))
	assert.Equal(t, 1.5, w.Balance(" Btc "))
	assert.Zero(t, w.Balance("doge"))
}

func TestCreditDebitExact(t *testing.T) {
	w := New(DefaultSeed())

	w.Debit("usdt", decimal.RequireFromString("5000"))
	w.Credit("btc", decimal.RequireFromString("0.1"))
	w.Credit("btc", decimal.RequireFromString("0.2"))

	assert.Equal(t, 5000.0, w.Balance(Quote))
	assert.Equal(t, 0.3, w.Balance("BTC"))
}

func TestCovers(t *testing.T) {
	w := New(DefaultSeed())

	assert.True(t, w.Covers(Quote, decimal.NewFromInt(10000)))
	assert.False(t, w.Covers(Quote, decimal.RequireFromString("10000.01")))
	assert.False(t, w.Covers("ETH", decimal.RequireFromString("0.0001")))
}

func TestDebitAllowsNegative(t *testing.T) {
	w := New(DefaultSeed())
	w.Debit("SOL", decimal.NewFromInt(2))

	assert.Equal(t, -2.0, w.Balance("SOL"))
}

func TestRoundTrip(t *testing.T) {
	w := New(DefaultSeed())
	w.SetBalance("USDT", 1234.5)
	w.SetBalance("BTC", 0.25)
	w.SetBalance("DOGE", 42)

	persisted := make(map[string]any)
	for k, v := range w.ToMap() {
		persisted[k] = v
	}

	restored, skipped := FromMap(DefaultSeed(), persisted)
	require.Empty(t, skipped)
	assert.Equal(t, w.ToMap(), restored.ToMap())
}

func TestRoundTripThroughJSON(t *testing.T) {
	w := New(DefaultSeed())
	w.SetBalance("ETH", 3.75)

	raw, err := json.Marshal(w.ToMap())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, skipped := FromMap(DefaultSeed(), decoded)
	require.Empty(t, skipped)
	assert.Equal(t, w.ToMap(), restored.ToMap())
}

func TestLoadFromMapMergesAndSkips(t *testing.T) {
	w := New(DefaultSeed())
	w.SetBalance("BTC", 9)

	skipped := w.LoadFromMap(map[string]any{
		"usdt":  500.0,
		"ada":   int64(7),
		"xrp":   json.Number("2.5"),
		"bad":   "lots",
		"worse": nil,
	})

	assert.Equal(t, []string{"bad", "worse"}, skipped)
	assert.Equal(t, 500.0, w.Balance("USDT"))
	assert.Equal(t, 7.0, w.Balance("ADA"))
	assert.Equal(t, 2.5, w.Balance("XRP"))
	// reset to seed before merging
	assert.Zero(t, w.Balance("BTC"))
	assert.Zero(t, w.Balance("BAD"))
}

func TestLoadFromMapKeepsSeedForMissingKeys(t *testing.T) {
	w, _ := FromMap(DefaultSeed(), map[string]any{"BTC": 1.0})

	assert.Equal(t, 10000.0, w.Balance("USDT"))
	assert.Equal(t, 1.0, w.Balance("BTC"))
	assert.Contains(t, w.ToMap(), "SOL")
}
