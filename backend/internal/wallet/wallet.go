// Package wallet keeps a user's simulated balances keyed by asset symbol.
//
// Symbols are canonicalized to upper case on every entry point. The wallet
// does not enforce non-negative balances; callers check Covers before a Debit.
package wallet

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the asset every order is priced in.
const Quote = "USDT"

// Seed describes the balances a new wallet starts with.
type Seed struct {
	QuoteBalance float64
	Tokens       []string // seeded at zero
}

// DefaultSeed is 10000 USDT plus zero balances for the initial token set.
func DefaultSeed() Seed {
	return Seed{
		QuoteBalance: 10000,
		Tokens:       []string{"BTC", "ETH", "SOL", "BNB"},
	}
}

// Canonical normalizes an asset symbol.
func Canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Wallet is a mutable balance map. It is not safe for concurrent use; the
// persistence layer serializes access per user.
type Wallet struct {
	seed     Seed
	balances map[string]decimal.Decimal
}

// New returns a wallet holding only the seeded balances.
func New(seed Seed) *Wallet {
	w := &Wallet{seed: seed}
	w.reset()
	return w
}

func (w *Wallet) reset() {
	w.balances = make(map[string]decimal.Decimal, len(w.seed.Tokens)+1)
	w.balances[Quote] = decimal.NewFromFloat(w.seed.QuoteBalance)
	for _, t := range w.seed.Tokens {
		if s := Canonical(t); s != "" && s != Quote {
			w.balances[s] = decimal.Zero
		}
	}
}

// Balance returns the balance for symbol, zero when unknown.
func (w *Wallet) Balance(symbol string) float64 {
	return w.balance(symbol).InexactFloat64()
}

func (w *Wallet) balance(symbol string) decimal.Decimal {
	if b, ok := w.balances[Canonical(symbol)]; ok {
		return b
	}
	return decimal.Zero
}

// SetBalance overwrites the balance for symbol.
func (w *Wallet) SetBalance(symbol string, amount float64) {
	s := Canonical(symbol)
	if s == "" {
		return
	}
	w.balances[s] = decimal.NewFromFloat(amount)
}

// Covers reports whether the balance of symbol is at least amount.
func (w *Wallet) Covers(symbol string, amount decimal.Decimal) bool {
	return w.balance(symbol).GreaterThanOrEqual(amount)
}

// Credit adds amount to symbol.
func (w *Wallet) Credit(symbol string, amount decimal.Decimal) {
	s := Canonical(symbol)
	if s == "" {
		return
	}
	w.balances[s] = w.balance(s).Add(amount)
}

// Debit subtracts amount from symbol without checking coverage.
func (w *Wallet) Debit(symbol string, amount decimal.Decimal) {
	w.Credit(symbol, amount.Neg())
}

// Symbols returns the held symbols in sorted order.
func (w *Wallet) Symbols() []string {
	out := make([]string, 0, len(w.balances))
	for s := range w.balances {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ToMap returns a copy of the balances suitable for persistence.
func (w *Wallet) ToMap() map[string]float64 {
	out := make(map[string]float64, len(w.balances))
	for s, b := range w.balances {
		out[s] = b.InexactFloat64()
	}
	return out
}

// LoadFromMap resets the wallet to its seed and merges every numeric entry of
// m on top, folding key case. Keys whose values are not numeric are skipped
// and returned so the caller can report them.
func (w *Wallet) LoadFromMap(m map[string]any) (skipped []string) {
	w.reset()
	for k, v := range m {
		s := Canonical(k)
		if s == "" {
			skipped = append(skipped, k)
			continue
		}
		d, ok := toDecimal(v)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		w.balances[s] = d
	}
	sort.Strings(skipped)
	return skipped
}

// FromMap builds a seeded wallet and loads m into it.
func FromMap(seed Seed, m map[string]any) (*Wallet, []string) {
	w := New(seed)
	skipped := w.LoadFromMap(m)
	return w, skipped
}

type floatNumber interface {
	Float64() (float64, error)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	case floatNumber:
		f, err := n.Float64()
		if err != nil {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
	return decimal.Zero, false
}
