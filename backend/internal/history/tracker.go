// Package history holds bounded, in-memory time series keyed by string.
//
// It backs both the per-symbol price history (charts) and the per-user
// portfolio value history (revenue over 1/3/7 days). Nothing here is
// persisted; a restart starts every series empty.
package history

import (
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	PriceCapacity     = 50
	PortfolioCapacity = 200
)

// Point is a single sample.
type Point struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Tracker stores at most capacity points per key, ordered by timestamp.
type Tracker struct {
	mu        sync.RWMutex
	capacity  int
	now       func() time.Time
	normalize func(string) string
	series    map[string][]Point
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithKeyNormalizer maps every key before use.
func WithKeyNormalizer(fn func(string) string) Option {
	return func(t *Tracker) {
		t.normalize = fn
	}
}

// New creates a tracker. A non-positive capacity is treated as 1.
func New(capacity int, opts ...Option) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	t := &Tracker{
		capacity:  capacity,
		now:       time.Now,
		normalize: func(s string) string { return s },
		series:    make(map[string][]Point),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewPriceHistory tracks prices per upper-cased symbol.
func NewPriceHistory(opts ...Option) *Tracker {
	opts = append([]Option{WithKeyNormalizer(func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})}, opts...)
	return New(PriceCapacity, opts...)
}

// NewPortfolioHistory tracks total portfolio value per user id.
func NewPortfolioHistory(opts ...Option) *Tracker {
	return New(PortfolioCapacity, opts...)
}

// Add records value at the current time.
func (t *Tracker) Add(key string, value float64) {
	t.AddAt(key, value, t.now())
}

// AddAt records value at an explicit timestamp. Out-of-order inserts are
// sorted into place; the oldest sample is evicted once over capacity.
func (t *Tracker) AddAt(key string, value float64, at time.Time) {
	key = t.normalize(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	pts := append(t.series[key], Point{Value: value, At: at})
	slices.SortStableFunc(pts, func(a, b Point) int {
		return a.At.Compare(b.At)
	})
	if over := len(pts) - t.capacity; over > 0 {
		pts = slices.Delete(pts, 0, over)
	}
	t.series[key] = pts
}

// Points returns a copy of the samples for key, oldest first.
func (t *Tracker) Points(key string) []Point {
	key = t.normalize(key)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.series[key])
}

// Values returns the sample values for key, oldest first.
func (t *Tracker) Values(key string) []float64 {
	key = t.normalize(key)
	t.mu.RLock()
	defer t.mu.RUnlock()

	pts := t.series[key]
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}

// Since returns the samples no older than window.
func (t *Tracker) Since(key string, window time.Duration) []Point {
	key = t.normalize(key)
	cutoff := t.now().Add(-window)

	t.mu.RLock()
	defer t.mu.RUnlock()

	pts := t.series[key]
	i, _ := slices.BinarySearchFunc(pts, cutoff, func(p Point, c time.Time) int {
		return p.At.Compare(c)
	})
	return slices.Clone(pts[i:])
}

// ValueAt returns the newest sample at or before now-age. When every sample
// is newer than that, the oldest sample is returned instead. ok is false
// only when the series is empty.
func (t *Tracker) ValueAt(key string, age time.Duration) (value float64, ok bool) {
	key = t.normalize(key)
	target := t.now().Add(-age)

	t.mu.RLock()
	defer t.mu.RUnlock()

	pts := t.series[key]
	if len(pts) == 0 {
		return 0, false
	}
	if p, found := atOrBefore(pts, target); found {
		return p.Value, true
	}
	return pts[0].Value, true
}

// Revenue is current minus the newest sample at or before now-period, or 0
// when no sample is that old.
func (t *Tracker) Revenue(key string, current float64, period time.Duration) float64 {
	key = t.normalize(key)
	target := t.now().Add(-period)

	t.mu.RLock()
	defer t.mu.RUnlock()

	p, found := atOrBefore(t.series[key], target)
	if !found {
		return 0
	}
	return current - p.Value
}

// Clear drops the series for key.
func (t *Tracker) Clear(key string) {
	key = t.normalize(key)
	t.mu.Lock()
	delete(t.series, key)
	t.mu.Unlock()
}

// Reset drops every series.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.series = make(map[string][]Point)
	t.mu.Unlock()
}

// atOrBefore expects pts sorted by time.
func atOrBefore(pts []Point, target time.Time) (Point, bool) {
	// first index strictly after target
	i, _ := slices.BinarySearchFunc(pts, target, func(p Point, c time.Time) int {
		if p.At.After(c) {
			return 1
		}
		return -1
	})
	if i == 0 {
		return Point{}, false
	}
	return pts[i-1], true
}
