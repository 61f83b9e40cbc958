// Package history maintains bounded in-memory price history per market and
// derives 24-hour price changes from it.
//
// History is process-lifetime-only state: a restart resets every sequence,
// and the first post-restart change for each market reads as 0. This is an
// accepted limitation, not a defect to mask.
package history

import (
	"math"
	"sync"
	"time"
)

const (
	// window is how far back a change baseline may reach.
	window = 24 * time.Hour

	// maxEntries bounds each market's retained history independently of the
	// time window; the oldest entries are dropped first.
	maxEntries = 100

	// changeTTL is how long a computed change stays valid before it is
	// recomputed, so polling faster than the change is meaningful does not
	// redo the work on every render.
	changeTTL = 5 * time.Minute
)

// PricePoint records a single price observation at a point in time.
type PricePoint struct {
	Price float64
	Time  time.Time
}

// cachedChange is a computed 24h change with its computation time.
type cachedChange struct {
	value      float64
	computedAt time.Time
}

// Tracker maintains a sliding window of recent prices for each market and
// computes 24-hour percentage changes against the oldest point in the window.
type Tracker struct {
	mu      sync.RWMutex
	history map[string][]PricePoint
	changes map[string]cachedChange
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		history: make(map[string][]PricePoint),
		changes: make(map[string]cachedChange),
	}
}

// Observe records price for marketID at ts and returns the 24-hour
// percentage change, rounded to two decimals.
//
// The first-ever observation of a market has no baseline and reports 0.
// Otherwise the baseline is the oldest point remaining after pruning entries
// older than 24 hours. A change computed within the last five minutes is
// returned from cache without recomputation.
func (t *Tracker) Observe(marketID string, price float64, ts time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.changes[marketID]; ok && ts.Sub(c.computedAt) < changeTTL {
		t.append(marketID, price, ts)
		return c.value
	}

	pts := t.history[marketID]
	if len(pts) == 0 {
		t.append(marketID, price, ts)
		t.changes[marketID] = cachedChange{value: 0, computedAt: ts}
		return 0
	}

	// Prune entries outside the 24h window before picking a baseline.
	cutoff := ts.Add(-window)
	i := 0
	for i < len(pts) && pts[i].Time.Before(cutoff) {
		i++
	}
	pts = pts[i:]
	t.history[marketID] = pts

	var change float64
	if len(pts) > 0 && pts[0].Price != 0 {
		change = round2((price - pts[0].Price) / pts[0].Price * 100)
	}

	t.append(marketID, price, ts)
	t.changes[marketID] = cachedChange{value: change, computedAt: ts}
	return change
}

// History returns a copy of the retained price history for the given market.
// The returned slice is safe to mutate.
func (t *Tracker) History(marketID string) []PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.history[marketID]
	if len(src) == 0 {
		return nil
	}
	out := make([]PricePoint, len(src))
	copy(out, src)
	return out
}

// MarketsTracked returns the number of markets with retained history.
func (t *Tracker) MarketsTracked() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}

// Reset drops all history and cached changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = make(map[string][]PricePoint)
	t.changes = make(map[string]cachedChange)
}

// append adds a point and enforces maxEntries. The caller must hold t.mu.
func (t *Tracker) append(marketID string, price float64, ts time.Time) {
	pts := append(t.history[marketID], PricePoint{Price: price, Time: ts})
	if len(pts) > maxEntries {
		pts = pts[len(pts)-maxEntries:]
	}
	t.history[marketID] = pts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
