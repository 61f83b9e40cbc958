// Package mapper converts upstream market records into the application's
// normalized shape, computing derived display metrics along the way.
package mapper

import (
	"fmt"
	"math"
	"time"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/history"
)

const (
	// priceFloor and priceCeil clamp derived outcome prices so a pool
	// imbalance never produces degenerate all-or-nothing pricing.
	priceFloor = 0.01
	priceCeil  = 0.99

	// volume24hShare estimates 24h volume as a share of total volume when
	// the provider omits it. A rough heuristic, kept for display continuity.
	volume24hShare = 0.2

	// highVolumeThreshold and highLiquidityThreshold gate the volume and
	// liquidity tags.
	highVolumeThreshold    = 100_000
	highLiquidityThreshold = 50_000
)

// Mapper transforms upstream records into normalized markets. It consults a
// shared history.Tracker for 24-hour price changes, so one Mapper instance
// should live as long as the gateway it serves.
type Mapper struct {
	tracker *history.Tracker
	now     func() time.Time
}

// New creates a Mapper backed by the given tracker.
func New(tracker *history.Tracker) *Mapper {
	return &Mapper{
		tracker: tracker,
		now:     time.Now,
	}
}

// Map converts one upstream record into a normalized Market.
//
// A record with no outcomes cannot be priced and returns
// domain.ErrNoOutcomes; callers exclude such records from results instead of
// failing the batch. Every other absent upstream value is replaced with a
// documented default (probability 0.5, empty description, General category).
func (mp *Mapper) Map(m *domain.UpstreamMarket) (domain.Market, error) {
	if len(m.Outcomes) == 0 {
		return domain.Market{}, fmt.Errorf("mapper: market %s: %w", m.ID, domain.ErrNoOutcomes)
	}

	now := mp.now()
	prices := derivePrices(m)

	// 24h change is tracked for the first outcome; in a two-outcome market
	// the second outcome moves opposite by construction.
	priceChange := mp.tracker.Observe(m.ID, prices[0], now)

	volume24h := m.Volume24h
	if volume24h == 0 {
		volume24h = m.Volume * volume24hShare
	}

	outcomes := make([]domain.Outcome, len(m.Outcomes))
	for i, name := range m.Outcomes {
		change := priceChange
		if i > 0 {
			change = -priceChange
		}
		outcomes[i] = domain.Outcome{
			ID:             fmt.Sprintf("%s-outcome-%d", m.ID, i),
			Name:           name,
			Probability:    prices[i],
			CurrentPrice:   prices[i],
			Volume:         m.Volume * prices[i],
			Color:          OutcomeColor(name),
			PriceChange24h: change,
		}
	}

	category := DeriveCategory(m)

	slug := m.Slug
	if slug == "" {
		slug = "market-" + m.ID
	}

	return domain.Market{
		ID:             m.ID,
		Slug:           slug,
		Question:       m.Question,
		Description:    m.Description,
		Category:       category,
		Outcomes:       outcomes,
		Volume:         m.Volume,
		Volume24h:      volume24h,
		Liquidity:      m.Liquidity,
		EndDate:        m.EndTime,
		Resolved:       m.Status == "resolved",
		Creator:        m.Creator,
		CreatedAt:      m.CreatedAt,
		PriceChange24h: priceChange,
		SentimentScore: sentimentScore(m, prices, now),
		Tags:           deriveTags(m, category, now),
		External: domain.ExternalData{
			Source:       "polymarket-builder",
			OriginalID:   m.ID,
			ConditionID:  m.ConditionID,
			Status:       m.Status,
			PoolBalances: m.PoolBalances,
		},
	}, nil
}

// derivePrices computes per-outcome prices.
//
// Pool balances are the primary signal: price = balance/total, clamped to
// [0.01, 0.99]. Without balances, a positive total volume applies a
// volume-scaled bias toward the first outcome (up to +0.3 at 100k volume)
// with the residual split equally. With neither signal, probability is split
// equally.
func derivePrices(m *domain.UpstreamMarket) []float64 {
	n := len(m.Outcomes)

	if len(m.PoolBalances) == n {
		var total float64
		for _, b := range m.PoolBalances {
			total += b
		}
		if total > 0 {
			prices := make([]float64, n)
			for i, b := range m.PoolBalances {
				prices[i] = clamp(b/total, priceFloor, priceCeil)
			}
			return prices
		}
	}

	if m.Volume > 0 && n > 1 {
		bias := math.Min(0.3, m.Volume/100_000)
		first := 0.5 + bias
		rest := (1 - first) / float64(n-1)
		prices := make([]float64, n)
		prices[0] = first
		for i := 1; i < n; i++ {
			prices[i] = rest
		}
		return prices
	}

	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 1 / float64(n)
	}
	return prices
}

// sentimentScore blends price skew, volume, liquidity, and time-to-resolution
// into a 0-100 display metric.
func sentimentScore(m *domain.UpstreamMarket, prices []float64, now time.Time) int {
	score := 50.0

	if len(prices) > 0 {
		skew := (prices[0] - 0.5) * 2 // -1 to 1
		score += skew * 20
	}

	score += math.Min(1, m.Volume/1_000_000) * 15
	score += math.Min(1, m.Liquidity/500_000) * 10

	if !m.EndTime.IsZero() {
		daysLeft := math.Max(0, m.EndTime.Sub(now).Hours()/24)
		if daysLeft < 7 {
			score += 10
		} else if daysLeft > 30 {
			score -= 5
		}
	}

	return int(math.Round(clamp(score, 0, 100)))
}

// deriveTags builds the display tag set: category (unless General), outcome
// names, status, a recency tag, and volume/liquidity tags. Insertion order is
// preserved so output is deterministic.
func deriveTags(m *domain.UpstreamMarket, category domain.Category, now time.Time) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if category != domain.CategoryGeneral {
		add(string(category))
	}
	for _, o := range m.Outcomes {
		add(o)
	}
	add(m.Status)

	if !m.EndTime.IsZero() {
		daysLeft := math.Max(0, m.EndTime.Sub(now).Hours()/24)
		switch {
		case daysLeft < 1:
			add("Ending Today")
		case daysLeft < 3:
			add("Ending Soon")
		case daysLeft < 7:
			add("This Week")
		}
	}

	if m.Volume > highVolumeThreshold {
		add("High Volume")
	}
	if m.Liquidity > highLiquidityThreshold {
		add("High Liquidity")
	}

	return tags
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
