package mapper

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/history"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper() *Mapper {
	mp := New(history.NewTracker())
	mp.now = func() time.Time { return testNow }
	return mp
}

func yesNoMarket(id string, pool []float64) *domain.UpstreamMarket {
	return &domain.UpstreamMarket{
		ID:           id,
		Slug:         id + "-slug",
		Question:     "Will it happen?",
		Outcomes:     []string{"YES", "NO"},
		PoolBalances: pool,
		Volume:       250_000,
		Liquidity:    80_000,
		Status:       "active",
		Creator:      "0xabc",
		CreatedAt:    testNow.Add(-72 * time.Hour),
		EndTime:      testNow.Add(240 * time.Hour),
	}
}

func TestPoolPriceBounds(t *testing.T) {
	tests := []struct {
		name string
		pool []float64
	}{
		{"balanced", []float64{500, 500}},
		{"skewed", []float64{900, 100}},
		{"extreme", []float64{9999, 1}},
		{"inverse extreme", []float64{1, 9999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := newTestMapper()
			m, err := mp.Map(yesNoMarket("m-"+tt.name, tt.pool))
			if err != nil {
				t.Fatalf("Map failed: %v", err)
			}

			var sum float64
			for _, o := range m.Outcomes {
				if o.Probability < 0.01 || o.Probability > 0.99 {
					t.Errorf("outcome %s probability %v out of [0.01, 0.99]", o.Name, o.Probability)
				}
				sum += o.Probability
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("two-outcome probabilities sum to %v, want 1.0", sum)
			}
		})
	}
}

func TestVolumeBiasHeuristic(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID:       "m-bias",
		Question: "q",
		Outcomes: []string{"YES", "NO"},
		Volume:   10_000, // bias = 0.1
		Status:   "active",
		EndTime:  testNow.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	if got := m.Outcomes[0].Probability; math.Abs(got-0.6) > 1e-9 {
		t.Errorf("first outcome probability = %v, want 0.6", got)
	}
	if got := m.Outcomes[1].Probability; math.Abs(got-0.4) > 1e-9 {
		t.Errorf("second outcome probability = %v, want 0.4", got)
	}
}

func TestVolumeBiasCapped(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID:       "m-cap",
		Question: "q",
		Outcomes: []string{"A", "B", "C"},
		Volume:   5_000_000, // bias capped at 0.3
		Status:   "active",
		EndTime:  testNow.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	if got := m.Outcomes[0].Probability; math.Abs(got-0.8) > 1e-9 {
		t.Errorf("first outcome probability = %v, want 0.8", got)
	}
	// Residual 0.2 split across two outcomes.
	if got := m.Outcomes[1].Probability; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("second outcome probability = %v, want 0.1", got)
	}
}

func TestEqualSplitWithoutSignal(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID:       "m-eq",
		Question: "q",
		Outcomes: []string{"A", "B", "C", "D"},
		Status:   "active",
		EndTime:  testNow.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	for _, o := range m.Outcomes {
		if math.Abs(o.Probability-0.25) > 1e-9 {
			t.Errorf("outcome %s probability = %v, want 0.25", o.Name, o.Probability)
		}
	}
}

func TestNoOutcomesExcluded(t *testing.T) {
	mp := newTestMapper()
	_, err := mp.Map(&domain.UpstreamMarket{ID: "m-none", Question: "q", Status: "active"})
	if !errors.Is(err, domain.ErrNoOutcomes) {
		t.Errorf("expected ErrNoOutcomes, got %v", err)
	}
}

func TestSentimentScoreBounds(t *testing.T) {
	tests := []struct {
		name   string
		market *domain.UpstreamMarket
	}{
		{"bullish extreme", &domain.UpstreamMarket{
			ID: "s1", Question: "q", Outcomes: []string{"YES", "NO"},
			PoolBalances: []float64{9999, 1},
			Volume:       50_000_000, Liquidity: 10_000_000,
			Status: "active", EndTime: testNow.Add(24 * time.Hour),
		}},
		{"bearish extreme", &domain.UpstreamMarket{
			ID: "s2", Question: "q", Outcomes: []string{"YES", "NO"},
			PoolBalances: []float64{1, 9999},
			Status:       "active", EndTime: testNow.Add(2000 * time.Hour),
		}},
		{"neutral", &domain.UpstreamMarket{
			ID: "s3", Question: "q", Outcomes: []string{"YES", "NO"},
			PoolBalances: []float64{500, 500},
			Status:       "active", EndTime: testNow.Add(400 * time.Hour),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := newTestMapper()
			m, err := mp.Map(tt.market)
			if err != nil {
				t.Fatalf("Map failed: %v", err)
			}
			if m.SentimentScore < 0 || m.SentimentScore > 100 {
				t.Errorf("sentiment score %d out of [0, 100]", m.SentimentScore)
			}
		})
	}
}

func TestSentimentScoreComposition(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID: "s-comp", Question: "q", Outcomes: []string{"YES", "NO"},
		PoolBalances: []float64{700, 300}, // yes = 0.7, skew contribution +8
		Volume:       500_000,             // +7.5
		Liquidity:    250_000,             // +5
		Status:       "active",
		EndTime:      testNow.Add(72 * time.Hour), // < 7 days: +10
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	// 50 + 8 + 7.5 + 5 + 10 = 80.5, rounded to 81.
	if m.SentimentScore != 81 {
		t.Errorf("sentiment score = %d, want 81", m.SentimentScore)
	}
}

func TestCategoryDerivation(t *testing.T) {
	tests := []struct {
		name   string
		market domain.UpstreamMarket
		want   domain.Category
	}{
		{"explicit category", domain.UpstreamMarket{Category: "CRYPTO", Question: "anything"}, domain.CategoryCrypto},
		{"explicit unknown", domain.UpstreamMarket{Category: "puzzles", Question: "bitcoin"}, domain.CategoryGeneral},
		{"resolution source", domain.UpstreamMarket{ResolutionSource: "AP election desk", Question: "anything"}, domain.CategoryPolitics},
		{"question keywords", domain.UpstreamMarket{Question: "Will Bitcoin close above $100k?"}, domain.CategoryCrypto},
		{"sports question", domain.UpstreamMarket{Question: "Who wins the NBA championship?"}, domain.CategorySports},
		{"no match", domain.UpstreamMarket{Question: "Will it snow tomorrow?"}, domain.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveCategory(&tt.market); got != tt.want {
				t.Errorf("DeriveCategory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTags(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID:           "m-tags",
		Question:     "Will Bitcoin close above $100k?",
		Outcomes:     []string{"YES", "NO"},
		PoolBalances: []float64{600, 400},
		Volume:       250_000,
		Liquidity:    80_000,
		Status:       "active",
		EndTime:      testNow.Add(36 * time.Hour), // < 3 days
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	want := []string{"Crypto", "YES", "NO", "active", "Ending Soon", "High Volume", "High Liquidity"}
	if len(m.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", m.Tags, want)
	}
	for i, tag := range want {
		if m.Tags[i] != tag {
			t.Errorf("tags[%d] = %q, want %q", i, m.Tags[i], tag)
		}
	}
}

func TestOutcomeColors(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"YES", "#10b981"},
		{"yes", "#10b981"},
		{"NO", "#ef4444"},
		{"TRUMP", "#ef4444"},
		{"BIDEN", "#3b82f6"},
		{"Team Wins", "#10b981"}, // partial WIN match
	}
	for _, tt := range tests {
		if got := OutcomeColor(tt.name); got != tt.want {
			t.Errorf("OutcomeColor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestOutcomeColorDeterministicFallback(t *testing.T) {
	a := OutcomeColor("Lakers")
	b := OutcomeColor("Lakers")
	if a != b {
		t.Errorf("same name mapped to different colors: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "hsl(") {
		t.Errorf("expected hash-derived hsl color, got %q", a)
	}
}

func TestDefaultsForAbsentFields(t *testing.T) {
	mp := newTestMapper()
	m, err := mp.Map(&domain.UpstreamMarket{
		ID:       "m-min",
		Question: "q",
		Outcomes: []string{"YES", "NO"},
		Status:   "active",
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	if m.Slug != "market-m-min" {
		t.Errorf("slug default = %q, want %q", m.Slug, "market-m-min")
	}
	if m.Description != "" {
		t.Errorf("description default = %q, want empty", m.Description)
	}
	if m.Category != domain.CategoryGeneral {
		t.Errorf("category default = %v, want General", m.Category)
	}
	for _, o := range m.Outcomes {
		if o.Probability != 0.5 {
			t.Errorf("outcome %s probability = %v, want 0.5", o.Name, o.Probability)
		}
	}
}

func TestVolume24hEstimate(t *testing.T) {
	mp := newTestMapper()

	m, err := mp.Map(yesNoMarket("m-est", []float64{500, 500}))
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if got := m.Volume24h; math.Abs(got-50_000) > 1e-9 {
		t.Errorf("estimated 24h volume = %v, want 50000", got)
	}

	// Explicit value passes through untouched.
	up := yesNoMarket("m-exp", []float64{500, 500})
	up.Volume24h = 12_345
	m, err = mp.Map(up)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if m.Volume24h != 12_345 {
		t.Errorf("explicit 24h volume = %v, want 12345", m.Volume24h)
	}
}

func TestPerOutcomeChangeMirrors(t *testing.T) {
	tracker := history.NewTracker()
	mp := New(tracker)
	mp.now = func() time.Time { return testNow }

	// Seed a baseline an hour earlier so the second mapping sees a change.
	tracker.Observe("m-chg", 0.5, testNow.Add(-time.Hour))

	m, err := mp.Map(yesNoMarket("m-chg", []float64{600, 400}))
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	if m.PriceChange24h != 20.00 {
		t.Errorf("market change = %v, want 20.00", m.PriceChange24h)
	}
	if m.Outcomes[0].PriceChange24h != 20.00 {
		t.Errorf("YES change = %v, want 20.00", m.Outcomes[0].PriceChange24h)
	}
	if m.Outcomes[1].PriceChange24h != -20.00 {
		t.Errorf("NO change = %v, want -20.00", m.Outcomes[1].PriceChange24h)
	}
}
