// Package fallback supplies deterministic sample markets when live upstream
// access is unavailable or unconfigured, so the rest of the gateway can run
// in degraded mode without special-casing every caller.
package fallback

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/polysight/marketgate/internal/domain"
)

// seed fixes the pseudo-random stream so two consecutive listings are
// identical in content and order.
const seed = 0x706f6c79 // "poly"

// idNamespace derives stable market IDs from slugs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://polysight.app/fallback"))

// topic is one sample market template.
type topic struct {
	question         string
	category         string
	resolutionSource string
}

// topics is a fixed table drawn from the categories the application surfaces.
// Order matters: it is the stable input order that sorting ties fall back to.
var topics = []topic{
	{"Will the incumbent party win the 2025 presidential election?", "Politics", "AP election desk"},
	{"Will voter turnout exceed 60% in the 2025 general election?", "Politics", "national election commission"},
	{"Will a third-party candidate poll above 5% nationally?", "Politics", "polling aggregate"},
	{"Will the senate pass the budget bill before the deadline?", "Politics", "congress.gov"},
	{"Will the home team win the 2025 championship final?", "Sports", "official NBA results"},
	{"Will the title game go to overtime?", "Sports", "official NFL results"},
	{"Will a rookie be named finals MVP?", "Sports", "league MVP announcement"},
	{"Will the defending champions reach the playoffs?", "Sports", "official MLB standings"},
	{"Will Bitcoin close the year above $100,000?", "Crypto", "coinbase daily close"},
	{"Will Ethereum flip half of Bitcoin's market cap?", "Crypto", "coingecko market data"},
	{"Will Solana process more daily transactions than Ethereum?", "Crypto", "on-chain explorer data"},
	{"Will a spot crypto ETF launch in a new market this quarter?", "Crypto", "exchange listings"},
	{"Will a frontier AI model pass a graduate-level exam benchmark?", "Technology", "published tech benchmark"},
	{"Will the flagship phone maker announce a foldable this year?", "Technology", "apple press release"},
	{"Will global cloud spending grow more than 20% year over year?", "Technology", "industry tech report"},
	{"Will the central bank cut rates at the next meeting?", "Finance", "fed statement"},
	{"Will inflation print below 3% for two consecutive months?", "Finance", "bureau of labor statistics"},
	{"Will the index close the quarter at an all-time high?", "Finance", "stock exchange close"},
	{"Will the sequel outgross the original at the box office?", "Entertainment", "box office mojo"},
	{"Will the favorite win best picture at the oscars?", "Entertainment", "academy awards ceremony"},
	{"Will the reunion tour sell out its opening night?", "Entertainment", "ticketing music data"},
	{"Will the crewed lunar mission launch on schedule?", "Science", "nasa launch manifest"},
	{"Will a new vaccine candidate clear phase three trials?", "Science", "clinical trial registry"},
	{"Will the ceasefire hold through the end of the quarter?", "World Events", "reuters world desk"},
	{"Will the trade agreement be ratified by all members?", "World Events", "treaty registry"},
	{"Will this year be the warmest on record?", "Environment", "climate agency dataset"},
	{"Will renewable generation exceed 40% of the grid mix?", "Environment", "energy grid operator"},
}

// Source implements domain.MarketSource with generated sample records. The
// same construction parameters always yield the same records, and dates are
// quantized to UTC midnight so repeated calls within a day agree completely.
type Source struct {
	now func() time.Time
}

var _ domain.MarketSource = (*Source)(nil)

// NewSource creates a fallback Source.
func NewSource() *Source {
	return &Source{now: time.Now}
}

// Name identifies the source in logs and provenance data.
func (s *Source) Name() string { return "fallback" }

// ListMarkets returns the sample record set, honoring the status filter and
// limit so the facade's orchestration stays uniform across live and fallback
// paths.
func (s *Source) ListMarkets(_ context.Context, q domain.SourceQuery) ([]domain.UpstreamMarket, error) {
	markets := s.generate()

	if q.Status != "" {
		filtered := markets[:0]
		for _, m := range markets {
			if m.Status == q.Status {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	if q.Limit > 0 && len(markets) > q.Limit {
		markets = markets[:q.Limit]
	}
	return markets, nil
}

// GetMarket returns the sample record with the given ID, or
// domain.ErrNotFound.
func (s *Source) GetMarket(_ context.Context, id string) (domain.UpstreamMarket, error) {
	for _, m := range s.generate() {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.UpstreamMarket{}, fmt.Errorf("fallback: market %s: %w", id, domain.ErrNotFound)
}

// generate builds the full sample set from the fixed topic table and seeded
// pseudo-random stream.
func (s *Source) generate() []domain.UpstreamMarket {
	rng := rand.New(rand.NewSource(seed))
	today := s.now().UTC().Truncate(24 * time.Hour)

	markets := make([]domain.UpstreamMarket, 0, len(topics))
	for i, tp := range topics {
		slug := fmt.Sprintf("sample-market-%d", i+1)

		yesPool := 300 + rng.Float64()*400 // 30-70% implied
		noPool := 1000 - yesPool
		volume := 10_000 + rng.Float64()*990_000
		liquidity := volume * 0.8
		endDays := 30 + rng.Intn(365)
		createdDays := 1 + rng.Intn(30)

		// A couple of records are resolved so filter paths always have
		// something to exclude.
		status := "active"
		if i%9 == 8 {
			status = "resolved"
		}

		markets = append(markets, domain.UpstreamMarket{
			ID:               uuid.NewSHA1(idNamespace, []byte(slug)).String(),
			Slug:             slug,
			Question:         tp.question,
			Description:      "Sample market served while live data is unavailable.",
			Outcomes:         []string{"YES", "NO"},
			PoolBalances:     []float64{yesPool, noPool},
			Volume:           volume,
			Volume24h:        volume * 0.2,
			Liquidity:        liquidity,
			Status:           status,
			Category:         tp.category,
			ResolutionSource: tp.resolutionSource,
			Creator:          "polysight-sample",
			CreatedAt:        today.AddDate(0, 0, -createdDays),
			UpdatedAt:        today,
			EndTime:          today.AddDate(0, 0, endDays),
		})
	}
	return markets
}
