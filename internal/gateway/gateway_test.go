package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/fallback"
	"github.com/polysight/marketgate/internal/history"
	"github.com/polysight/marketgate/internal/mapper"
)

// stubSource is an in-memory MarketSource with a programmable failure.
type stubSource struct {
	name    string
	records []domain.UpstreamMarket
	err     error
	calls   int
}

func (s *stubSource) ListMarkets(_ context.Context, q domain.SourceQuery) ([]domain.UpstreamMarket, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.UpstreamMarket, 0, len(s.records))
	for _, rec := range s.records {
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubSource) GetMarket(_ context.Context, id string) (domain.UpstreamMarket, error) {
	s.calls++
	if s.err != nil {
		return domain.UpstreamMarket{}, s.err
	}
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.UpstreamMarket{}, domain.ErrNotFound
}

func (s *stubSource) Name() string { return s.name }

var testTime = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func rec(id string, volume, volume24h float64, createdAgo time.Duration) domain.UpstreamMarket {
	return domain.UpstreamMarket{
		ID:        id,
		Slug:      "slug-" + id,
		Question:  "Will outcome " + id + " happen?",
		Outcomes:  []string{"YES", "NO"},
		Volume:    volume,
		Volume24h: volume24h,
		Liquidity: volume / 2,
		Status:    "active",
		CreatedAt: testTime.Add(-createdAgo),
		UpdatedAt: testTime.Add(-createdAgo / 2),
		EndTime:   testTime.Add(30 * 24 * time.Hour),
	}
}

func newTestGateway(live domain.MarketSource, credentialed bool) *Gateway {
	g := New(Config{
		Live:         live,
		Fallback:     fallback.NewSource(),
		Credentialed: credentialed,
		Mapper:       mapper.New(history.NewTracker()),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	g.now = func() time.Time { return testTime }
	return g
}

func ids(markets []domain.Market) []string {
	out := make([]string, len(markets))
	for i, m := range markets {
		out[i] = m.ID
	}
	return out
}

func TestDefaultsLimitAndVolumeSort(t *testing.T) {
	src := &stubSource{name: "live"}
	for i := 0; i < 30; i++ {
		src.records = append(src.records, rec(fmt.Sprintf("m%02d", i), float64(1000+i), 0, time.Hour))
	}

	g := newTestGateway(src, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 20 {
		t.Fatalf("default page size = %d, want 20", len(markets))
	}
	// Highest total volume first.
	if markets[0].ID != "m29" || markets[19].ID != "m10" {
		t.Errorf("volume ordering wrong: first=%s last=%s", markets[0].ID, markets[19].ID)
	}
}

func TestPaginationOffsets(t *testing.T) {
	src := &stubSource{name: "live"}
	for i := 0; i < 12; i++ {
		src.records = append(src.records, rec(fmt.Sprintf("m%02d", i), float64(1200-i), 0, time.Hour))
	}

	g := newTestGateway(src, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Limit: 5, Page: 2})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}

	want := []string{"m05", "m06", "m07", "m08", "m09"}
	if got := ids(markets); !reflect.DeepEqual(got, want) {
		t.Errorf("page 2 = %v, want %v", got, want)
	}

	// Past the end of the set.
	markets, err = g.FetchMarkets(context.Background(), FetchOptions{Limit: 5, Page: 4})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 0 {
		t.Errorf("page past end returned %d records", len(markets))
	}
}

func TestResolvedAndCanceledExcluded(t *testing.T) {
	active := rec("active", 100, 0, time.Hour)
	resolved := rec("resolved", 500, 0, time.Hour)
	resolved.Status = "resolved"
	canceled := rec("canceled", 500, 0, time.Hour)
	canceled.Status = "canceled"

	g := newTestGateway(&stubSource{name: "live", records: []domain.UpstreamMarket{active, resolved, canceled}}, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if got := ids(markets); !reflect.DeepEqual(got, []string{"active"}) {
		t.Errorf("listing = %v, want [active]", got)
	}
}

func TestCategoryFilterCaseInsensitive(t *testing.T) {
	bitcoin := rec("btc", 100, 0, time.Hour)
	bitcoin.Question = "Will Bitcoin reach $150k?"
	election := rec("vote", 100, 0, time.Hour)
	election.Question = "Who wins the election?"
	tagged := rec("tagged", 100, 0, time.Hour)
	tagged.Category = "Crypto"
	tagged.Question = "Will this thing happen?"

	src := &stubSource{name: "live", records: []domain.UpstreamMarket{bitcoin, election, tagged}}
	g := newTestGateway(src, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Category: "cRyPtO"})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if got := ids(markets); !reflect.DeepEqual(got, []string{"btc", "tagged"}) {
		t.Errorf("crypto filter = %v, want [btc tagged]", got)
	}
}

func TestTrendingSortsBy24hVolume(t *testing.T) {
	a := rec("a", 10_000, 500, time.Hour)
	b := rec("b", 5_000, 9_000, time.Hour)
	c := rec("c", 1_000, 0, time.Hour) // no 24h figure, falls back to total

	g := newTestGateway(&stubSource{name: "live", records: []domain.UpstreamMarket{a, b, c}}, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Trending: true})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if got := ids(markets); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("trending order = %v, want [b c a]", got)
	}
}

func TestNewSortsByCreation(t *testing.T) {
	old := rec("old", 100, 0, 72*time.Hour)
	fresh := rec("fresh", 100, 0, time.Hour)
	mid := rec("mid", 100, 0, 24*time.Hour)

	g := newTestGateway(&stubSource{name: "live", records: []domain.UpstreamMarket{old, fresh, mid}}, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{New: true})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if got := ids(markets); !reflect.DeepEqual(got, []string{"fresh", "mid", "old"}) {
		t.Errorf("new order = %v, want [fresh mid old]", got)
	}
}

func TestBreakingRequiresVolumeAndRecency(t *testing.T) {
	hot := rec("hot", 200_000, 80_000, 30*time.Minute)
	hot.UpdatedAt = testTime.Add(-10 * time.Minute)
	stale := rec("stale", 200_000, 80_000, 72*time.Hour)
	stale.UpdatedAt = testTime.Add(-3 * time.Hour)
	quiet := rec("quiet", 10_000, 1_000, 10*time.Minute)
	quiet.UpdatedAt = testTime.Add(-5 * time.Minute)

	g := newTestGateway(&stubSource{name: "live", records: []domain.UpstreamMarket{stale, hot, quiet}}, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Breaking: true})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if got := ids(markets); !reflect.DeepEqual(got, []string{"hot"}) {
		t.Errorf("breaking = %v, want [hot]", got)
	}
}

func TestSortKeys(t *testing.T) {
	a := rec("a", 100, 0, 48*time.Hour)
	a.Liquidity = 900
	a.EndTime = testTime.Add(72 * time.Hour)
	b := rec("b", 300, 0, 24*time.Hour)
	b.Liquidity = 100
	b.EndTime = testTime.Add(24 * time.Hour)
	c := rec("c", 200, 0, time.Hour)
	c.Liquidity = 500
	c.EndTime = testTime.Add(48 * time.Hour)

	src := &stubSource{name: "live", records: []domain.UpstreamMarket{a, b, c}}
	g := newTestGateway(src, true)

	tests := []struct {
		sortBy string
		want   []string
	}{
		{SortByVolume, []string{"b", "c", "a"}},
		{SortByLiquidity, []string{"a", "c", "b"}},
		{SortByCreated, []string{"c", "b", "a"}},
		{SortByEnding, []string{"b", "c", "a"}},
	}

	for _, tt := range tests {
		markets, err := g.FetchMarkets(context.Background(), FetchOptions{SortBy: tt.sortBy})
		if err != nil {
			t.Fatalf("FetchMarkets(%s): %v", tt.sortBy, err)
		}
		if got := ids(markets); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sortBy=%s order = %v, want %v", tt.sortBy, got, tt.want)
		}
	}
}

func TestStableTieBreaking(t *testing.T) {
	src := &stubSource{name: "live"}
	for i := 0; i < 6; i++ {
		src.records = append(src.records, rec(fmt.Sprintf("m%d", i), 1000, 0, time.Hour))
	}

	g := newTestGateway(src, true)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}

	want := []string{"m0", "m1", "m2", "m3", "m4", "m5"}
	if got := ids(markets); !reflect.DeepEqual(got, want) {
		t.Errorf("tied records reordered: %v", got)
	}
}

func TestInvalidOptionsRejectedBeforeFetch(t *testing.T) {
	src := &stubSource{name: "live"}
	g := newTestGateway(src, true)

	tests := []FetchOptions{
		{Limit: -1},
		{Page: -2},
		{SortBy: "price"},
	}

	for _, opts := range tests {
		if _, err := g.FetchMarkets(context.Background(), opts); !errors.Is(err, domain.ErrInvalidOptions) {
			t.Errorf("opts %+v: err = %v, want ErrInvalidOptions", opts, err)
		}
	}
	if src.calls != 0 {
		t.Errorf("source called %d times for invalid options", src.calls)
	}
}

func TestMissingCredentialsServeFallback(t *testing.T) {
	src := &stubSource{name: "live", records: []domain.UpstreamMarket{rec("live-only", 100, 0, time.Hour)}}
	g := newTestGateway(src, false)

	res, err := g.FetchMarketsResult(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchMarketsResult: %v", err)
	}

	if !res.Fallback || res.Source != "fallback" {
		t.Errorf("result source = %q fallback = %v, want fallback source", res.Source, res.Fallback)
	}
	if res.FallbackReason != "missing api credentials" {
		t.Errorf("reason = %q", res.FallbackReason)
	}
	if src.calls != 0 {
		t.Errorf("live source called %d times without credentials", src.calls)
	}
	if len(res.Markets) == 0 {
		t.Error("fallback listing is empty")
	}
}

func TestUpstreamFailureDegradesToFallback(t *testing.T) {
	src := &stubSource{name: "live", err: fmt.Errorf("list markets: %w", domain.ErrUpstreamUnavailable)}
	g := newTestGateway(src, true)

	res, err := g.FetchMarketsResult(context.Background(), FetchOptions{Category: "Crypto"})
	if err != nil {
		t.Fatalf("FetchMarketsResult: %v", err)
	}

	if !res.Fallback {
		t.Error("expected fallback result after upstream failure")
	}
	if len(res.Markets) == 0 {
		t.Fatal("expected non-empty fallback listing")
	}
	for _, m := range res.Markets {
		if m.Category != domain.CategoryCrypto {
			t.Errorf("market %s category = %s, want Crypto", m.ID, m.Category)
		}
	}
}

func TestFallbackDeterminism(t *testing.T) {
	g := newTestGateway(nil, false)

	ctx := context.Background()
	first, err := g.FetchMarkets(ctx, FetchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := g.FetchMarkets(ctx, FetchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("consecutive fallback fetches differ")
	}
}

func TestFetchMarketByID(t *testing.T) {
	live := &stubSource{name: "live", records: []domain.UpstreamMarket{rec("m1", 100, 0, time.Hour)}}
	g := newTestGateway(live, true)

	m, err := g.FetchMarketByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("FetchMarketByID: %v", err)
	}
	if m.ID != "m1" {
		t.Errorf("ID = %q, want m1", m.ID)
	}

	if _, err := g.FetchMarketByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchMarketByIDFallsBackOnLiveFailure(t *testing.T) {
	live := &stubSource{name: "live", err: domain.ErrUpstreamUnavailable}
	g := newTestGateway(live, true)

	// Fallback IDs are deterministic, so grab one from a listing first.
	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}

	m, err := g.FetchMarketByID(context.Background(), markets[0].ID)
	if err != nil {
		t.Fatalf("FetchMarketByID: %v", err)
	}
	if m.ID != markets[0].ID {
		t.Errorf("ID = %q, want %q", m.ID, markets[0].ID)
	}
}

func TestFetchMarketBySlugViaFallback(t *testing.T) {
	g := newTestGateway(nil, false)

	markets, err := g.FetchMarkets(context.Background(), FetchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}

	m, err := g.FetchMarketBySlug(context.Background(), markets[0].Slug)
	if err != nil {
		t.Fatalf("FetchMarketBySlug: %v", err)
	}
	if m.Slug != markets[0].Slug {
		t.Errorf("Slug = %q, want %q", m.Slug, markets[0].Slug)
	}

	if _, err := g.FetchMarketBySlug(context.Background(), "no-such-slug"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCategoriesDerivedFromFallback(t *testing.T) {
	g := newTestGateway(nil, false)

	cats, err := g.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("no categories derived")
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1] >= cats[i] {
			t.Errorf("categories not sorted: %v", cats)
		}
	}
}

func TestStats(t *testing.T) {
	active := rec("a", 1000, 0, time.Hour)
	active.Category = "Crypto"
	resolved := rec("b", 500, 0, time.Hour)
	resolved.Status = "resolved"

	g := newTestGateway(&stubSource{name: "live", records: []domain.UpstreamMarket{active, resolved}}, true)

	stats, err := g.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalMarkets != 2 || stats.ActiveMarkets != 1 {
		t.Errorf("counts = %d/%d, want 2/1", stats.TotalMarkets, stats.ActiveMarkets)
	}
	if stats.TotalVolume != 1500 {
		t.Errorf("TotalVolume = %v, want 1500", stats.TotalVolume)
	}
	if stats.ByCategory[domain.CategoryCrypto] != 1 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
}

func TestTestConnectionWithoutLive(t *testing.T) {
	g := newTestGateway(nil, false)

	if g.TestConnection(context.Background()) {
		t.Error("TestConnection should be false in fallback mode")
	}
}
