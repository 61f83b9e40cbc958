package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/mapper"
)

const (
	// liveFetchLimit is how many candidate records a listing pulls from the
	// source before filtering and pagination.
	liveFetchLimit = 100

	// breakingVolumeThreshold is the minimum 24h volume for a record to
	// qualify as breaking.
	breakingVolumeThreshold = 50_000

	// breakingWindow is how recent a record's last activity must be to
	// qualify as breaking.
	breakingWindow = time.Hour
)

// slugSource is implemented by sources that support direct slug lookup.
// Sources without it are scanned via ListMarkets.
type slugSource interface {
	GetMarketBySlug(ctx context.Context, slug string) (domain.UpstreamMarket, error)
}

// categorySource is implemented by sources that can enumerate categories.
type categorySource interface {
	Categories(ctx context.Context) ([]string, error)
}

// connectionTester is implemented by sources that can check upstream
// reachability with an authenticated call.
type connectionTester interface {
	TestConnection(ctx context.Context) bool
}

// Config assembles a Gateway.
type Config struct {
	// Live is the upstream source. Nil disables the live path entirely.
	Live domain.MarketSource

	// Fallback serves when the live path is unavailable or unconfigured.
	Fallback domain.MarketSource

	// Credentialed reports whether the process holds a complete upstream
	// credential triple. False forces fallback mode for every call.
	Credentialed bool

	Mapper *mapper.Mapper
	Logger *slog.Logger
}

// Gateway is the single entry point for market data. Every listing call runs
// the same pipeline: resolve a source, filter, sort, paginate, then map the
// survivors into the normalized shape. Upstream failure degrades to the
// fallback source instead of surfacing an error, so callers always receive a
// usable list.
type Gateway struct {
	live         domain.MarketSource
	fallback     domain.MarketSource
	credentialed bool
	mapper       *mapper.Mapper
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Gateway. Fallback and Mapper are required.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		live:         cfg.Live,
		fallback:     cfg.Fallback,
		credentialed: cfg.Credentialed,
		mapper:       cfg.Mapper,
		logger:       logger,
		now:          time.Now,
	}
}

// Result is a listing plus its provenance, so callers and tests can see
// whether (and why) the gateway served degraded data.
type Result struct {
	Markets        []domain.Market `json:"markets"`
	Source         string          `json:"source"`
	Fallback       bool            `json:"fallback"`
	FallbackReason string          `json:"fallbackReason,omitempty"`
}

// FetchMarkets returns the normalized market listing for the given options.
// The only error it returns is for invalid options; upstream failure routes
// to the fallback source.
func (g *Gateway) FetchMarkets(ctx context.Context, opts FetchOptions) ([]domain.Market, error) {
	res, err := g.FetchMarketsResult(ctx, opts)
	if err != nil {
		return nil, err
	}
	return res.Markets, nil
}

// FetchMarketsResult is FetchMarkets with provenance attached.
func (g *Gateway) FetchMarketsResult(ctx context.Context, opts FetchOptions) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	opts = opts.normalized()

	fetched, err := g.fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	records := g.filter(fetched.records, opts)
	g.sortRecords(records, opts)
	records = paginate(records, opts.Page, opts.Limit)

	markets := g.mapRecords(ctx, records)

	return Result{
		Markets:        markets,
		Source:         fetched.source,
		Fallback:       fetched.fallback,
		FallbackReason: fetched.reason,
	}, nil
}

// FetchMarketByID returns a single normalized market. The live path is tried
// first when configured; a live miss or failure falls through to fallback.
// Returns domain.ErrNotFound when neither source knows the ID.
func (g *Gateway) FetchMarketByID(ctx context.Context, id string) (domain.Market, error) {
	if g.liveEnabled() {
		record, err := g.live.GetMarket(ctx, id)
		if err == nil {
			return g.mapOne(&record)
		}
		g.logger.WarnContext(ctx, "gateway: live lookup failed, trying fallback",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	record, err := g.fallback.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("gateway: get market %s: %w", id, err)
	}
	return g.mapOne(&record)
}

// FetchMarketBySlug returns a single normalized market looked up by slug.
func (g *Gateway) FetchMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	if g.liveEnabled() {
		if src, ok := g.live.(slugSource); ok {
			record, err := src.GetMarketBySlug(ctx, slug)
			if err == nil {
				return g.mapOne(&record)
			}
			g.logger.WarnContext(ctx, "gateway: live slug lookup failed, trying fallback",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
	}

	records, err := g.fallback.ListMarkets(ctx, domain.SourceQuery{})
	if err != nil {
		return domain.Market{}, fmt.Errorf("gateway: get market by slug %s: %w", slug, err)
	}
	for i := range records {
		if records[i].Slug == slug {
			return g.mapOne(&records[i])
		}
	}
	return domain.Market{}, fmt.Errorf("gateway: %w: slug=%s", domain.ErrNotFound, slug)
}

// Categories returns the available category names. The live source's
// enumeration is preferred; fallback mode derives the set from fallback
// records.
func (g *Gateway) Categories(ctx context.Context) ([]string, error) {
	if g.liveEnabled() {
		if src, ok := g.live.(categorySource); ok {
			cats, err := src.Categories(ctx)
			if err == nil {
				return cats, nil
			}
			g.logger.WarnContext(ctx, "gateway: live category fetch failed, deriving from fallback",
				slog.String("error", err.Error()),
			)
		}
	}

	records, err := g.fallback.ListMarkets(ctx, domain.SourceQuery{Status: "active"})
	if err != nil {
		return nil, fmt.Errorf("gateway: categories: %w", err)
	}

	seen := make(map[string]struct{})
	var categories []string
	for i := range records {
		cat := string(mapper.DeriveCategory(&records[i]))
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	return categories, nil
}

// Stats summarizes the full market set for the dashboard header. Totals
// include resolved and canceled markets; the active count and category
// distribution do not.
func (g *Gateway) Stats(ctx context.Context) (domain.Stats, error) {
	fetched, err := g.fetchAll(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		ByCategory: make(map[domain.Category]int),
	}
	for i := range fetched.records {
		rec := &fetched.records[i]
		stats.TotalMarkets++
		stats.TotalVolume += rec.Volume
		if rec.Active() {
			stats.ActiveMarkets++
			stats.ByCategory[mapper.DeriveCategory(rec)]++
		}
	}
	return stats, nil
}

// TestConnection reports whether the live upstream accepts the configured
// credentials. False in fallback mode; never returns an error.
func (g *Gateway) TestConnection(ctx context.Context) bool {
	if !g.liveEnabled() {
		return false
	}
	if src, ok := g.live.(connectionTester); ok {
		return src.TestConnection(ctx)
	}
	_, err := g.live.ListMarkets(ctx, domain.SourceQuery{Limit: 1})
	return err == nil
}

// --------------------------------------------------------------------------
// Pipeline stages
// --------------------------------------------------------------------------

// fetchResult is the internal two-branch outcome of the source stage: either
// live records, or fallback records with the reason the live path was
// skipped or failed.
type fetchResult struct {
	records  []domain.UpstreamMarket
	source   string
	fallback bool
	reason   string
}

func (g *Gateway) liveEnabled() bool {
	return g.live != nil && g.credentialed
}

// fetch resolves the record source for a listing call. Listings only ever
// show active markets, so the live query filters upstream.
func (g *Gateway) fetch(ctx context.Context) (fetchResult, error) {
	return g.fetchQuery(ctx, domain.SourceQuery{Status: "active", Limit: liveFetchLimit})
}

// fetchAll resolves the full record set, resolved and canceled markets
// included. Stats needs it: total counts and volume cover every market, not
// just the listable ones.
func (g *Gateway) fetchAll(ctx context.Context) (fetchResult, error) {
	return g.fetchQuery(ctx, domain.SourceQuery{Limit: liveFetchLimit})
}

// fetchQuery runs the two-branch source stage. Live failure is logged and
// degrades to fallback; an error here means even the fallback source failed,
// which callers may treat as unrecoverable.
func (g *Gateway) fetchQuery(ctx context.Context, query domain.SourceQuery) (fetchResult, error) {
	reason := ""
	switch {
	case g.live == nil:
		reason = "live source not configured"
	case !g.credentialed:
		reason = "missing api credentials"
	default:
		records, err := g.live.ListMarkets(ctx, query)
		if err == nil {
			return fetchResult{records: records, source: g.live.Name()}, nil
		}
		reason = err.Error()
		g.logger.WarnContext(ctx, "gateway: live fetch failed, serving fallback",
			slog.String("source", g.live.Name()),
			slog.String("error", err.Error()),
		)
	}

	records, err := g.fallback.ListMarkets(ctx, domain.SourceQuery{})
	if err != nil {
		return fetchResult{}, fmt.Errorf("gateway: fallback fetch: %w", err)
	}

	return fetchResult{
		records:  records,
		source:   g.fallback.Name(),
		fallback: true,
		reason:   reason,
	}, nil
}

// filter excludes resolved and canceled records, applies the category
// filter, and applies the breaking restriction. Input order is preserved.
func (g *Gateway) filter(records []domain.UpstreamMarket, opts FetchOptions) []domain.UpstreamMarket {
	now := g.now()
	out := make([]domain.UpstreamMarket, 0, len(records))

	for i := range records {
		rec := &records[i]
		if !rec.Active() {
			continue
		}
		if opts.Category != "" {
			cat := string(mapper.DeriveCategory(rec))
			if !strings.EqualFold(cat, opts.Category) {
				continue
			}
		}
		if opts.Breaking {
			if effectiveVolume24h(rec) <= breakingVolumeThreshold {
				continue
			}
			if lastActivity(rec).Before(now.Add(-breakingWindow)) {
				continue
			}
		}
		out = append(out, *rec)
	}

	return out
}

// sortRecords orders the filtered set. Special filters take precedence over
// SortBy. All sorts are stable so ties preserve input order and repeated
// calls with the same payload produce identical output.
func (g *Gateway) sortRecords(records []domain.UpstreamMarket, opts FetchOptions) {
	var less func(a, b *domain.UpstreamMarket) bool

	switch {
	case opts.Trending, opts.Breaking:
		less = func(a, b *domain.UpstreamMarket) bool {
			return effectiveVolume24h(a) > effectiveVolume24h(b)
		}
	case opts.New:
		less = func(a, b *domain.UpstreamMarket) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		switch opts.SortBy {
		case SortByLiquidity:
			less = func(a, b *domain.UpstreamMarket) bool { return a.Liquidity > b.Liquidity }
		case SortByCreated:
			less = func(a, b *domain.UpstreamMarket) bool { return a.CreatedAt.After(b.CreatedAt) }
		case SortByEnding:
			less = func(a, b *domain.UpstreamMarket) bool { return a.EndTime.Before(b.EndTime) }
		default: // SortByVolume
			less = func(a, b *domain.UpstreamMarket) bool { return a.Volume > b.Volume }
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return less(&records[i], &records[j])
	})
}

// paginate slices out the requested page.
func paginate(records []domain.UpstreamMarket, page, limit int) []domain.UpstreamMarket {
	offset := (page - 1) * limit
	if offset >= len(records) {
		return nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

// mapRecords normalizes the surviving records. A record the mapper rejects
// is dropped from the batch, not fatal to it.
func (g *Gateway) mapRecords(ctx context.Context, records []domain.UpstreamMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(records))
	for i := range records {
		m, err := g.mapper.Map(&records[i])
		if err != nil {
			g.logger.WarnContext(ctx, "gateway: skipping unmappable record",
				slog.String("market_id", records[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

func (g *Gateway) mapOne(rec *domain.UpstreamMarket) (domain.Market, error) {
	m, err := g.mapper.Map(rec)
	if err != nil {
		return domain.Market{}, fmt.Errorf("gateway: map market %s: %w", rec.ID, err)
	}
	return m, nil
}

// effectiveVolume24h prefers the reported 24h volume and falls back to total
// volume when the provider omits it.
func effectiveVolume24h(m *domain.UpstreamMarket) float64 {
	if m.Volume24h > 0 {
		return m.Volume24h
	}
	return m.Volume
}

// lastActivity is the most recent timestamp the record carries.
func lastActivity(m *domain.UpstreamMarket) time.Time {
	if m.UpdatedAt.After(m.CreatedAt) {
		return m.UpdatedAt
	}
	return m.CreatedAt
}
