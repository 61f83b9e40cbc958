package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/polysight/marketgate/internal/crypto"
	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/mapper"
)

const (
	// requestTimeout bounds every REST call against the builder API.
	requestTimeout = 10 * time.Second

	// categoriesTTL caches the derived category list longer than raw
	// market payloads since it changes slowly.
	categoriesTTL = 5 * time.Minute
)

// Client is the REST client for the Polymarket builder API. Listing and
// lookup responses pass through an injected ResponseCache so bursts of
// identical requests hit upstream once; account endpoints are never cached.
type Client struct {
	baseURL    string
	auth       crypto.HMACAuth
	cache      domain.ResponseCache
	httpClient *http.Client
}

// NewClient creates a builder API client.
//
// baseURL is the API root, e.g. "https://builder-api.polymarket.com/v1".
// cache may be nil, in which case every request goes to upstream.
func NewClient(baseURL string, auth crypto.HMACAuth, cache domain.ResponseCache) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		cache:   cache,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Name identifies this source in logs and result provenance.
func (c *Client) Name() string { return "polymarket-builder" }

// Authenticated reports whether the client holds a complete credential set.
func (c *Client) Authenticated() bool { return c.auth.Complete() }

// ListMarkets returns upstream market records matching the query.
func (c *Client) ListMarkets(ctx context.Context, q domain.SourceQuery) ([]domain.UpstreamMarket, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := "/markets"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("builder: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("builder: decode markets: %w", err)
	}

	markets := make([]domain.UpstreamMarket, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomain())
	}

	return markets, nil
}

// GetMarket returns a single market by its ID.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.UpstreamMarket, error) {
	endpoint := "/markets/" + url.PathEscape(id)

	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return domain.UpstreamMarket{}, fmt.Errorf("builder: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.UpstreamMarket{}, fmt.Errorf("builder: decode market: %w", err)
	}

	return apiMarket.ToDomain(), nil
}

// GetMarketBySlug looks a market up by its URL slug. The builder API has no
// slug endpoint, so this scans the active listing and refetches the match by
// ID for the full record.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (domain.UpstreamMarket, error) {
	markets, err := c.ListMarkets(ctx, domain.SourceQuery{Status: "active", Limit: 100})
	if err != nil {
		return domain.UpstreamMarket{}, fmt.Errorf("builder: get market by slug %s: %w", slug, err)
	}

	for i := range markets {
		if markets[i].Slug == slug {
			return c.GetMarket(ctx, markets[i].ID)
		}
	}

	return domain.UpstreamMarket{}, fmt.Errorf("builder: %w: slug=%s", domain.ErrNotFound, slug)
}

// Categories returns the sorted set of categories derived from the current
// active listing, falling back to the default set when the listing yields
// none. Cached for categoriesTTL.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	const cacheKey = "GET /categories:"

	if c.cache != nil {
		if payload, ok := c.cache.Get(ctx, cacheKey); ok {
			var cached []string
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		}
	}

	markets, err := c.ListMarkets(ctx, domain.SourceQuery{Status: "active", Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("builder: categories: %w", err)
	}

	seen := make(map[string]struct{})
	for i := range markets {
		cat := string(mapper.DeriveCategory(&markets[i]))
		if cat != "" && cat != string(domain.CategoryGeneral) {
			seen[cat] = struct{}{}
		}
	}

	var categories []string
	for cat := range seen {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	if len(categories) == 0 {
		for _, cat := range domain.DefaultCategories {
			categories = append(categories, string(cat))
		}
	}

	if c.cache != nil {
		if payload, err := json.Marshal(categories); err == nil {
			c.cache.SetWithTTL(ctx, cacheKey, payload, categoriesTTL)
		}
	}

	return categories, nil
}

// GetAccountInfo returns the builder account profile. Requires a complete
// credential set; responses are never cached.
func (c *Client) GetAccountInfo(ctx context.Context) (APIAccount, error) {
	if !c.auth.Complete() {
		return APIAccount{}, fmt.Errorf("builder: account info: %w", domain.ErrMissingCredentials)
	}

	body, err := c.get(ctx, "/account/info", false)
	if err != nil {
		return APIAccount{}, fmt.Errorf("builder: account info: %w", err)
	}

	var account APIAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return APIAccount{}, fmt.Errorf("builder: decode account: %w", err)
	}

	return account, nil
}

// TestConnection reports whether the API accepts the configured credentials.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetAccountInfo(ctx)
	return err == nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get sends a GET request, consulting and populating the response cache when
// cacheable. Signing headers are attached whenever credentials are complete.
func (c *Client) get(ctx context.Context, endpoint string, cacheable bool) ([]byte, error) {
	// Cache key is the endpoint plus serialized body; GETs have no body.
	cacheKey := "GET " + endpoint + ":"

	if cacheable && c.cache != nil {
		if payload, ok := c.cache.Get(ctx, cacheKey); ok {
			return payload, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if c.auth.Complete() {
		for k, v := range c.auth.AccessHeaders(http.MethodGet, endpoint, "") {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	if cacheable && c.cache != nil {
		c.cache.Set(ctx, cacheKey, body)
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstreamUnavailable, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
