package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/gateway"
)

// stubGateway is a programmable MarketGateway for handler tests.
type stubGateway struct {
	result    gateway.Result
	resultErr error
	market    domain.Market
	marketErr error
	lastOpts  gateway.FetchOptions
}

func (s *stubGateway) FetchMarketsResult(_ context.Context, opts gateway.FetchOptions) (gateway.Result, error) {
	s.lastOpts = opts
	return s.result, s.resultErr
}

func (s *stubGateway) FetchMarketByID(context.Context, string) (domain.Market, error) {
	return s.market, s.marketErr
}

func (s *stubGateway) FetchMarketBySlug(context.Context, string) (domain.Market, error) {
	return s.market, s.marketErr
}

func (s *stubGateway) Categories(context.Context) ([]string, error) {
	return []string{"Crypto", "Politics"}, nil
}

func (s *stubGateway) Stats(context.Context) (domain.Stats, error) {
	return domain.Stats{TotalMarkets: 3, ActiveMarkets: 2}, nil
}

func (s *stubGateway) TestConnection(context.Context) bool { return false }

func newTestMux(gw MarketGateway) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewMarketHandler(gw, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("GET /api/markets/slug/{slug}", h.GetMarketBySlug)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/connection", h.TestConnection)
	return mux
}

func TestListMarketsParsesOptions(t *testing.T) {
	gw := &stubGateway{result: gateway.Result{
		Markets: []domain.Market{{ID: "m1"}},
		Source:  "polymarket-builder",
	}}
	mux := newTestMux(gw)

	req := httptest.NewRequest(http.MethodGet, "/api/markets?category=Crypto&limit=5&page=2&sortBy=liquidity&trending=true", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	want := gateway.FetchOptions{Category: "Crypto", Limit: 5, Page: 2, SortBy: "liquidity", Trending: true}
	if gw.lastOpts != want {
		t.Errorf("opts = %+v, want %+v", gw.lastOpts, want)
	}

	var resp struct {
		Count  int    `json:"count"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Source != "polymarket-builder" {
		t.Errorf("response = %+v", resp)
	}
}

func TestListMarketsInvalidOptions(t *testing.T) {
	gw := &stubGateway{resultErr: domain.ErrInvalidOptions}
	mux := newTestMux(gw)

	req := httptest.NewRequest(http.MethodGet, "/api/markets?sortBy=bogus", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	gw := &stubGateway{marketErr: domain.ErrNotFound}
	mux := newTestMux(gw)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "market not found") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetMarketBySlug(t *testing.T) {
	gw := &stubGateway{market: domain.Market{ID: "m1", Slug: "some-market"}}
	mux := newTestMux(gw)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/slug/some-market", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var m domain.Market
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if m.Slug != "some-market" {
		t.Errorf("slug = %q", m.Slug)
	}
}

func TestListCategories(t *testing.T) {
	mux := newTestMux(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Errorf("categories = %v", resp.Categories)
	}
}

func TestConnectionEndpoint(t *testing.T) {
	mux := newTestMux(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/api/connection", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp struct {
		Connected bool `json:"connected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Connected {
		t.Error("connected = true, want false")
	}
}
