package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/gateway"
)

// MarketGateway defines the methods the market handler requires from the
// gateway facade. Declared locally so the handler package does not depend on
// the concrete implementation.
type MarketGateway interface {
	FetchMarketsResult(ctx context.Context, opts gateway.FetchOptions) (gateway.Result, error)
	FetchMarketByID(ctx context.Context, id string) (domain.Market, error)
	FetchMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (domain.Stats, error)
	TestConnection(ctx context.Context) bool
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	gw     MarketGateway
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given gateway and logger.
func NewMarketHandler(gw MarketGateway, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		gw:     gw,
		logger: logger,
	}
}

// listMarketsResponse wraps the listing with provenance and paging metadata.
type listMarketsResponse struct {
	Markets        []domain.Market `json:"markets"`
	Count          int             `json:"count"`
	Source         string          `json:"source"`
	Fallback       bool            `json:"fallback"`
	FallbackReason string          `json:"fallbackReason,omitempty"`
	Limit          int             `json:"limit"`
	Page           int             `json:"page"`
}

// ListMarkets returns the filtered, sorted, paginated market listing.
// GET /api/markets?category=Crypto&limit=20&page=1&sortBy=volume&trending=true
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseFetchOptions(r)

	res, err := h.gw.FetchMarketsResult(r.Context(), opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOptions) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	norm := opts
	if norm.Limit <= 0 {
		norm.Limit = 20
	}
	if norm.Page <= 0 {
		norm.Page = 1
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets:        res.Markets,
		Count:          len(res.Markets),
		Source:         res.Source,
		Fallback:       res.Fallback,
		FallbackReason: res.FallbackReason,
		Limit:          norm.Limit,
		Page:           norm.Page,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.gw.FetchMarketByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// GetMarketBySlug returns a single market looked up by its URL slug.
// GET /api/markets/slug/{slug}
func (h *MarketHandler) GetMarketBySlug(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing market slug")
		return
	}

	market, err := h.gw.FetchMarketBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market by slug failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// ListCategories returns the available category names.
// GET /api/categories
func (h *MarketHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.gw.Categories(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list categories failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// GetStats returns listing-wide aggregates.
// GET /api/stats
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gw.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// TestConnection reports live upstream reachability.
// GET /api/connection
func (h *MarketHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": h.gw.TestConnection(r.Context()),
	})
}
