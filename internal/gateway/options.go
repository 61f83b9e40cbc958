package gateway

import (
	"fmt"

	"github.com/polysight/marketgate/internal/domain"
)

// Sort keys accepted by FetchOptions.SortBy.
const (
	SortByVolume    = "volume"
	SortByLiquidity = "liquidity"
	SortByCreated   = "created"
	SortByEnding    = "ending"
)

const (
	defaultLimit = 20
	defaultPage  = 1
	maxLimit     = 100
)

// FetchOptions narrows and orders a market listing. The zero value requests
// the first page of the default listing.
type FetchOptions struct {
	// Category filters to records whose normalized category matches,
	// case-insensitively. Empty means all categories.
	Category string

	// Limit is the page size. Zero selects the default of 20.
	Limit int

	// Page is the 1-based page number. Zero selects page 1.
	Page int

	// SortBy orders the listing when no special filter is set. One of
	// "volume", "liquidity", "created", "ending". Empty selects "volume".
	SortBy string

	// Trending orders by 24h volume descending.
	Trending bool

	// New orders by creation time descending.
	New bool

	// Breaking restricts to records with 24h volume above a fixed
	// threshold and activity within the last hour.
	Breaking bool
}

// normalized returns a copy with defaults applied.
func (o FetchOptions) normalized() FetchOptions {
	if o.Limit == 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Page == 0 {
		o.Page = defaultPage
	}
	if o.SortBy == "" {
		o.SortBy = SortByVolume
	}
	return o
}

// validate rejects parameters that no pipeline stage can honor. Invalid
// options fail before any network attempt.
func (o FetchOptions) validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("gateway: %w: limit %d", domain.ErrInvalidOptions, o.Limit)
	}
	if o.Page < 0 {
		return fmt.Errorf("gateway: %w: page %d", domain.ErrInvalidOptions, o.Page)
	}
	switch o.SortBy {
	case "", SortByVolume, SortByLiquidity, SortByCreated, SortByEnding:
	default:
		return fmt.Errorf("gateway: %w: sortBy %q", domain.ErrInvalidOptions, o.SortBy)
	}
	return nil
}
