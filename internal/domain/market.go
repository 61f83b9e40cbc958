package domain

import "time"

// Category is the normalized market category enumeration. Upstream records
// carry free-form category hints; the mapper folds them into this set.
type Category string

const (
	CategoryPolitics      Category = "Politics"
	CategorySports        Category = "Sports"
	CategoryCrypto        Category = "Crypto"
	CategoryTechnology    Category = "Technology"
	CategoryFinance       Category = "Finance"
	CategoryEntertainment Category = "Entertainment"
	CategoryScience       Category = "Science"
	CategoryWorldEvents   Category = "World Events"
	CategoryEnvironment   Category = "Environment"
	CategoryGeneral       Category = "General"
)

// DefaultCategories is the fixed list served when no category can be derived
// from live data.
var DefaultCategories = []Category{
	CategoryPolitics,
	CategorySports,
	CategoryCrypto,
	CategoryTechnology,
	CategoryFinance,
	CategoryEntertainment,
	CategoryWorldEvents,
	CategoryScience,
	CategoryEnvironment,
}

// Outcome is one side of a market. Probability and CurrentPrice are equal in
// this model; both are kept because downstream consumers read them separately.
type Outcome struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Probability    float64 `json:"probability"` // 0-1
	CurrentPrice   float64 `json:"currentPrice"`
	Volume         float64 `json:"volume"`
	Color          string  `json:"color"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// ExternalData preserves provenance of a normalized market so callers can
// trace a record back to the upstream system.
type ExternalData struct {
	Source       string    `json:"source"`
	OriginalID   string    `json:"originalId"`
	ConditionID  string    `json:"conditionId,omitempty"`
	Status       string    `json:"status,omitempty"`
	PoolBalances []float64 `json:"poolBalances,omitempty"`
}

// Market is the application's normalized market shape. Every field is always
// populated; absent upstream values are replaced with documented defaults by
// the mapper rather than propagated as missing.
type Market struct {
	ID             string       `json:"id"`
	Slug           string       `json:"slug"`
	Question       string       `json:"question"`
	Description    string       `json:"description"`
	Category       Category     `json:"category"`
	Outcomes       []Outcome    `json:"outcomes"`
	Volume         float64      `json:"volume"`
	Volume24h      float64      `json:"volume24h"`
	Liquidity      float64      `json:"liquidity"`
	EndDate        time.Time    `json:"endDate"`
	Resolved       bool         `json:"resolved"`
	Creator        string       `json:"creator"`
	CreatedAt      time.Time    `json:"createdAt"`
	PriceChange24h float64      `json:"priceChange24h"` // signed percentage
	SentimentScore int          `json:"sentimentScore"` // 0-100
	Tags           []string     `json:"tags"`
	External       ExternalData `json:"externalData"`
}

// Stats aggregates the currently visible market set.
type Stats struct {
	TotalMarkets  int              `json:"totalMarkets"`
	ActiveMarkets int              `json:"activeMarkets"`
	TotalVolume   float64          `json:"totalVolume"`
	ByCategory    map[Category]int `json:"categoryDistribution"`
}

// PriceUpdate is a realtime price observation delivered over the upstream
// WebSocket channel.
type PriceUpdate struct {
	MarketID  string    `json:"marketId"`
	Outcome   string    `json:"outcome"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Trade is a realtime trade event delivered over the upstream WebSocket
// channel.
type Trade struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"marketId"`
	Outcome   string    `json:"outcome"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Side      string    `json:"side"` // "buy" or "sell"
	Timestamp time.Time `json:"timestamp"`
}
