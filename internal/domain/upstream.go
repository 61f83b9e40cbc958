package domain

import "time"

// UpstreamMarket is the provider-shaped market record as it arrives from the
// builder API (or the fallback generator, which emits the same shape so the
// mapper can be reused unmodified).
//
// Invariant: PoolBalances, when present, has the same length as Outcomes.
type UpstreamMarket struct {
	ID               string
	ConditionID      string
	Slug             string
	Question         string
	Description      string
	Outcomes         []string
	PoolBalances     []float64
	Volume           float64
	Volume24h        float64 // 0 when the provider omits it
	Liquidity        float64
	Status           string // "pending", "active", "resolved", "canceled"
	Category         string // optional explicit category hint
	ResolutionSource string
	Creator          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	EndTime          time.Time
}

// Active reports whether the record should appear in listings. Resolved and
// canceled markets are excluded from every listing path.
func (m *UpstreamMarket) Active() bool {
	return m.Status != "resolved" && m.Status != "canceled"
}
