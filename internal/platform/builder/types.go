package builder

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/polysight/marketgate/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string so builder API
// responses work whether "volume" is sent as 12345.6 or "12345.6".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket is a market record as returned by the builder API.
type APIMarket struct {
	ID               string      `json:"id"`
	ConditionID      string      `json:"conditionId"`
	Slug             string      `json:"slug"`
	Question         string      `json:"question"`
	Description      string      `json:"description"`
	Outcomes         []string    `json:"outcomes"`
	EndTime          string      `json:"endTime"`
	ResolutionSource string      `json:"resolutionSource"`
	Creator          string      `json:"creator"`
	CreatorFee       flexFloat   `json:"creatorFee"`
	Liquidity        flexFloat   `json:"liquidity"`
	Volume           flexFloat   `json:"volume"`
	Volume24h        flexFloat   `json:"volume24h"`
	Status           string      `json:"status"` // "pending", "active", "resolved", "canceled"
	Category         string      `json:"category"`
	CreatedAt        string      `json:"createdAt"`
	UpdatedAt        string      `json:"updatedAt"`
	PoolBalances     []flexFloat `json:"poolBalances"`
	CurrentPrices    []float64   `json:"currentPrices"`
}

// APIAccount is the builder account profile returned by /account/info.
type APIAccount struct {
	WalletAddress       string    `json:"walletAddress"`
	Email               string    `json:"email"`
	TotalMarketsCreated int       `json:"totalMarketsCreated"`
	TotalVolume         flexFloat `json:"totalVolume"`
	TotalFeesEarned     flexFloat `json:"totalFeesEarned"`
	AccountStatus       string    `json:"accountStatus"`
}

// APITrade is a trade event as returned by /trades and the realtime feed.
type APITrade struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"marketId"`
	Outcome   string    `json:"outcome"`
	Price     flexFloat `json:"price"`
	Amount    flexFloat `json:"amount"`
	TakerSide string    `json:"takerSide"` // "buy" or "sell"
	Timestamp string    `json:"timestamp"`
}

// WSCommand is a client-to-server message on the realtime socket.
type WSCommand struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	ID      string `json:"id,omitempty"`
}

// WSAuthCommand authenticates the realtime connection. It must be the first
// message on the socket and precede every subscription.
type WSAuthCommand struct {
	Type       string `json:"type"`
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// PriceUpdateMessage is a "price_update" frame from the realtime feed.
type PriceUpdateMessage struct {
	Type      string    `json:"type"`
	MarketID  string    `json:"id"`
	Outcome   string    `json:"outcome"`
	Price     flexFloat `json:"price"`
	Timestamp string    `json:"timestamp"`
}

// TradeMessage is a "trade" frame from the realtime feed.
type TradeMessage struct {
	Type  string   `json:"type"`
	Trade APITrade `json:"trade"`
}

// ToDomain converts the API record into the provider-neutral shape consumed
// by the mapper and the gateway facade.
func (m *APIMarket) ToDomain() domain.UpstreamMarket {
	pools := make([]float64, 0, len(m.PoolBalances))
	for _, p := range m.PoolBalances {
		pools = append(pools, float64(p))
	}
	if len(pools) == 0 {
		pools = nil
	}

	return domain.UpstreamMarket{
		ID:               m.ID,
		ConditionID:      m.ConditionID,
		Slug:             m.Slug,
		Question:         m.Question,
		Description:      m.Description,
		Outcomes:         m.Outcomes,
		PoolBalances:     pools,
		Volume:           float64(m.Volume),
		Volume24h:        float64(m.Volume24h),
		Liquidity:        float64(m.Liquidity),
		Status:           m.Status,
		Category:         m.Category,
		ResolutionSource: m.ResolutionSource,
		Creator:          m.Creator,
		CreatedAt:        parseTime(m.CreatedAt),
		UpdatedAt:        parseTime(m.UpdatedAt),
		EndTime:          parseTime(m.EndTime),
	}
}

// ToDomain converts a trade frame into the domain event shape.
func (t *APITrade) ToDomain() domain.Trade {
	return domain.Trade{
		ID:        t.ID,
		MarketID:  t.MarketID,
		Outcome:   t.Outcome,
		Price:     float64(t.Price),
		Amount:    float64(t.Amount),
		Side:      t.TakerSide,
		Timestamp: parseTime(t.Timestamp),
	}
}

// ToDomain converts a price update frame into the domain event shape.
func (p *PriceUpdateMessage) ToDomain() domain.PriceUpdate {
	ts := parseTime(p.Timestamp)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return domain.PriceUpdate{
		MarketID:  p.MarketID,
		Outcome:   p.Outcome,
		Price:     float64(p.Price),
		Timestamp: ts,
	}
}

// parseTime accepts RFC 3339 timestamps and falls back to unix seconds.
// Malformed values decode to the zero time rather than failing the record.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
