package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polysight/marketgate/internal/crypto"
	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/history"
	"github.com/polysight/marketgate/internal/platform/builder"
)

// MarketFeed connects to the builder realtime WebSocket, subscribes to the
// market channel for the given market IDs, and fans each frame out to the
// price history tracker and any registered handlers. Reconnects on
// disconnect.
type MarketFeed struct {
	wsURL     string
	auth      crypto.HMACAuth
	marketIDs []string
	tracker   *history.Tracker
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}

	handlerMu     sync.RWMutex
	priceHandlers []domain.PriceUpdateHandler
	tradeHandlers []domain.TradeHandler
}

// NewMarketFeed creates a feed that will subscribe to the given market IDs.
// An incomplete auth triple connects unauthenticated; tracker may be nil when
// only raw forwarding is wanted.
func NewMarketFeed(wsURL string, auth crypto.HMACAuth, marketIDs []string, tracker *history.Tracker, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		wsURL:     wsURL,
		auth:      auth,
		marketIDs: marketIDs,
		tracker:   tracker,
		logger:    logger.With(slog.String("component", "market_feed")),
		done:      make(chan struct{}),
	}
}

// OnPriceUpdate registers a handler called for every price_update frame,
// after the tracker has recorded it.
func (f *MarketFeed) OnPriceUpdate(h domain.PriceUpdateHandler) {
	f.handlerMu.Lock()
	defer f.handlerMu.Unlock()
	f.priceHandlers = append(f.priceHandlers, h)
}

// OnTrade registers a handler called for every trade frame.
func (f *MarketFeed) OnTrade(h domain.TradeHandler) {
	f.handlerMu.Lock()
	defer f.handlerMu.Unlock()
	f.tradeHandlers = append(f.tradeHandlers, h)
}

// Run connects, subscribes to the configured markets, and runs until ctx is
// cancelled. Reconnects with backoff on disconnect.
func (f *MarketFeed) Run(ctx context.Context) error {
	if len(f.marketIDs) == 0 {
		f.logger.Info("no market IDs to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("realtime feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// Close stops the feed.
func (f *MarketFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *MarketFeed) runConnection(ctx context.Context) error {
	client := builder.NewWSClientWithAuth(f.wsURL, f.auth)
	defer client.Close()

	client.OnPriceUpdate(func(update domain.PriceUpdate) {
		if f.tracker != nil {
			f.tracker.Observe(update.MarketID, update.Price, update.Timestamp)
		}

		f.handlerMu.RLock()
		handlers := f.priceHandlers
		f.handlerMu.RUnlock()
		for _, h := range handlers {
			h(update)
		}
	})
	client.OnTrade(func(trade domain.Trade) {
		f.handlerMu.RLock()
		handlers := f.tradeHandlers
		f.handlerMu.RUnlock()
		for _, h := range handlers {
			h(trade)
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, f.marketIDs...); err != nil {
		return err
	}
	f.logger.Info("realtime feed subscribed", slog.Int("markets", len(f.marketIDs)))

	<-ctx.Done()
	return ctx.Err()
}
