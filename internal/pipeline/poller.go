// Package pipeline runs the background poll loop that keeps snapshot
// storage warm and alerts operators on source transitions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/gateway"
	"github.com/polysight/marketgate/internal/notify"
)

// MarketFetcher produces the normalized market listing with provenance.
type MarketFetcher interface {
	FetchMarketsResult(ctx context.Context, opts gateway.FetchOptions) (gateway.Result, error)
}

// SnapshotArchiver uploads a point-in-time listing to object storage.
type SnapshotArchiver interface {
	ArchiveSnapshots(ctx context.Context, source string, markets []domain.Market) (string, error)
}

// Alerter forwards operational events to configured notification channels.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Poller periodically fetches the full market listing through the gateway,
// upserts it into the snapshot store, and archives it to cold storage. The
// store and archiver are both optional; with neither configured the poller
// still runs, which keeps the gateway cache warm and fallback transitions
// observable.
type Poller struct {
	fetcher  MarketFetcher
	store    domain.SnapshotStore
	archiver SnapshotArchiver
	alerter  Alerter
	pageSize int
	logger   *slog.Logger

	inFallback bool
}

// NewPoller creates a Poller. store, archiver, and alerter may be nil.
func NewPoller(fetcher MarketFetcher, store domain.SnapshotStore, archiver SnapshotArchiver, alerter Alerter, pageSize int, logger *slog.Logger) *Poller {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		archiver: archiver,
		alerter:  alerter,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Run executes a single poll cycle: fetch, upsert, archive.
func (p *Poller) Run(ctx context.Context) error {
	res, err := p.fetcher.FetchMarketsResult(ctx, gateway.FetchOptions{Limit: p.pageSize})
	if err != nil {
		return fmt.Errorf("fetching markets: %w", err)
	}

	p.trackTransition(ctx, res)

	if len(res.Markets) == 0 {
		p.logger.Info("poll cycle returned no markets", slog.String("source", res.Source))
		return nil
	}

	if p.store != nil {
		if err := p.store.UpsertBatch(ctx, res.Markets); err != nil {
			return fmt.Errorf("upserting %d snapshots: %w", len(res.Markets), err)
		}
		total, err := p.store.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting snapshots: %w", err)
		}
		p.logger.Info("snapshot store updated",
			slog.Int("upserted", len(res.Markets)),
			slog.Int64("total", total),
		)
	}

	if p.archiver != nil {
		key, err := p.archiver.ArchiveSnapshots(ctx, res.Source, res.Markets)
		if err != nil {
			return fmt.Errorf("archiving snapshots: %w", err)
		}
		p.logger.Info("archived poll snapshot", slog.String("key", key))
	}

	p.logger.Info("poll cycle complete",
		slog.Int("markets", len(res.Markets)),
		slog.String("source", res.Source),
		slog.Bool("fallback", res.Fallback),
	)
	return nil
}

// RunLoop runs the poller on a repeating interval until the context is
// cancelled. Failed cycles are logged and alerted but do not stop the loop.
func (p *Poller) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := p.Run(ctx); err != nil {
		p.reportError(ctx, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				p.reportError(ctx, err)
			}
		}
	}
}

// trackTransition fires an alert when the serving source flips between live
// and fallback. Only edges are reported, not every degraded cycle.
func (p *Poller) trackTransition(ctx context.Context, res gateway.Result) {
	if res.Fallback == p.inFallback {
		return
	}
	p.inFallback = res.Fallback

	if res.Fallback {
		p.logger.Warn("gateway entered fallback mode", slog.String("reason", res.FallbackReason))
		p.alert(ctx, notify.EventFallbackEnter, "Gateway entered fallback mode",
			fmt.Sprintf("Serving deterministic fallback data. Reason: %s", res.FallbackReason))
		return
	}

	p.logger.Info("gateway recovered to live source", slog.String("source", res.Source))
	p.alert(ctx, notify.EventFallbackExit, "Gateway recovered",
		fmt.Sprintf("Live upstream restored, serving from %s.", res.Source))
}

func (p *Poller) reportError(ctx context.Context, err error) {
	p.logger.Error("poll cycle failed", slog.String("error", err.Error()))
	p.alert(ctx, notify.EventPollError, "Poll cycle failed", err.Error())
}

func (p *Poller) alert(ctx context.Context, event, title, message string) {
	if p.alerter == nil {
		return
	}
	if err := p.alerter.Notify(ctx, event, title, message); err != nil {
		p.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
