package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polysight/marketgate/internal/feed"
	"github.com/polysight/marketgate/internal/pipeline"
	"github.com/polysight/marketgate/internal/server"
	"github.com/polysight/marketgate/internal/server/handler"
	"github.com/polysight/marketgate/internal/server/ws"
)

// ServeMode runs the HTTP and WebSocket API, plus the realtime feed when
// enabled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g)
	a.startFeed(ctx, g, deps, hub)
	a.startHTTPServer(ctx, g, deps, hub)

	return g.Wait()
}

// PollMode runs only the snapshot poll pipeline.
func (a *App) PollMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting poll mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPoller(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: API server, realtime feed, and poll pipeline.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := a.startHub(ctx, g)
	a.startFeed(ctx, g, deps, hub)
	a.startHTTPServer(ctx, g, deps, hub)
	a.startPoller(ctx, g, deps)

	return g.Wait()
}

// startHub starts the WebSocket fan-out hub.
func (a *App) startHub(ctx context.Context, g *errgroup.Group) *ws.Hub {
	hub := ws.NewHub(a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	return hub
}

// startFeed connects the upstream WebSocket feed and forwards updates into
// the price history tracker and the hub. Skipped unless enabled with at least
// one market to watch.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	if !a.cfg.Feed.Enabled || a.cfg.Upstream.WsURL == "" || len(a.cfg.Feed.Markets) == 0 {
		return
	}

	marketFeed := feed.NewMarketFeed(a.cfg.Upstream.WsURL, deps.Auth, a.cfg.Feed.Markets, deps.Tracker, a.logger)
	marketFeed.OnPriceUpdate(hub.BroadcastPriceUpdate)
	marketFeed.OnTrade(hub.BroadcastTrade)

	g.Go(func() error {
		defer marketFeed.Close()
		err := marketFeed.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})
}

// startPoller starts the snapshot poll pipeline.
func (a *App) startPoller(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var archiver pipeline.SnapshotArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	poller := pipeline.NewPoller(
		deps.Gateway,
		deps.SnapshotStore,
		archiver,
		deps.Notifier,
		a.cfg.Poll.PageSize,
		a.logger,
	)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting poll loop",
			slog.Duration("interval", a.cfg.Poll.Interval.Duration),
		)
		err := poller.RunLoop(ctx, a.cfg.Poll.Interval.Duration)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})
}

// startHTTPServer builds the API server and runs it until the context is
// cancelled, then shuts it down gracefully.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	if !a.cfg.Server.Enabled {
		return
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Gateway, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.ApiKey,
		RateLimiter:     deps.RateLimiter,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})
}
