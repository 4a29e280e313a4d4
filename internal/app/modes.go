package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// snapshotInterval is how often the ledger balances are persisted.
const snapshotInterval = time.Minute

// RunMode drives the full pipeline: the engine consumes opportunities from
// the signal bus, the API and WebSocket hub serve clients, the relay fans
// alerts out to operators and the archiver prunes trade history to object
// storage.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Engine.Run(ctx) })

	if deps.Relay != nil {
		g.Go(func() error { return deps.Relay.Run(ctx) })
	}
	if deps.Archiver != nil {
		retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, retention)
		})
	}

	a.startServer(ctx, g, deps)
	g.Go(func() error { return a.snapshotLoop(ctx, deps) })

	return g.Wait()
}

// PaperMode serves the API over in-memory state. There is no bus, so
// opportunities arrive only via POST /api/trade; variant rotation runs on a
// local ticker instead of the engine loop.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	if deps.Server == nil {
		return fmt.Errorf("app: paper mode requires the HTTP server (set server.enabled)")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Testing.RotationInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				deps.Variants.Rotate(ctx)
			}
		}
	})

	a.startServer(ctx, g, deps)
	g.Go(func() error { return a.snapshotLoop(ctx, deps) })

	return g.Wait()
}

// ServerMode exposes the API and WebSocket hub without the engine loop,
// intended for read-only dashboards against the shared stores.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	if deps.Server == nil {
		return fmt.Errorf("app: server mode requires the HTTP server (set server.enabled)")
	}

	g, ctx := errgroup.WithContext(ctx)

	if deps.Relay != nil {
		g.Go(func() error { return deps.Relay.Run(ctx) })
	}

	a.startServer(ctx, g, deps)

	return g.Wait()
}

// startServer runs the HTTP server and hub (when present) under g, shutting
// the server down gracefully when the group context ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Server == nil {
		return
	}
	if deps.Hub != nil {
		g.Go(func() error { return deps.Hub.Run(ctx) })
	}
	g.Go(func() error { return deps.Server.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})
}

// snapshotLoop persists ledger balances periodically and once on shutdown, so
// a restart resumes from recent state.
func (a *App) snapshotLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := deps.Books.SaveSnapshot(saveCtx); err != nil {
				a.logger.Warn("final balance snapshot failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := deps.Books.SaveSnapshot(ctx); err != nil {
				a.logger.Warn("balance snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}
