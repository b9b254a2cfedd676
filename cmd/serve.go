/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"threatcache/internal/bootstrap"
	"threatcache/internal/bootstrap/logging"
	"threatcache/internal/errs"
	"threatcache/internal/infrastructure/feed"
	"threatcache/internal/transport/httpapi"
	"threatcache/internal/usecase/threatintel"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lookup API and keep the dataset fresh",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, app)
	}),
}

func runServe(ctx context.Context, app *bootstrap.App) error {
	logCtx := logging.WithComponent(ctx, "cmd.serve")
	svc := app.Service

	if err := app.InitSchema(ctx); err != nil {
		return err
	}

	var ready atomic.Bool
	if _, found, err := svc.LastUpdate(ctx); err == nil && found {
		ready.Store(true)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpapi.Run(ctx, app.Config.Server.Addr, httpapi.NewRouter(ctx, svc, ready.Load))
	})

	if app.Source != nil {
		g.Go(func() error {
			wakeLoop(ctx, svc, app.Config.Server.WakeInterval, &ready)
			return nil
		})
	}

	if src, ok := app.Source.(*feed.FileSource); ok {
		w, err := feed.NewWatcher(src.Path(), 0, func(ctx context.Context) error {
			if _, err := svc.UpdateDatabase(ctx); err != nil {
				return err
			}
			ready.Store(true)
			return nil
		})
		if err != nil {
			return errs.Wrap(err, "create feed watcher")
		}
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logging.Error(logCtx, "serve stopped with error", slog.Any("err", errs.Loggable(err)))
		return err
	}
	logging.Info(logCtx, "serve stopped gracefully")
	return nil
}

// wakeLoop runs the staleness check at startup and on every tick. Failures
// are logged; the previous dataset keeps serving.
func wakeLoop(ctx context.Context, svc *threatintel.Service, interval time.Duration, ready *atomic.Bool) {
	logCtx := logging.WithComponent(ctx, "cmd.serve")

	check := func() {
		res, err := svc.CheckForUpdate(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logging.Warn(logCtx, "scheduled update failed", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
		ready.Store(true)
		if res.Updated {
			logging.Info(logCtx, "dataset refreshed", slog.Int("records", res.Summary.Count))
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
