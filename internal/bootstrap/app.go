package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"threatcache/internal/bootstrap/config"
	"threatcache/internal/bootstrap/logging"
	"threatcache/internal/errs"
	"threatcache/internal/ports"
	"threatcache/internal/usecase/threatintel"
)

type App struct {
	Config  config.Config
	DB      *gorm.DB
	Hashes  ports.HashStore
	Source  ports.FeedSource
	Service *threatintel.Service
}

// InitSchema creates the collections and indexes and stamps the schema version.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	logging.Info(logCtx, "start schema migration")

	if err := a.Service.Init(ctx); err != nil {
		return errs.Wrap(err, "initialize store")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// Close releases the store. It is safe to call after the fx lifecycle has
// already stopped.
func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if a.Hashes == nil {
		return nil
	}
	if err := a.Hashes.Close(); err != nil {
		return errs.Wrap(err, "close store")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connection closed")
	return nil
}
