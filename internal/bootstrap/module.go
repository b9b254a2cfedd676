package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"threatcache/internal/bootstrap/config"
	"threatcache/internal/bootstrap/database"
	"threatcache/internal/bootstrap/logging"
	cacheinfra "threatcache/internal/infrastructure/cache"
	"threatcache/internal/infrastructure/feed"
	sqliterepo "threatcache/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "threatcache/internal/infrastructure/persistence/sqlite/uow"
	"threatcache/internal/ports"
	"threatcache/internal/usecase/threatintel"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewHashStore,
			fx.As(new(ports.HashStore), new(cacheinfra.Initializer)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewMetadataStore,
			fx.As(new(ports.MetadataStore)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideFeedSource),
	fx.Provide(provideService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithComponent(p.Ctx, "bootstrap.fx")
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	// Closed through App.Close once everything built on it exists; this
	// covers a start that fails before then.
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

// provideFeedSource yields a nil source when feed.url is unset; lookups and
// stats still work without one.
func provideFeedSource(ctx context.Context, cfg config.Config) (ports.FeedSource, error) {
	if strings.TrimSpace(cfg.Feed.URL) == "" {
		logging.Warn(logging.WithComponent(ctx, "bootstrap.fx"), "feed.url is not set; updates are disabled")
		return nil, nil
	}
	src, err := feed.NewSource(cfg.Feed)
	if err != nil {
		return nil, err
	}
	logging.Debug(logging.WithComponent(ctx, "bootstrap.fx"), "feed source configured", slog.String("location", src.Location()))
	return src, nil
}

func provideService(
	cfg config.Config,
	hashes ports.HashStore,
	meta ports.MetadataStore,
	uow ports.UnitOfWork,
	source ports.FeedSource,
) *threatintel.Service {
	return threatintel.NewService(hashes, meta, uow, threatintel.Options{
		Source:    source,
		Parser:    feed.Parser{},
		Staleness: cfg.Feed.Staleness,
	})
}

func provideApp(
	lc fx.Lifecycle,
	ctx context.Context,
	cfg config.Config,
	db *gorm.DB,
	hashes ports.HashStore,
	source ports.FeedSource,
	svc *threatintel.Service,
) *App {
	app := &App{
		Config:  cfg,
		DB:      db,
		Hashes:  hashes,
		Source:  source,
		Service: svc,
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return app.Close(ctx)
		},
	})
	return app
}
