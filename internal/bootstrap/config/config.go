package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"threatcache/internal/bootstrap/logging"
	"threatcache/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

// FeedConfig describes the remote blocklist document.
type FeedConfig struct {
	// URL is an http(s) or file:// location of the JSON document.
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	Staleness time.Duration `mapstructure:"staleness"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	WakeInterval time.Duration `mapstructure:"wake_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DefaultStaleness = 24 * time.Hour
	DefaultMaxBytes  = 64 << 20
)

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("threatcache")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Debug(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Debug(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_dsn", cfg.Database.DSN),
		slog.Bool("feed_configured", cfg.Feed.URL != ""),
	)

	return cfg, nil
}

// Validate checks invariants that do not depend on the command being run.
// An empty feed.url is allowed here; commands that fetch reject it.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Feed.Staleness <= 0 {
		return fmt.Errorf("feed.staleness must be positive, got %s", c.Feed.Staleness)
	}
	if c.Feed.Timeout < 0 {
		return fmt.Errorf("feed.timeout must not be negative, got %s", c.Feed.Timeout)
	}
	if c.Feed.MaxBytes <= 0 {
		return fmt.Errorf("feed.max_bytes must be positive, got %d", c.Feed.MaxBytes)
	}
	if c.Server.WakeInterval < time.Minute {
		return fmt.Errorf("server.wake_interval too small (%s), must be >=1m", c.Server.WakeInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "threatcache")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".threatcache/threatcache.sqlite")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.max_bytes", DefaultMaxBytes)
	v.SetDefault("feed.staleness", DefaultStaleness)
	v.SetDefault("feed.user_agent", "threatcache/1")
	v.SetDefault("server.addr", "127.0.0.1:8089")
	v.SetDefault("server.wake_interval", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
