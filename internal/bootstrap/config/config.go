package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retention RetentionConfig `mapstructure:"retention"`
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type IngestConfig struct {
	// RulesFile optionally extends the built-in keyword and amount tables.
	RulesFile    string        `mapstructure:"rules_file"`
	DefaultTitle string        `mapstructure:"default_title"`
	DedupByKey   bool          `mapstructure:"dedup_by_key"`
	DedupWindow  time.Duration `mapstructure:"dedup_window"`
	// WatchRules reloads RulesFile when it changes on disk.
	WatchRules   bool          `mapstructure:"watch_rules"`
}

type RetentionConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// IngestSecret signs POST bodies on the event routes; empty disables it.
	IngestSecret    string        `mapstructure:"ingest_secret"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

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

	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := strings.TrimSpace(configFile) != ""
	if explicit {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
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

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("dedup_by_key", cfg.Ingest.DedupByKey),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Ingest.DefaultTitle) == "" {
		return errors.New("ingest.default_title must not be empty")
	}
	if c.Ingest.DedupByKey && c.Ingest.DedupWindow < 0 {
		return errors.New("ingest.dedup_window must not be negative")
	}
	if c.Retention.MaxAge < 0 {
		return errors.New("retention.max_age must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "paymonitor")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".paymonitor/payments.sqlite")
	v.SetDefault("ingest.rules_file", "")
	v.SetDefault("ingest.default_title", "收款通知")
	v.SetDefault("ingest.dedup_by_key", false)
	v.SetDefault("ingest.dedup_window", 24*time.Hour)
	v.SetDefault("ingest.watch_rules", false)
	v.SetDefault("retention.max_age", 0)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.ingest_secret", "")
	v.SetDefault("metrics.enabled", true)
}
