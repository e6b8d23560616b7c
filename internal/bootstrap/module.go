package bootstrap

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"paymonitor/internal/bootstrap/config"
	"paymonitor/internal/bootstrap/database"
	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	cacheinfra "paymonitor/internal/infrastructure/cache"
	metricsinfra "paymonitor/internal/infrastructure/metrics"
	"paymonitor/internal/infrastructure/rulesfile"
	sqliterepo "paymonitor/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "paymonitor/internal/infrastructure/persistence/sqlite/uow"
	"paymonitor/internal/ports"
	"paymonitor/internal/usecase/payment"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideRegistry),
	fx.Provide(provideApp),
	fx.Provide(sqliteuow.NewGate),
	fx.Provide(
		fx.Annotate(
			func(gate *sqliteuow.Gate) *sqliteuow.Gate { return gate },
			fx.As(new(ports.CommitNotifier)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewPaymentRepository,
			fx.As(new(ports.PaymentRepository)),
			fx.As(new(ports.PaymentReadRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideMetrics),
	fx.Provide(provideParser),
	fx.Provide(provideHub),
	fx.Provide(provideService),
	fx.Invoke(migrateOnStart),
	fx.Invoke(purgeOnStart),
	fx.Invoke(watchRules),
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

// provideRegistry returns nil when metrics are disabled.
func provideRegistry(cfg config.Config) *prometheus.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideApp(cfg config.Config, db *gorm.DB, reg *prometheus.Registry) *App {
	return &App{
		Config:   cfg,
		DB:       db,
		Registry: reg,
	}
}

func provideMetrics(cfg config.Config, reg *prometheus.Registry) (ports.IngestMetrics, error) {
	if reg == nil {
		return metricsinfra.Nop{}, nil
	}
	m, err := metricsinfra.New(cfg.App.Name, reg)
	if err != nil {
		return nil, errs.Wrap(err, "register ingest metrics")
	}
	return m, nil
}

func provideParser(ctx context.Context, cfg config.Config) (*domainpayment.Parser, error) {
	rules, err := domainpayment.LoadRules(cfg.Ingest.RulesFile)
	if err != nil {
		return nil, errs.Wrap(err, "load ingest rules")
	}
	if cfg.Ingest.RulesFile != "" {
		logging.Info(logging.WithComponent(ctx, "bootstrap.fx"), "ingest rules loaded",
			slog.String("path", cfg.Ingest.RulesFile),
			slog.Int("amount_rules", len(rules.AmountRules())),
		)
	}
	return domainpayment.NewParser(rules, cfg.Ingest.DefaultTitle), nil
}

func provideHub(lc fx.Lifecycle, repo ports.PaymentReadRepository, notifier ports.CommitNotifier) *payment.Hub {
	hub := payment.NewHub(repo, notifier)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

type serviceParams struct {
	fx.In

	Config  config.Config
	Repo    ports.PaymentRepository
	UOW     ports.UnitOfWork
	Cache   ports.Cache
	Parser  *domainpayment.Parser
	Metrics ports.IngestMetrics
	Hub     *payment.Hub
}

func provideService(p serviceParams) *payment.Service {
	opts := []payment.Option{
		payment.WithMetrics(p.Metrics),
		payment.WithHub(p.Hub),
	}
	if p.Config.Ingest.DedupByKey {
		opts = append(opts, payment.WithDedupByKey(p.Config.Ingest.DedupWindow))
	}
	return payment.NewService(p.Repo, p.UOW, p.Cache, p.Parser, opts...)
}

// migrateOnStart keeps every command usable against a fresh store.
func migrateOnStart(lc fx.Lifecycle, app *App) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return app.InitSchema(ctx)
		},
	})
}

// purgeOnStart drops dedup markers left behind by earlier runs.
func purgeOnStart(lc fx.Lifecycle, svc *payment.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.PurgeExpiredMarkers(ctx)
			return err
		},
	})
}

// watchRules swaps the service parser whenever the rules file changes.
func watchRules(lc fx.Lifecycle, ctx context.Context, cfg config.Config, svc *payment.Service) error {
	if !cfg.Ingest.WatchRules || cfg.Ingest.RulesFile == "" {
		return nil
	}

	watcher, err := rulesfile.NewWatcher(cfg.Ingest.RulesFile, func(rules *domainpayment.Rules) {
		svc.SetParser(domainpayment.NewParser(rules, cfg.Ingest.DefaultTitle))
	})
	if err != nil {
		return errs.Wrap(err, "create rules watcher")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				if err := watcher.Run(runCtx); err != nil {
					logging.Error(logging.WithComponent(runCtx, "bootstrap.fx"), "rules watcher stopped", slog.Any("err", errs.Loggable(err)))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
	return nil
}
