package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/config"
	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc *payment.Service) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)
		if strings.TrimSpace(logLevel) != "" || strings.TrimSpace(logFormat) != "" {
			var err error
			if ctx, err = withLogSettings(ctx, cmd, config.LogConfig{Level: logLevel, Format: logFormat}); err != nil {
				return err
			}
		}

		var app *bootstrap.App
		var svc *payment.Service
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		// Flags win over the config file.
		if strings.TrimSpace(logLevel) == "" && strings.TrimSpace(logFormat) == "" {
			var err error
			if ctx, err = withLogSettings(ctx, cmd, app.Config.Log); err != nil {
				return err
			}
		}
		cmd.SetContext(ctx)

		if err := run(cmd, app, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

func withLogSettings(ctx context.Context, cmd *cobra.Command, settings config.LogConfig) (context.Context, error) {
	logger, err := logging.New(cmd.ErrOrStderr(), settings.Format, settings.Level)
	if err != nil {
		return ctx, errs.Wrap(err, "build logger")
	}
	return logging.WithLogger(ctx, logger), nil
}
