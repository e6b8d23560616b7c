/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
	"paymonitor/internal/transport/httpapi"
	"paymonitor/internal/usecase/payment"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP ingest and query API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		serverCfg := app.Config.Server
		if addr, _ := cmd.Flags().GetString("addr"); strings.TrimSpace(addr) != "" {
			serverCfg.Addr = addr
		}

		options := httpapi.Options{IngestSecret: serverCfg.IngestSecret}
		if app.Registry != nil {
			options.Gatherer = prometheus.Gatherer(app.Registry)
		}
		if options.IngestSecret == "" {
			logging.Warn(ctx, "ingest routes accept unsigned requests; set server.ingest_secret to require signatures")
		}

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := httpapi.Serve(runCtx, serverCfg, httpapi.NewRouter(svc, options)); err != nil {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http api")
		}
		logging.Info(ctx, "http server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address override, e.g. :8080")
}
