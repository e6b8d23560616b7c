/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
	"paymonitor/internal/usecase/watchconsole"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the live payment console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawFilter, _ := cmd.Flags().GetString("source")
		filter, err := watchconsole.ParseFilter(rawFilter)
		if err != nil {
			return err
		}
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := watchconsole.NewWatchModel(ctx, svc, watchconsole.Options{
			Filter:          filter,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run watch console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("source", "all", "Initial filter: all|alipay|wechat")
	watchCmd.Flags().Duration("refresh-interval", 5*time.Second, "Interval between forced reloads")
}
