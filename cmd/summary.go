/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show totals per source",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		since, _ := cmd.Flags().GetString("since")
		start, err := parseTimeFlag("since", since)
		if err != nil {
			return err
		}
		until, _ := cmd.Flags().GetString("until")
		end, err := parseTimeFlag("until", until)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		summary, err := svc.Summary(ctx, start, end)
		if err != nil {
			logging.Error(ctx, "load summary failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load summary")
		}

		if asJSON {
			return writeJSONOutput(cmd.OutOrStdout(), summary)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(),
			"records: %d\ntotal:   %s\nalipay:  %s\nwechat:  %s\n",
			summary.Count,
			summary.Total.StringFixed(2),
			summary.Alipay.StringFixed(2),
			summary.Wechat.StringFixed(2),
		)
		return errs.Wrap(err, "write summary output")
	}),
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().String("since", "", "Inclusive lower bound on capture time")
	summaryCmd.Flags().String("until", "", "Inclusive upper bound on capture time")
	summaryCmd.Flags().Bool("json", false, "Print the summary as JSON")
}
