/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/ports"
	"paymonitor/internal/usecase/payment"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and maintain stored payment records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		filter, err := resolveFilter(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		records, err := svc.QueryRecords(ctx, payment.RecordQuery{Filter: filter, Limit: limit, Offset: offset})
		if err != nil {
			logging.Error(ctx, "list records failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list records")
		}

		if asJSON {
			return writeJSONOutput(cmd.OutOrStdout(), records)
		}
		if len(records) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "no records")
			return errs.Wrap(err, "write list output")
		}
		for _, record := range records {
			if err := printRecord(cmd.OutOrStdout(), record); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := parseRecordID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		record, err := svc.GetRecord(ctx, id)
		if err != nil {
			return errs.Wrapf(err, "get record %d", id)
		}
		return writeJSONOutput(cmd.OutOrStdout(), record)
	}),
}

var recordsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := parseRecordID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		patch, err := resolvePatch(cmd)
		if err != nil {
			return err
		}

		record, err := svc.PatchRecord(ctx, id, patch)
		if err != nil {
			logging.Error(ctx, "update record failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "update record %d", id)
		}
		return printRecord(cmd.OutOrStdout(), record)
	}),
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := parseRecordID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		if err := svc.DeleteRecord(ctx, id); err != nil {
			return errs.Wrapf(err, "delete record %d", id)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted record: %d\n", id)
		return errs.Wrap(err, "write delete output")
	}),
}

var recordsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return errors.New("refusing to delete every record without --yes")
		}
		removed, err := svc.DeleteAll(ctx)
		if err != nil {
			return errs.Wrap(err, "delete all records")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", removed)
		return errs.Wrap(err, "write clear output")
	}),
}

var recordsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than a cutoff",
	Long: "Delete records captured strictly before --before, or older than --older-than.\n" +
		"Without either flag retention.max_age from the config is used.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		before, _ := cmd.Flags().GetString("before")
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if strings.TrimSpace(before) != "" && olderThan > 0 {
			return errors.New("before and older-than are mutually exclusive")
		}

		var (
			removed int64
			err     error
		)
		switch {
		case strings.TrimSpace(before) != "":
			cutoff, parseErr := parseTimeFlag("before", before)
			if parseErr != nil {
				return parseErr
			}
			removed, err = svc.DeleteBefore(ctx, *cutoff)
		case olderThan > 0:
			removed, err = svc.PruneOlderThan(ctx, olderThan)
		case app.Config.Retention.MaxAge > 0:
			removed, err = svc.PruneOlderThan(ctx, app.Config.Retention.MaxAge)
		default:
			return errors.New("no cutoff: set --before, --older-than or retention.max_age")
		}
		if err != nil {
			logging.Error(ctx, "prune records failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "prune records")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", removed)
		return errs.Wrap(err, "write prune output")
	}),
}

func resolveFilter(cmd *cobra.Command) (ports.RecordFilter, error) {
	var filter ports.RecordFilter

	rawSource, _ := cmd.Flags().GetString("source")
	if strings.TrimSpace(rawSource) != "" {
		source, err := domainpayment.ParseSource(rawSource)
		if err != nil {
			return ports.RecordFilter{}, err
		}
		filter.Source = &source
	}

	since, _ := cmd.Flags().GetString("since")
	start, err := parseTimeFlag("since", since)
	if err != nil {
		return ports.RecordFilter{}, err
	}
	until, _ := cmd.Flags().GetString("until")
	end, err := parseTimeFlag("until", until)
	if err != nil {
		return ports.RecordFilter{}, err
	}
	filter.Start = start
	filter.End = end
	return filter, nil
}

func resolvePatch(cmd *cobra.Command) (payment.RecordPatch, error) {
	var patch payment.RecordPatch
	flags := cmd.Flags()

	if flags.Changed("amount") {
		raw, _ := flags.GetString("amount")
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return payment.RecordPatch{}, errs.Wrapf(err, "parse amount %q", raw)
		}
		patch.Amount = &amount
	}
	if flags.Changed("source") {
		raw, _ := flags.GetString("source")
		source, err := domainpayment.ParseSource(raw)
		if err != nil {
			return payment.RecordPatch{}, err
		}
		patch.Source = &source
	}
	if flags.Changed("timestamp") {
		raw, _ := flags.GetString("timestamp")
		ts, err := parseTimeFlag("timestamp", raw)
		if err != nil {
			return payment.RecordPatch{}, err
		}
		patch.Timestamp = ts
	}
	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		patch.Title = &title
	}
	if flags.Changed("description") {
		description, _ := flags.GetString("description")
		patch.Description = &description
	}

	if patch == (payment.RecordPatch{}) {
		return payment.RecordPatch{}, errors.New("nothing to update (set --amount, --source, --timestamp, --title or --description)")
	}
	return patch, nil
}

// parseTimeFlag accepts RFC3339 or a plain date. An empty value yields nil.
func parseTimeFlag(name string, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: want RFC3339, \"2006-01-02 15:04:05\" or \"2006-01-02\"", name, raw)
}

func parseRecordID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

func printRecord(w io.Writer, record domainpayment.Record) error {
	_, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
		record.ID,
		record.Timestamp.Local().Format(time.DateTime),
		record.Source,
		record.Amount.StringFixed(2),
		record.Title,
		record.Description,
	)
	return err
}

func writeJSONOutput(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return errs.Wrap(encoder.Encode(value), "write json output")
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsGetCmd, recordsUpdateCmd, recordsDeleteCmd, recordsClearCmd, recordsPruneCmd)

	recordsListCmd.Flags().String("source", "", "Filter by source: alipay|wechat")
	recordsListCmd.Flags().String("since", "", "Inclusive lower bound on capture time")
	recordsListCmd.Flags().String("until", "", "Inclusive upper bound on capture time")
	recordsListCmd.Flags().Int("limit", 0, "Maximum records to show (0 = all)")
	recordsListCmd.Flags().Int("offset", 0, "Records to skip")
	recordsListCmd.Flags().Bool("json", false, "Print records as JSON")

	recordsUpdateCmd.Flags().String("amount", "", "New amount")
	recordsUpdateCmd.Flags().String("source", "", "New source: alipay|wechat")
	recordsUpdateCmd.Flags().String("timestamp", "", "New capture time")
	recordsUpdateCmd.Flags().String("title", "", "New title")
	recordsUpdateCmd.Flags().String("description", "", "New description")

	recordsClearCmd.Flags().Bool("yes", false, "Confirm deleting every record")

	recordsPruneCmd.Flags().String("before", "", "Delete records captured before this time")
	recordsPruneCmd.Flags().Duration("older-than", 0, "Delete records older than this age, e.g. 720h")
}
