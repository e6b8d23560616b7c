/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"paymonitor/internal/bootstrap"
	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest notification events from flags or a file",
	Long: "Ingest one notification from flags, or many from --file.\n" +
		"The file holds a JSON array of events or one JSON event per line; use - for stdin.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *payment.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		events, err := resolveEvents(cmd)
		if err != nil {
			return err
		}

		results, err := svc.IngestBatch(ctx, events)
		for i, result := range results {
			if writeErr := printIngestResult(cmd.OutOrStdout(), i, result); writeErr != nil {
				return errs.Wrap(writeErr, "write ingest output")
			}
		}
		if err != nil {
			logging.Error(ctx, "ingest events failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "ingest events")
		}
		return nil
	}),
}

func printIngestResult(w io.Writer, index int, result payment.IngestResult) error {
	if result.Record == nil {
		_, err := fmt.Fprintf(w, "#%d %s reason=%s\n", index, result.Outcome, result.Reason)
		return err
	}
	_, err := fmt.Fprintf(w, "#%d %s id=%d source=%s amount=%s\n",
		index, result.Outcome, result.Record.ID, result.Record.Source, result.Record.Amount.String())
	return err
}

func resolveEvents(cmd *cobra.Command) ([]domainpayment.NotificationEvent, error) {
	file, _ := cmd.Flags().GetString("file")
	origin, _ := cmd.Flags().GetString("origin")

	if strings.TrimSpace(file) != "" && strings.TrimSpace(origin) != "" {
		return nil, errors.New("file and origin are mutually exclusive")
	}

	if strings.TrimSpace(file) != "" {
		var (
			raw []byte
			err error
		)
		if file == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, errs.Wrapf(err, "read events file %q", file)
		}
		return parseEvents(raw)
	}

	if strings.TrimSpace(origin) == "" {
		return nil, errors.New("origin is required (set --origin or --file)")
	}
	title, _ := cmd.Flags().GetString("title")
	body, _ := cmd.Flags().GetString("body")
	bigText, _ := cmd.Flags().GetString("big-text")
	subText, _ := cmd.Flags().GetString("sub-text")
	key, _ := cmd.Flags().GetString("key")
	return []domainpayment.NotificationEvent{{
		Origin:  origin,
		Title:   title,
		Body:    body,
		BigText: bigText,
		SubText: subText,
		Key:     key,
	}}, nil
}

// parseEvents accepts a JSON array or JSON lines. Blank lines are skipped.
func parseEvents(raw []byte) ([]domainpayment.NotificationEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("events file is empty")
	}

	if trimmed[0] == '[' {
		var events []domainpayment.NotificationEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, errs.Wrap(err, "decode events array")
		}
		return events, nil
	}

	var events []domainpayment.NotificationEvent
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var event domainpayment.NotificationEvent
		if err := json.Unmarshal([]byte(text), &event); err != nil {
			return nil, errs.Wrapf(err, "decode event on line %d", line)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, "scan events")
	}
	return events, nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("file", "", "Events file (JSON array or JSON lines, - for stdin)")
	ingestCmd.Flags().String("origin", "", "Origin package of a single event")
	ingestCmd.Flags().String("title", "", "Notification title")
	ingestCmd.Flags().String("body", "", "Notification body")
	ingestCmd.Flags().String("big-text", "", "Expanded notification text")
	ingestCmd.Flags().String("sub-text", "", "Notification sub text")
	ingestCmd.Flags().String("key", "", "Source-side notification key")
}
