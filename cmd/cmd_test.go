package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	domainpayment "paymonitor/internal/domain/payment"
)

func TestParseEventsArrayAndLines(t *testing.T) {
	t.Parallel()

	array := []byte(`[
		{"origin":"com.eg.android.AlipayGphone","title":"支付宝","body":"收款到账1.00元"},
		{"origin":"com.tencent.mm","body":"微信收款助手 收款2.00元","key":"k-2"}
	]`)
	events, err := parseEvents(array)
	if err != nil {
		t.Fatalf("parseEvents(array) error = %v", err)
	}
	if len(events) != 2 || events[1].Key != "k-2" || events[0].Origin != domainpayment.AlipayOrigin {
		t.Fatalf("parseEvents(array) = %+v", events)
	}

	lines := []byte("{\"origin\":\"com.tencent.mm\",\"body\":\"收款成功\"}\n\n{\"origin\":\"x\",\"sub_text\":\"s\"}\n")
	events, err = parseEvents(lines)
	if err != nil {
		t.Fatalf("parseEvents(lines) error = %v", err)
	}
	if len(events) != 2 || events[1].SubText != "s" {
		t.Fatalf("parseEvents(lines) = %+v", events)
	}

	if _, err := parseEvents([]byte("  \n")); err == nil {
		t.Fatalf("parseEvents(empty) should fail")
	}
	if _, err := parseEvents([]byte("{\"origin\":\"x\"}\nnot json\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("parseEvents(bad line) error = %v, want line 2", err)
	}
}

func TestParseTimeFlag(t *testing.T) {
	t.Parallel()

	got, err := parseTimeFlag("since", "")
	if err != nil || got != nil {
		t.Fatalf("parseTimeFlag(empty) = %v, %v", got, err)
	}

	got, err = parseTimeFlag("since", "2026-03-01T08:00:00Z")
	if err != nil {
		t.Fatalf("parseTimeFlag(rfc3339) error = %v", err)
	}
	if got.Hour() != 8 || got.Location().String() != "UTC" {
		t.Fatalf("parseTimeFlag(rfc3339) = %v", got)
	}

	if _, err := parseTimeFlag("since", "2026-03-01"); err != nil {
		t.Fatalf("parseTimeFlag(date) error = %v", err)
	}
	if _, err := parseTimeFlag("since", "yesterday"); err == nil || !strings.Contains(err.Error(), "--since") {
		t.Fatalf("parseTimeFlag(bad) error = %v", err)
	}
}

func TestParseRecordID(t *testing.T) {
	t.Parallel()

	if id, err := parseRecordID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parseRecordID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"0", "-1", "abc", ""} {
		if _, err := parseRecordID(raw); err == nil {
			t.Fatalf("parseRecordID(%q) should fail", raw)
		}
	}
}

func newPatchCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "update"}
	cmd.Flags().String("amount", "", "")
	cmd.Flags().String("source", "", "")
	cmd.Flags().String("timestamp", "", "")
	cmd.Flags().String("title", "", "")
	cmd.Flags().String("description", "", "")
	return cmd
}

func TestResolvePatchOnlyChangedFlags(t *testing.T) {
	t.Parallel()

	cmd := newPatchCmd()
	if err := cmd.ParseFlags([]string{"--amount", "12.30", "--description", ""}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	patch, err := resolvePatch(cmd)
	if err != nil {
		t.Fatalf("resolvePatch() error = %v", err)
	}
	if patch.Amount == nil || patch.Amount.String() != "12.3" {
		t.Fatalf("patch.Amount = %v", patch.Amount)
	}
	if patch.Description == nil || *patch.Description != "" {
		t.Fatalf("patch.Description = %v, want explicit empty", patch.Description)
	}
	if patch.Source != nil || patch.Title != nil || patch.Timestamp != nil {
		t.Fatalf("unchanged flags leaked into patch: %+v", patch)
	}

	if _, err := resolvePatch(newPatchCmd()); err == nil {
		t.Fatalf("resolvePatch() without flags should fail")
	}

	bad := newPatchCmd()
	if err := bad.ParseFlags([]string{"--source", "paypal"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if _, err := resolvePatch(bad); err == nil {
		t.Fatalf("resolvePatch(paypal) should fail")
	}
}

func TestCommandsAgainstTempStore(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configBody := "database:\n  dsn: " + filepath.ToSlash(filepath.Join(dir, "payments.sqlite")) + "\n" +
		"metrics:\n  enabled: false\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(io.Discard)
		rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
		t.Cleanup(func() {
			rootCmd.SetOut(nil)
			rootCmd.SetErr(nil)
			rootCmd.SetArgs(nil)
		})
		if err := Execute(context.Background()); err != nil {
			t.Fatalf("Execute(%v) error = %v", args, err)
		}
		return out.String()
	}

	if got := run("init-db"); !strings.Contains(got, "version 1") {
		t.Fatalf("init-db output = %q", got)
	}

	got := run("ingest",
		"--origin", domainpayment.AlipayOrigin,
		"--title", "支付宝",
		"--body", "收款到账10.50元",
	)
	if !strings.Contains(got, "stored") || !strings.Contains(got, "amount=10.5") {
		t.Fatalf("ingest output = %q", got)
	}

	got = run("summary", "--json")
	if !strings.Contains(got, `"total": "10.5"`) || !strings.Contains(got, `"count": 1`) {
		t.Fatalf("summary output = %q", got)
	}
}
