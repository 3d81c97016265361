package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/pipeline"
)

// resetFlags restores flag variables between runs of the shared rootCmd.
func resetFlags() {
	cfgFile, output, verbose = "", "text", false
	triggerFlags.all = false
	triggerFlags.campaign, triggerFlags.subject, triggerFlags.body, triggerFlags.cta = "", "", "", ""
	triggerFlags.expectedVolume, triggerFlags.daysSinceLastTest = 0, 0
	historyFlags.customer, historyFlags.decision, historyFlags.kind = "", "", ""
	historyFlags.limit, historyFlags.ascending = 50, false
	exportFlags.format, exportFlags.file, exportFlags.pretty = "json", "", false
	overrideFlags.action, overrideFlags.reason, overrideFlags.original = "", "", ""
	createFlags.name, createFlags.variants = "", nil
	createFlags.subject, createFlags.body, createFlags.cta = "", "", ""
	createFlags.controlShare = experiment.DefaultControlShare
	createFlags.confidence = experiment.DefaultConfidenceLevel
	listStatus, recordCount = "", 1
	sigFlags.control, sigFlags.variant = "", ""
	sigFlags.confidence = experiment.DefaultConfidenceLevel
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config whose SQLite files live under a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`ledger:
  backend: sqlite
  sqlite:
    path: %s
experiments:
  backend: sqlite
  sqlite:
    path: %s
telemetry:
  logging:
    level: error
%s`, filepath.Join(dir, "data", "ledger.db"), filepath.Join(dir, "data", "experiments.db"), extra)

	path := filepath.Join(dir, "cadence.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return v
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "Cadence "+Version) {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version -o json error = %v", err)
	}
	info := decodeJSON[map[string]any](t, out)
	if info["version"] != Version {
		t.Errorf("json version = %v, want %q", info["version"], Version)
	}
}

func TestTriggerAndLedgerCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := runCLI(t, "trigger", "cust_003", "cart_abandoned", "-c", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("trigger error = %v", err)
	}
	rows := decodeJSON[[]triggerRow](t, out)
	if len(rows) != 1 || rows[0].Result == nil {
		t.Fatalf("rows = %+v", rows)
	}
	res := rows[0].Result
	if res.Status != pipeline.StatusDispatched || res.Decision.Action != "send_cart_recovery_email" {
		t.Errorf("result = %s %s", res.Status, res.Decision.Action)
	}
	decisionID := res.Decision.ID

	out, err = runCLI(t, "ledger", "history", "-c", cfg, "-o", "json", "--customer", "cust_003")
	if err != nil {
		t.Fatalf("ledger history error = %v", err)
	}
	if entries := decodeJSON[[]*ledger.Entry](t, out); len(entries) != 1 || entries[0].DecisionID != decisionID {
		t.Errorf("history = %+v", entries)
	}

	out, err = runCLI(t, "ledger", "override", decisionID, "-c", cfg, "--action", "skip", "--reason", "manual hold")
	if err != nil {
		t.Fatalf("ledger override error = %v", err)
	}
	if !strings.Contains(out, "send_cart_recovery_email -> skip") {
		t.Errorf("override output = %q", out)
	}

	out, err = runCLI(t, "ledger", "verify", "-c", cfg)
	if err != nil {
		t.Fatalf("ledger verify error = %v", err)
	}
	if !strings.Contains(out, "2 entries verified") {
		t.Errorf("verify output = %q", out)
	}

	exportPath := filepath.Join(t.TempDir(), "audit.csv")
	if _, err := runCLI(t, "ledger", "export", "-c", cfg, "--format", "csv", "--file", exportPath); err != nil {
		t.Fatalf("ledger export error = %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(strings.TrimSpace(string(data)), "\n") + 1; lines != 3 {
		t.Errorf("csv lines = %d, want header + 2", lines)
	}

	out, err = runCLI(t, "ledger", "history", "-c", cfg, "--kind", "override", "-o", "csv")
	if err != nil {
		t.Fatalf("ledger history csv error = %v", err)
	}
	if !strings.HasPrefix(out, "SEQ,TIME,KIND") || !strings.Contains(out, ",override,") {
		t.Errorf("csv output = %q", out)
	}
}

func TestTriggerAll(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := runCLI(t, "trigger", "--all", "cart_abandoned", "-c", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("trigger --all error = %v", err)
	}
	rows := decodeJSON[[]triggerRow](t, out)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	for _, r := range rows {
		if r.Result == nil {
			t.Errorf("%s: error %s", r.CustomerID, r.Error)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	cfg := writeConfig(t, "")
	badCfg := writeConfig(t, "guardrails:\n  spam:\n    threshold: 1.5\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"unknown customer", []string{"trigger", "cust_999", "cart_abandoned", "-c", cfg}, cli.ExitNotFound},
		{"missing trigger arg", []string{"trigger", "cust_003", "-c", cfg}, cli.ExitFailure},
		{"unknown decision", []string{"ledger", "override", "nope", "-c", cfg, "--action", "skip", "--reason", "x"}, cli.ExitNotFound},
		{"blank reason", []string{"ledger", "override", "nope", "-c", cfg, "--action", "skip", "--reason", " "}, cli.ExitUsage},
		{"bad kind", []string{"ledger", "history", "-c", cfg, "--kind", "audit"}, cli.ExitUsage},
		{"bad export format", []string{"ledger", "export", "-c", cfg, "--format", "xml"}, cli.ExitUsage},
		{"bad output format", []string{"experiment", "list", "-c", cfg, "-o", "yaml"}, cli.ExitUsage},
		{"unknown experiment", []string{"experiment", "show", "exp_missing", "-c", cfg}, cli.ExitNotFound},
		{"invalid config", []string{"config", "validate", "-c", badCfg}, cli.ExitUsage},
		{"missing config", []string{"config", "validate", "-c", filepath.Join(t.TempDir(), "none.yaml")}, cli.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestExperimentCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := runCLI(t, "experiment", "create", "-c", cfg, "-o", "json",
		"--name", "subject-test", "--variant", "control=0.5", "--variant", "urgency=0.5")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	exp := decodeJSON[experiment.Experiment](t, out)
	if exp.ID == "" || len(exp.Variants) != 2 || exp.Status != experiment.StatusRunning {
		t.Fatalf("experiment = %+v", exp)
	}

	record := func(variant, event, count string) {
		t.Helper()
		if _, err := runCLI(t, "experiment", "record", exp.ID, variant, event, "--count", count, "-c", cfg); err != nil {
			t.Fatalf("record %s %s error = %v", variant, event, err)
		}
	}
	record("control", "impression", "200")
	record("control", "conversion", "10")
	record("urgency", "impression", "200")
	record("urgency", "conversion", "60")

	if _, err := runCLI(t, "experiment", "record", exp.ID, "urgency", "revenue", "19.99", "-c", cfg); err != nil {
		t.Fatalf("record revenue error = %v", err)
	}

	out, err = runCLI(t, "experiment", "winner", exp.ID, "-c", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("winner error = %v", err)
	}
	res := decodeJSON[experiment.Result](t, out)
	if res.WinnerID != "urgency" || res.Status != experiment.StatusRunning {
		t.Errorf("winner = %+v", res)
	}

	if _, err := runCLI(t, "experiment", "archive", exp.ID, "-c", cfg); err == nil {
		t.Error("archiving a running experiment should fail")
	}
	if _, err := runCLI(t, "experiment", "close", exp.ID, "-c", cfg); err != nil {
		t.Fatalf("close error = %v", err)
	}
	if _, err := runCLI(t, "experiment", "archive", exp.ID, "-c", cfg); err != nil {
		t.Fatalf("archive error = %v", err)
	}
	out, err = runCLI(t, "experiment", "list", "--status", "archived", "-c", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if list := decodeJSON[[]*experiment.Experiment](t, out); len(list) != 1 || list[0].ID != exp.ID {
		t.Errorf("archived = %+v", list)
	}

	_, err = runCLI(t, "experiment", "record", exp.ID, "urgency", "impression", "-c", cfg)
	if err == nil {
		t.Error("recording on an archived experiment should fail")
	}
}

func TestExperimentCreate_Baseline(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := runCLI(t, "experiment", "create", "-c", cfg, "-o", "json",
		"--name", "spring", "--baseline-subject", "Spring sale", "--baseline-cta", "Shop now")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	exp := decodeJSON[experiment.Experiment](t, out)
	if len(exp.Variants) < 2 {
		t.Fatalf("variants = %d", len(exp.Variants))
	}
	if share := exp.Variants[0].TrafficShare; share != experiment.DefaultControlShare {
		t.Errorf("control share = %v, want %v", share, experiment.DefaultControlShare)
	}

	_, err = runCLI(t, "experiment", "create", "-c", cfg,
		"--name", "mixed", "--baseline-subject", "x", "--variant", "a=0.5", "--variant", "b=0.5")
	if cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("mixed flags ExitCode = %d, want %d", cli.ExitCode(err), cli.ExitUsage)
	}
}

func TestSignificanceCommand(t *testing.T) {
	out, err := runCLI(t, "experiment", "significance", "--control", "1000:50", "--variant", "1000:90", "-o", "json")
	if err != nil {
		t.Fatalf("significance error = %v", err)
	}
	cmps := decodeJSON[[]experiment.Comparison](t, out)
	if len(cmps) != 1 || !cmps[0].Wins() {
		t.Errorf("comparison = %+v", cmps)
	}

	out, err = runCLI(t, "experiment", "significance", "--control", "1000:50", "--variant", "1000:52")
	if err != nil {
		t.Fatalf("significance error = %v", err)
	}
	if !strings.Contains(out, "SIGNIFICANT") || !strings.Contains(out, "false") {
		t.Errorf("text output = %q", out)
	}
}

func TestConfigCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := runCLI(t, "config", "validate", "-c", cfg)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "configuration valid") {
		t.Errorf("validate output = %q", out)
	}

	out, err = runCLI(t, "config", "show", "-c", cfg)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, "ledger:") || !strings.Contains(out, "ledger.db") {
		t.Errorf("show output = %q", out)
	}
}

func TestParseHelpers(t *testing.T) {
	t.Run("variant specs", func(t *testing.T) {
		specs, err := parseVariantSpecs([]string{"control=0.4", "b=0.6"})
		if err != nil || len(specs) != 2 || specs[1].TrafficShare != 0.6 {
			t.Errorf("parseVariantSpecs() = %+v, %v", specs, err)
		}
		for _, bad := range [][]string{{"control=0.5"}, {"control=0.5", "b"}, {"control=x", "b=0.5"}, {"=0.5", "b=0.5"}} {
			if _, err := parseVariantSpecs(bad); err == nil {
				t.Errorf("parseVariantSpecs(%v) should fail", bad)
			}
		}
	})

	t.Run("events", func(t *testing.T) {
		tests := []struct {
			args    []string
			want    experiment.EventType
			value   float64
			wantErr bool
		}{
			{[]string{"impression"}, experiment.EventImpression, 0, false},
			{[]string{"conversion"}, experiment.EventConversion, 0, false},
			{[]string{"revenue", "12.5"}, experiment.EventRevenue, 12.5, false},
			{[]string{"revenue"}, "", 0, true},
			{[]string{"impression", "3"}, "", 0, true},
			{[]string{"click"}, "", 0, true},
		}
		for _, tt := range tests {
			got, value, err := parseEvent(tt.args)
			if (err != nil) != tt.wantErr || got != tt.want || value != tt.value {
				t.Errorf("parseEvent(%v) = %q, %v, %v", tt.args, got, value, err)
			}
		}
	})

	t.Run("counts", func(t *testing.T) {
		v, err := parseCounts("control", "100:7")
		if err != nil || v.Impressions != 100 || v.Conversions != 7 {
			t.Errorf("parseCounts() = %+v, %v", v, err)
		}
		for _, bad := range []string{"100", "a:1", "10:20", "-1:0"} {
			if _, err := parseCounts("control", bad); err == nil {
				t.Errorf("parseCounts(%q) should fail", bad)
			}
		}
	})
}
