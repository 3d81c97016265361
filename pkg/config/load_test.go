package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "60s"

brand:
  name: "Acme"
  unsubscribe_url: "https://acme.test/unsub"

guardrails:
  frequency_caps:
    marketing: 5
  spam:
    threshold: 0.5
  tone:
    forbidden: ["cheap"]

ledger:
  backend: "memory"

pipeline:
  hold_for_review: false

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Brand.Name != "Acme" {
		t.Errorf("expected brand %q, got %q", "Acme", cfg.Brand.Name)
	}
	if cfg.Guardrails.FrequencyCaps["marketing"] != 5 {
		t.Errorf("expected marketing cap 5, got %d", cfg.Guardrails.FrequencyCaps["marketing"])
	}
	if cfg.Guardrails.Spam.Threshold != 0.5 {
		t.Errorf("expected spam threshold 0.5, got %v", cfg.Guardrails.Spam.Threshold)
	}
	if cfg.Ledger.Backend != "memory" {
		t.Errorf("expected ledger backend memory, got %q", cfg.Ledger.Backend)
	}
	if cfg.Pipeline.HoldForReview {
		t.Error("expected hold_for_review false from file")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "brand:\n  name: Acme\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Guardrails.FrequencyWindow != DefaultFrequencyWindow {
		t.Errorf("FrequencyWindow = %v", cfg.Guardrails.FrequencyWindow)
	}
	if cfg.Guardrails.FrequencyCaps["newsletter"] != 1 {
		t.Errorf("FrequencyCaps = %v", cfg.Guardrails.FrequencyCaps)
	}
	if !cfg.Pipeline.HoldForReview {
		t.Error("HoldForReview should default to true")
	}
	if !cfg.Ledger.SQLite.WALMode || !cfg.Telemetry.Metrics.Enabled || !cfg.Telemetry.Logging.RedactPII {
		t.Error("true-by-default booleans were not set")
	}
	if cfg.Experiments.EvaluationSchedule != DefaultEvaluationSchedule {
		t.Errorf("EvaluationSchedule = %q", cfg.Experiments.EvaluationSchedule)
	}
}

func TestLoadConfig_EmptyScheduleDisables(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "experiments:\n  evaluation_schedule: \"\"\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Experiments.EvaluationSchedule != "" {
		t.Errorf("EvaluationSchedule = %q, want empty", cfg.Experiments.EvaluationSchedule)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "server: [unclosed",
			wantErr: "failed to parse",
		},
		{
			name:    "invalid backend",
			content: "ledger:\n  backend: postgres\n",
			wantErr: "ledger.backend",
		},
		{
			name:    "spam threshold out of range",
			content: "guardrails:\n  spam:\n    threshold: 1.5\n",
			wantErr: "guardrails.spam.threshold",
		},
		{
			name:    "unknown channel",
			content: "dispatch:\n  channels: [email, fax]\n",
			wantErr: "dispatch.channels[1]",
		},
		{
			name:    "auth without keys",
			content: "server:\n  auth:\n    enabled: true\n",
			wantErr: "server.auth.keys",
		},
		{
			name:    "duplicate api key",
			content: "server:\n  auth:\n    keys:\n      - {key: k1, operator: ana}\n      - {key: k1, operator: ben}\n",
			wantErr: "duplicate key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_ValidationErrorIsTyped(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "guardrails:\n  min_engagement: 2\n"))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "guardrails.min_engagement" {
		t.Errorf("Errors = %+v", verr.Errors)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8080\"\n")

	t.Setenv("CADENCE_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("CADENCE_PIPELINE_HOLD_FOR_REVIEW", "false")
	t.Setenv("CADENCE_DISPATCH_CHANNELS", "email, sms")
	t.Setenv("CADENCE_GUARDRAILS_SPAM_THRESHOLD", "0.6")
	t.Setenv("CADENCE_EXPERIMENTS_SCORER_SEED", "42")
	t.Setenv("CADENCE_DISPATCH_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Pipeline.HoldForReview {
		t.Error("HoldForReview should be overridden to false")
	}
	if len(cfg.Dispatch.Channels) != 2 || cfg.Dispatch.Channels[1] != "sms" {
		t.Errorf("Channels = %v", cfg.Dispatch.Channels)
	}
	if cfg.Guardrails.Spam.Threshold != 0.6 {
		t.Errorf("Spam.Threshold = %v", cfg.Guardrails.Spam.Threshold)
	}
	if cfg.Experiments.ScorerSeed != 42 {
		t.Errorf("ScorerSeed = %d", cfg.Experiments.ScorerSeed)
	}
	if cfg.Dispatch.Timeout != DefaultDispatchTimeout {
		t.Errorf("malformed override should be ignored, Timeout = %v", cfg.Dispatch.Timeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("CADENCE_LEDGER_BACKEND", "cassandra")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("expected post-override validation error, got %v", err)
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	got := multi.Error()
	if !strings.HasPrefix(got, "configuration validation failed with 2 errors:") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi = %q", got)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestLoadConfigWithEnvOverrides_APIKeys(t *testing.T) {
	t.Setenv("CADENCE_SERVER_API_KEYS", "ana:key-a, ben:key-b")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Server.Auth.Enabled {
		t.Error("auth should be enabled by CADENCE_SERVER_API_KEYS")
	}
	want := []APIKeyConfig{{Key: "key-a", Operator: "ana"}, {Key: "key-b", Operator: "ben"}}
	if len(cfg.Server.Auth.Keys) != len(want) {
		t.Fatalf("Keys = %+v", cfg.Server.Auth.Keys)
	}
	for i, k := range want {
		if cfg.Server.Auth.Keys[i] != k {
			t.Errorf("Keys[%d] = %+v, want %+v", i, cfg.Server.Auth.Keys[i], k)
		}
	}

	t.Setenv("CADENCE_SERVER_API_KEYS", "key-without-operator")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil || !strings.Contains(err.Error(), "operator") {
		t.Errorf("expected operator validation error, got %v", err)
	}
}
