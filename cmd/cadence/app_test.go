package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/guardrail"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/pipeline"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Ledger.Backend = "memory"
	cfg.Experiments.Backend = "memory"
	cfg.Telemetry.Logging.Level = "error"
	return cfg
}

func TestGuardrailThresholds(t *testing.T) {
	defaults := guardrail.DefaultThresholds()

	t.Run("zero config keeps defaults", func(t *testing.T) {
		got := guardrailThresholds(config.GuardrailsConfig{})
		if got.SpamThreshold != defaults.SpamThreshold || got.ToneThreshold != defaults.ToneThreshold {
			t.Errorf("thresholds = %+v", got)
		}
		if len(got.SpamKeywords) != len(defaults.SpamKeywords) {
			t.Errorf("SpamKeywords = %v", got.SpamKeywords)
		}
		if got.FrequencyCaps["marketing"] != defaults.FrequencyCaps["marketing"] {
			t.Errorf("marketing cap = %d", got.FrequencyCaps["marketing"])
		}
	})

	t.Run("overrides", func(t *testing.T) {
		got := guardrailThresholds(config.GuardrailsConfig{
			FrequencyCaps:    map[string]int{"marketing": 5, "sms_blast": 1},
			Spam:             config.SpamConfig{Keywords: []string{"winner"}, Threshold: 0.5},
			MinEngagement:    0.1,
			RegulatedRegions: []string{"EU", "UK"},
			Tone:             config.ToneConfig{Threshold: 0.6},
		})
		if got.FrequencyCaps["marketing"] != 5 || got.FrequencyCaps["sms_blast"] != 1 {
			t.Errorf("caps = %v", got.FrequencyCaps)
		}
		if got.FrequencyCaps["newsletter"] != defaults.FrequencyCaps["newsletter"] {
			t.Errorf("newsletter cap lost: %v", got.FrequencyCaps)
		}
		if len(got.SpamKeywords) != 1 || got.SpamThreshold != 0.5 {
			t.Errorf("spam = %v %v", got.SpamKeywords, got.SpamThreshold)
		}
		if got.SpamDivisor != defaults.SpamDivisor {
			t.Errorf("SpamDivisor = %v", got.SpamDivisor)
		}
		if got.MinEngagement != 0.1 || len(got.RegulatedRegions) != 2 || got.ToneThreshold != 0.6 {
			t.Errorf("thresholds = %+v", got)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("defaults are not shared", func(t *testing.T) {
		guardrailThresholds(config.GuardrailsConfig{FrequencyCaps: map[string]int{"marketing": 9}})
		if guardrail.DefaultThresholds().FrequencyCaps["marketing"] == 9 {
			t.Error("override leaked into DefaultThresholds")
		}
	})
}

func TestNewApp_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close(ctx)

	res, err := a.pipeline.ProcessTrigger(ctx, "cust_003", decision.Context{Trigger: "cart_abandoned"})
	if err != nil {
		t.Fatalf("ProcessTrigger() error = %v", err)
	}
	if res.Status != pipeline.StatusDispatched {
		t.Errorf("Status = %s, want dispatched", res.Status)
	}
	if got := a.ledgerSize(); got != 1 {
		t.Errorf("ledgerSize() = %v, want 1", got)
	}
	if got := a.frequency.Count("cust_003", "marketing"); got != 1 {
		t.Errorf("frequency count = %d, want 1", got)
	}
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantCode int
	}{
		{
			name:     "unknown ledger backend",
			mutate:   func(c *config.Config) { c.Ledger.Backend = "postgres" },
			wantCode: cli.ExitUsage,
		},
		{
			name:     "unknown experiments backend",
			mutate:   func(c *config.Config) { c.Experiments.Backend = "redis" },
			wantCode: cli.ExitUsage,
		},
		{
			name:     "unknown channel",
			mutate:   func(c *config.Config) { c.Dispatch.Channels = []string{"pager"} },
			wantCode: cli.ExitUsage,
		},
		{
			name:     "missing customers file",
			mutate:   func(c *config.Config) { c.Customers.File = "testdata/missing.yaml" },
			wantCode: cli.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			_, err := newApp(context.Background(), cfg)
			if err == nil {
				t.Fatal("newApp() error = nil")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestReloadGuardrails(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close(ctx)

	rec, err := a.customers.Get(ctx, "cust_003")
	if err != nil {
		t.Fatal(err)
	}
	rec.ID = "cust_ca"
	rec.Region = "CA"
	rec.Consent.GDPR = false
	a.customers.Put(rec)

	trigger := decision.Context{Trigger: "cart_abandoned"}
	res, err := a.pipeline.ProcessTrigger(ctx, "cust_ca", trigger)
	if err != nil {
		t.Fatalf("ProcessTrigger() error = %v", err)
	}
	if res.Status != pipeline.StatusDispatched {
		t.Fatalf("Status = %s before reload, want dispatched", res.Status)
	}

	cfg := memoryConfig()
	cfg.Guardrails.RegulatedRegions = []string{"EU", "CA"}
	cfg.Guardrails.MinEngagement = 0.99
	if err := a.reloadGuardrails(cfg); err != nil {
		t.Fatalf("reloadGuardrails() error = %v", err)
	}

	res, err = a.pipeline.ProcessTrigger(ctx, "cust_ca", trigger)
	if err != nil {
		t.Fatalf("ProcessTrigger() error = %v", err)
	}
	if res.Status != pipeline.StatusBlocked {
		t.Fatalf("Status = %s after reload, want blocked", res.Status)
	}
	// The engagement floor fails too, but only consent is critical.
	if got := res.Guardrails.Blocking(); len(got) != 1 || got[0] != guardrail.CheckConsent {
		t.Errorf("Blocking() = %v, want [consent]", got)
	}
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, cli.ExitOK},
		{"customer", fmt.Errorf("fetch: %w", customer.ErrNotFound), cli.ExitNotFound},
		{"experiment", fmt.Errorf("get: %w", experiment.ErrNotFound), cli.ExitNotFound},
		{"ledger", fmt.Errorf("override: %w", ledger.ErrNotFound), cli.ExitNotFound},
		{"integrity", fmt.Errorf("verify: %w", &ledger.IntegrityError{Seq: 3, Reason: "hash"}), cli.ExitIntegrity},
		{"invalid override", ledger.ErrInvalidOverride, cli.ExitUsage},
		{"other", errors.New("disk full"), cli.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cli.ExitCode(exitError(tt.err)); got != tt.want {
				t.Errorf("ExitCode(exitError(%v)) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
