package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/cadence/pkg/content"
	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/dispatch"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/frequency"
	"mercator-hq/cadence/pkg/guardrail"
	"mercator-hq/cadence/pkg/ledger"
)

var testBrand = content.Brand{
	Name:            "YourBrand",
	FromAddress:     "noreply@yourbrand.com",
	UnsubscribeURL:  "https://yourbrand.com/unsubscribe",
	PhysicalAddress: "123 Main St, City, Country",
	CTAURL:          "https://yourbrand.com/go",
}

type outbox struct {
	mu   sync.Mutex
	sent []dispatch.Envelope
}

func (o *outbox) Deliver(_ context.Context, env dispatch.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, env)
	return nil
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type fixture struct {
	orch        *Orchestrator
	customers   *customer.StaticProvider
	ledger      *ledger.Ledger
	experiments *experiment.Engine
	frequency   *frequency.Tracker
	outbox      *outbox
}

func newFixture(t *testing.T, holdForReview bool) *fixture {
	t.Helper()

	f := &fixture{
		customers:   customer.NewDemoProvider(),
		ledger:      ledger.New(nil),
		experiments: experiment.NewEngine(nil),
		frequency:   frequency.NewTracker(frequency.DefaultWindow),
		outbox:      &outbox{},
	}
	orch, err := New(Deps{
		Customers:   f.customers,
		Router:      decision.NewDefaultRouter(experiment.NewScorer(42)),
		Gate:        guardrail.NewGate(guardrail.Checkers(guardrail.DefaultThresholds(), f.frequency)...),
		Dispatcher:  dispatch.NewDefault(f.outbox, dispatch.WithTimeout(time.Second)),
		Ledger:      f.ledger,
		Experiments: f.experiments,
		Frequency:   f.frequency,
	}, Config{Brand: testBrand, HoldForReview: holdForReview})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.orch = orch
	return f
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Config{}); err == nil {
		t.Error("New() with no deps succeeded")
	}
}

func TestProcessTrigger_CartAbandoned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	res, err := f.orch.ProcessTrigger(ctx, "cust_003", decision.Context{Trigger: "cart_abandoned"})
	if err != nil {
		t.Fatalf("ProcessTrigger() error = %v", err)
	}

	d := res.Decision
	if d.Action != "send_cart_recovery_email" {
		t.Errorf("Action = %q", d.Action)
	}
	if d.Parameters["discount_percentage"] != 20 {
		t.Errorf("discount = %v, want 20", d.Parameters["discount_percentage"])
	}
	if d.RequiresHumanReview {
		t.Error("RequiresHumanReview = true for a 250 cart")
	}
	if res.Guardrails == nil || !res.Guardrails.Passed {
		t.Fatalf("guardrails = %+v", res.Guardrails)
	}
	if res.Status != StatusDispatched {
		t.Errorf("Status = %s", res.Status)
	}
	if len(res.Dispatch) != 1 || res.Dispatch[0].Channel != "email" || res.Dispatch[0].Status != dispatch.StatusSent {
		t.Fatalf("Dispatch = %+v", res.Dispatch)
	}

	env := f.outbox.sent[0]
	if env.To != "emma@example.com" || !strings.HasPrefix(env.Subject, "Emma,") {
		t.Errorf("envelope = %+v", env)
	}
	if strings.Contains(env.Body, "{{") {
		t.Errorf("unresolved placeholder in body %q", env.Body)
	}

	history, _ := f.ledger.History(ctx, "cust_003", 10)
	if len(history) != 1 || history[0].DecisionID != d.ID || res.LedgerSeq != history[0].Seq {
		t.Errorf("ledger history = %+v", history)
	}
	if got := f.frequency.Count("cust_003", "marketing"); got != 1 {
		t.Errorf("frequency count = %d, want 1", got)
	}
}

func TestProcessTrigger_Outcomes(t *testing.T) {
	tests := []struct {
		name          string
		record        *customer.Record
		trigger       string
		holdForReview bool
		status        Status
		dispatched    int
	}{
		{
			name:    "skip below minimum cart",
			record:  &customer.Record{ID: "c_small", Region: "US", EngagementScore: 0.9, CartValue: 10, Email: "a@example.com"},
			trigger: "cart_abandoned",
			status:  StatusSkipped,
		},
		{
			name:    "blocked without consent in EU",
			record:  &customer.Record{ID: "c_eu", Region: "EU", EngagementScore: 0.9, CartValue: 100, Email: "b@example.com"},
			trigger: "cart_abandoned",
			status:  StatusBlocked,
		},
		{
			name:          "held for review",
			record:        &customer.Record{ID: "c_big", Region: "US", EngagementScore: 0.9, CartValue: 800, Email: "c@example.com"},
			trigger:       "cart_abandoned",
			holdForReview: true,
			status:        StatusHeld,
		},
		{
			name:       "review not enforced",
			record:     &customer.Record{ID: "c_big2", Region: "US", EngagementScore: 0.9, CartValue: 800, Email: "d@example.com"},
			trigger:    "cart_abandoned",
			status:     StatusDispatched,
			dispatched: 1,
		},
		{
			name:       "advisory failures still dispatch",
			record:     &customer.Record{ID: "c_cold", Region: "US", EngagementScore: 0.05, CartValue: 100, Email: "e@example.com"},
			trigger:    "cart_abandoned",
			status:     StatusDispatched,
			dispatched: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tt.holdForReview)
			f.customers.Put(tt.record)

			res, err := f.orch.ProcessTrigger(ctx, tt.record.ID, decision.Context{Trigger: tt.trigger})
			if err != nil {
				t.Fatalf("ProcessTrigger() error = %v", err)
			}
			if res.Status != tt.status {
				t.Errorf("Status = %s, want %s", res.Status, tt.status)
			}
			if f.outbox.len() != tt.dispatched {
				t.Errorf("delivered %d messages, want %d", f.outbox.len(), tt.dispatched)
			}
			if n, _ := f.ledger.Len(ctx); n != 1 {
				t.Errorf("ledger length = %d, want 1", n)
			}
		})
	}
}

func TestProcessTrigger_BlockedIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.customers.Put(&customer.Record{ID: "c_eu", Region: "EU", EngagementScore: 0.9, CartValue: 100})

	if _, err := f.orch.ProcessTrigger(ctx, "c_eu", decision.Context{Trigger: "cart_abandoned"}); err != nil {
		t.Fatal(err)
	}
	history, _ := f.ledger.History(ctx, "c_eu", 1)
	if len(history) != 1 || history[0].Guardrails[guardrail.CheckConsent] {
		t.Errorf("ledger entry = %+v", history)
	}
}

func TestProcessTrigger_UnknownCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.orch.ProcessTrigger(ctx, "nobody", decision.Context{Trigger: "cart_abandoned"})
	if !errors.Is(err, customer.ErrNotFound) {
		t.Errorf("error = %v, want customer.ErrNotFound", err)
	}
	if n, _ := f.ledger.Len(ctx); n != 0 {
		t.Errorf("ledger length = %d, want 0", n)
	}
}

func TestProcessTrigger_FrequencyCapAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	var last *Result
	for i := 0; i < 4; i++ {
		res, err := f.orch.ProcessTrigger(ctx, "cust_003", decision.Context{Trigger: "cart_abandoned"})
		if err != nil {
			t.Fatal(err)
		}
		last = res
	}

	fc := last.Guardrails.Checks[guardrail.CheckFrequencyCap]
	if fc.Passed {
		t.Errorf("frequency cap passed after 3 sends: %+v", fc)
	}
	if last.Status != StatusDispatched {
		t.Errorf("non-critical frequency failure blocked dispatch: %s", last.Status)
	}
}

func TestProcessTrigger_CreativeTest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	tc := decision.Context{
		Trigger:        "creative_test",
		CampaignID:     "spring_sale",
		ExpectedVolume: 5000,
		Creative:       &experiment.Creative{Subject: "Spring picks for you", Body: "New arrivals at {{brand_name}}", CTA: "Shop Now"},
	}

	first, err := f.orch.ProcessTrigger(ctx, "cust_001", tc)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != StatusDispatched || first.ExperimentID == "" || first.VariantID == "" {
		t.Fatalf("first run = %+v", first)
	}

	second, err := f.orch.ProcessTrigger(ctx, "cust_003", tc)
	if err != nil {
		t.Fatal(err)
	}
	if second.ExperimentID != first.ExperimentID {
		t.Errorf("second run joined %s, want %s", second.ExperimentID, first.ExperimentID)
	}

	exp, err := f.experiments.Get(ctx, first.ExperimentID)
	if err != nil {
		t.Fatal(err)
	}
	var impressions int64
	for _, v := range exp.Variants {
		impressions += v.Impressions
	}
	if impressions != 2 {
		t.Errorf("impressions = %d, want 2", impressions)
	}
	if exp.Name != "creative_test:spring_sale" {
		t.Errorf("experiment name = %q", exp.Name)
	}
}

func TestProcessTrigger_CreativeTestGatesVariantCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	spammy := &experiment.Creative{
		Subject: "FREE!!! URGENT ACT NOW!!! WIN BIG",
		Body:    "Click here now for a guaranteed free gift. Limited time, risk free, no credit card.",
		CTA:     "Claim",
	}
	exp, err := f.experiments.Create(ctx, experiment.CreateRequest{
		Name: "creative_test:spring_sale",
		Variants: []experiment.VariantSpec{
			{ID: "control", Name: "Control", TrafficShare: 0.5, Creative: spammy},
			{ID: "loud", Name: "Loud", TrafficShare: 0.5, Creative: spammy},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := f.orch.ProcessTrigger(ctx, "cust_001", decision.Context{
		Trigger:        "creative_test",
		CampaignID:     "spring_sale",
		ExpectedVolume: 5000,
		Creative:       &experiment.Creative{Subject: "Spring picks for you", Body: "New arrivals at {{brand_name}}", CTA: "Shop Now"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExperimentID != exp.ID {
		t.Fatalf("joined %q, want %q", res.ExperimentID, exp.ID)
	}
	// Spam is advisory, so the message still goes out, but the recorded
	// check must describe the variant copy.
	if res.Status != StatusDispatched {
		t.Fatalf("Status = %s, want dispatched", res.Status)
	}
	if res.Guardrails.Checks[guardrail.CheckSpamScore].Passed {
		t.Error("spam_score passed for the variant copy")
	}
	if f.outbox.len() != 1 || f.outbox.sent[0].Subject != spammy.Subject {
		t.Fatalf("sent = %+v", f.outbox.sent)
	}

	history, err := f.ledger.History(ctx, "cust_001", 1)
	if err != nil || len(history) != 1 {
		t.Fatalf("History() = %v, %v", history, err)
	}
	entry := history[0]
	if entry.Guardrails[guardrail.CheckSpamScore] {
		t.Error("ledger records spam_score as passed")
	}
	if entry.Decision.Copy == nil || entry.Decision.Copy.Subject != spammy.Subject {
		t.Errorf("ledger copy = %+v, want the sent variant", entry.Decision.Copy)
	}
}

func TestProcessTrigger_ConcurrentRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	const n = 20
	for i := 0; i < n; i++ {
		f.customers.Put(&customer.Record{
			ID:              fmt.Sprintf("c_%02d", i),
			Region:          "US",
			EngagementScore: 0.8,
			CartValue:       120,
			Email:           fmt.Sprintf("c%02d@example.com", i),
		})
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orch.ProcessTrigger(ctx, fmt.Sprintf("c_%02d", i), decision.Context{Trigger: "cart_abandoned"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if got, _ := f.ledger.Len(ctx); got != n {
		t.Errorf("ledger length = %d, want %d", got, n)
	}
	if _, err := f.ledger.Verify(ctx); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if f.outbox.len() != n {
		t.Errorf("delivered %d, want %d", f.outbox.len(), n)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	runs     []string
	policies []string
}

func (o *recordingObserver) ObserveDecision(policy, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.policies = append(o.policies, policy)
}

func (o *recordingObserver) ObserveGuardrails(guardrail.Outcome) {}

func (o *recordingObserver) ObserveRun(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, status)
}

func TestProcessTrigger_Observer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	obs := &recordingObserver{}
	WithObserver(obs)(f.orch)

	f.orch.ProcessTrigger(ctx, "cust_003", decision.Context{Trigger: "cart_abandoned"})
	f.orch.ProcessTrigger(ctx, "missing", decision.Context{Trigger: "cart_abandoned"})

	if len(obs.runs) != 2 || obs.runs[0] != string(StatusDispatched) || obs.runs[1] != "error" {
		t.Errorf("runs = %v", obs.runs)
	}
	if len(obs.policies) != 1 || obs.policies[0] != decision.PolicyCartWinback {
		t.Errorf("policies = %v", obs.policies)
	}
}
