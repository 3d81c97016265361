package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var testContact = Contact{Email: "emma@example.com", Phone: "+44700000000"}

var testMessage = Message{
	Subject: "Emma, your cart is waiting",
	Body:    "Complete your order at YourBrand and save 10%.",
	CTA:     "Shop Now",
}

type recordingTransport struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recordingTransport) Deliver(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func TestSenders(t *testing.T) {
	ctx := context.Background()
	tr := &recordingTransport{}

	tests := []struct {
		name    string
		sender  Sender
		contact Contact
		status  Status
		wantErr bool
	}{
		{"email", NewEmailSender(tr), testContact, StatusSent, false},
		{"email without address", NewEmailSender(tr), Contact{}, "", true},
		{"sms", NewSMSSender(tr), testContact, StatusSent, false},
		{"sms without phone", NewSMSSender(tr), Contact{Email: "x@example.com"}, "", true},
		{"whatsapp without consent", NewWhatsAppSender(tr), testContact, StatusSkipped, false},
		{"whatsapp with consent", NewWhatsAppSender(tr), Contact{Phone: "+1555", WhatsAppConsent: true}, StatusSent, false},
		{"web", NewWebSender(tr), Contact{}, StatusSent, false},
		{"push", NewPushSender(tr), Contact{}, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.sender.Send(ctx, Request{CustomerID: "cust_003", Contact: tt.contact, Message: testMessage})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if res.Status != tt.status {
				t.Errorf("Status = %s, want %s", res.Status, tt.status)
			}
			if res.Channel != tt.sender.Channel() || res.CustomerID != "cust_003" {
				t.Errorf("result = %+v", res)
			}
			if res.Status != StatusSkipped && !strings.HasPrefix(res.MessageID, res.Channel+"_") {
				t.Errorf("MessageID = %q", res.MessageID)
			}
		})
	}
}

func TestSMSSender_Truncates(t *testing.T) {
	tr := &recordingTransport{}
	msg := testMessage
	msg.Body = strings.Repeat("a", 300)

	if _, err := NewSMSSender(tr).Send(context.Background(), Request{Contact: testContact, Message: msg}); err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(tr.envs[0].Body)); n != smsLimit {
		t.Errorf("SMS body length = %d, want %d", n, smsLimit)
	}
}

type stubSender struct {
	channel string
	delay   time.Duration
	err     error
	panics  bool
}

func (s stubSender) Channel() string { return s.channel }

func (s stubSender) Send(ctx context.Context, req Request) (Result, error) {
	if s.panics {
		panic("sender exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Channel: s.channel, CustomerID: req.CustomerID, MessageID: s.channel + "_1", Status: StatusSent}, nil
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	d := New([]Sender{
		stubSender{channel: "email"},
		stubSender{channel: "sms", err: errors.New("provider down")},
		stubSender{channel: "push", panics: true},
		stubSender{channel: "web", delay: time.Second},
	}, WithTimeout(50*time.Millisecond))

	results := d.Dispatch(context.Background(), "cust_003", testContact, testMessage,
		[]string{"email", "sms", "push", "web", "phone"})

	want := []struct {
		channel string
		status  Status
		err     string
	}{
		{"email", StatusSent, ""},
		{"sms", StatusFailed, "provider down"},
		{"push", StatusFailed, "sender panicked: sender exploded"},
		{"web", StatusFailed, "timeout"},
	}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(results), len(want), results)
	}
	for i, w := range want {
		r := results[i]
		if r.Channel != w.channel || r.Status != w.status {
			t.Errorf("results[%d] = %s/%s, want %s/%s", i, r.Channel, r.Status, w.channel, w.status)
		}
		if w.err != "" && r.Details["error"] != w.err {
			t.Errorf("results[%d] error = %v, want %q", i, r.Details["error"], w.err)
		}
	}
}

func TestDispatcher_DeduplicatesChannels(t *testing.T) {
	d := NewDefault(&recordingTransport{})
	results := d.Dispatch(context.Background(), "cust_003", testContact, testMessage, []string{"email", "email"})
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *countingObserver) ObserveDispatch(channel, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[channel+"/"+status]++
}

func TestDispatcher_Observer(t *testing.T) {
	obs := &countingObserver{calls: map[string]int{}}
	d := NewDefault(&recordingTransport{}, WithObserver(obs))

	d.Dispatch(context.Background(), "cust_003", testContact, testMessage, []string{"email", "whatsapp"})

	if obs.calls["email/sent"] != 1 || obs.calls["whatsapp/skipped"] != 1 {
		t.Errorf("observer calls = %v", obs.calls)
	}
}

func TestDispatcher_TransportFailure(t *testing.T) {
	failing := TransportFunc(func(context.Context, Envelope) error { return errors.New("smtp refused") })
	d := NewDefault(failing)

	results := d.Dispatch(context.Background(), "cust_003", testContact, testMessage, []string{"email"})
	if len(results) != 1 || results[0].Status != StatusFailed {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Details["error"] != "smtp refused" {
		t.Errorf("error = %v", results[0].Details["error"])
	}
}

func TestSenders_Selection(t *testing.T) {
	all, err := Senders(&recordingTransport{})
	if err != nil || len(all) != 5 {
		t.Fatalf("Senders() = %d senders, %v", len(all), err)
	}

	some, err := Senders(&recordingTransport{}, ChannelSMS, ChannelEmail)
	if err != nil {
		t.Fatalf("Senders() error = %v", err)
	}
	if len(some) != 2 || some[0].Channel() != ChannelSMS || some[1].Channel() != ChannelEmail {
		t.Errorf("Senders() order = %v", some)
	}

	if _, err := Senders(&recordingTransport{}, "fax"); err == nil {
		t.Error("Senders() accepted an unknown channel")
	}
}
