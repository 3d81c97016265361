package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// smsLimit is the maximum SMS body length in characters.
const smsLimit = 160

// Envelope is what a Transport delivers.
type Envelope struct {
	Channel   string
	MessageID string
	To        string
	Subject   string
	Body      string
	Metadata  map[string]string
}

// Transport performs the actual delivery for a channel sender.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, env Envelope) error

// Deliver implements Transport.
func (f TransportFunc) Deliver(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// LogTransport records deliveries in the log instead of contacting a
// provider. It is the default transport.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport() *LogTransport {
	return &LogTransport{logger: slog.Default().With("component", "dispatch.transport")}
}

// Deliver implements Transport.
func (t *LogTransport) Deliver(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.Info("message delivered",
		"channel", env.Channel,
		"message_id", env.MessageID,
		"to", env.To,
	)
	return nil
}

var (
	errNoEmail = errors.New("customer has no e-mail address")
	errNoPhone = errors.New("customer has no phone number")
)

// base carries what every channel sender shares.
type base struct {
	channel   string
	transport Transport
	now       func() time.Time
}

func newBase(channel string, t Transport) base {
	if t == nil {
		t = NewLogTransport()
	}
	return base{channel: channel, transport: t, now: time.Now}
}

func (b base) Channel() string { return b.channel }

func (b base) result(req Request, id string, status Status, details map[string]any) Result {
	return Result{
		Channel:    b.channel,
		CustomerID: req.CustomerID,
		MessageID:  id,
		Status:     status,
		Timestamp:  b.now().UTC(),
		Details:    details,
	}
}

func (b base) deliver(ctx context.Context, req Request, env Envelope, status Status, details map[string]any) (Result, error) {
	env.Channel = b.channel
	env.MessageID = b.channel + "_" + uuid.NewString()
	if err := b.transport.Deliver(ctx, env); err != nil {
		return Result{}, err
	}
	return b.result(req, env.MessageID, status, details), nil
}

// EmailSender sends e-mail.
type EmailSender struct{ base }

// NewEmailSender creates an e-mail sender on transport t.
func NewEmailSender(t Transport) *EmailSender { return &EmailSender{newBase(ChannelEmail, t)} }

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, req Request) (Result, error) {
	if req.Contact.Email == "" {
		return Result{}, errNoEmail
	}
	return s.deliver(ctx, req,
		Envelope{To: req.Contact.Email, Subject: req.Message.Subject, Body: req.Message.Body,
			Metadata: map[string]string{"cta": req.Message.CTA}},
		StatusSent, map[string]any{"subject": req.Message.Subject})
}

// SMSSender sends text messages truncated to 160 characters.
type SMSSender struct{ base }

// NewSMSSender creates an SMS sender on transport t.
func NewSMSSender(t Transport) *SMSSender { return &SMSSender{newBase(ChannelSMS, t)} }

// Send implements Sender.
func (s *SMSSender) Send(ctx context.Context, req Request) (Result, error) {
	if req.Contact.Phone == "" {
		return Result{}, errNoPhone
	}
	text := truncate(shortText(req.Message), smsLimit)
	return s.deliver(ctx, req, Envelope{To: req.Contact.Phone, Body: text},
		StatusSent, map[string]any{"length": utf8.RuneCountInString(text)})
}

// WhatsAppSender sends WhatsApp messages to customers who opted in.
type WhatsAppSender struct{ base }

// NewWhatsAppSender creates a WhatsApp sender on transport t.
func NewWhatsAppSender(t Transport) *WhatsAppSender {
	return &WhatsAppSender{newBase(ChannelWhatsApp, t)}
}

// Send implements Sender. Without consent it returns a skipped result.
func (s *WhatsAppSender) Send(ctx context.Context, req Request) (Result, error) {
	if !req.Contact.WhatsAppConsent {
		return s.result(req, "", StatusSkipped, map[string]any{"reason": "no WhatsApp consent"}), nil
	}
	if req.Contact.Phone == "" {
		return Result{}, errNoPhone
	}
	return s.deliver(ctx, req, Envelope{To: req.Contact.Phone, Body: shortText(req.Message)}, StatusSent, nil)
}

// WebSender applies on-site personalization variations.
type WebSender struct{ base }

// NewWebSender creates a web personalization sender on transport t.
func NewWebSender(t Transport) *WebSender { return &WebSender{newBase(ChannelWeb, t)} }

// Send implements Sender.
func (s *WebSender) Send(ctx context.Context, req Request) (Result, error) {
	variations := req.Message.Variations
	if len(variations) == 0 {
		variations = map[string]string{"headline": req.Message.Subject, "cta": req.Message.CTA}
	}
	return s.deliver(ctx, req, Envelope{To: req.CustomerID, Metadata: variations},
		StatusSent, map[string]any{"variations": len(variations)})
}

// PushSender sends push notifications. Delivery to devices is deferred,
// so results are queued.
type PushSender struct{ base }

// NewPushSender creates a push sender on transport t.
func NewPushSender(t Transport) *PushSender { return &PushSender{newBase(ChannelPush, t)} }

// Send implements Sender.
func (s *PushSender) Send(ctx context.Context, req Request) (Result, error) {
	return s.deliver(ctx, req,
		Envelope{To: req.CustomerID, Subject: req.Message.Subject, Body: shortText(req.Message),
			Metadata: map[string]string{"platform": "all"}},
		StatusQueued, nil)
}

func shortText(m Message) string {
	if m.Short != "" {
		return m.Short
	}
	return m.Body
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
