package dispatch

import (
	"context"
	"time"
)

// Status is the outcome of one channel send.
type Status string

// Send statuses.
const (
	StatusSent    Status = "sent"
	StatusQueued  Status = "queued"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Channel names.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelWeb      = "web"
	ChannelPush     = "push"
)

// Result is the outcome of sending one decision over one channel.
type Result struct {
	Channel    string         `json:"channel"`
	CustomerID string         `json:"customer_id"`
	MessageID  string         `json:"message_id,omitempty"`
	Status     Status         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
}

// Contact is the customer's reachability and channel consent.
type Contact struct {
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	WhatsAppConsent bool   `json:"whatsapp_consent"`
}

// Message is the finished, personalized message handed to channels.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	CTA     string `json:"cta"`

	// Short is the body for length-limited channels (SMS, WhatsApp, push).
	Short string `json:"short"`

	// Variations are key/value overrides for on-site personalization.
	Variations map[string]string `json:"variations,omitempty"`
}

// Request is one channel send.
type Request struct {
	CustomerID string
	Contact    Contact
	Message    Message
}

// Sender delivers a message over one channel. A returned error marks the
// send as failed; senders report consent skips as a Result with
// StatusSkipped and a nil error.
type Sender interface {
	Channel() string
	Send(ctx context.Context, req Request) (Result, error)
}

// Observer is notified after every channel send.
type Observer interface {
	ObserveDispatch(channel string, status string, duration time.Duration)
}
