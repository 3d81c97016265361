package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single channel send.
const DefaultTimeout = 10 * time.Second

// Dispatcher fans a message out to several channels concurrently.
type Dispatcher struct {
	senders  map[string]Sender
	timeout  time.Duration
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-channel timeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithObserver registers an observer for send outcomes.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock overrides the clock used for failure timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a dispatcher over senders, keyed by Sender.Channel.
func New(senders []Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[string]Sender, len(senders)),
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default().With("component", "dispatch"),
	}
	for _, s := range senders {
		d.senders[s.Channel()] = s
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDefault creates a dispatcher with every built-in channel on transport t.
func NewDefault(t Transport, opts ...Option) *Dispatcher {
	senders, _ := Senders(t)
	return New(senders, opts...)
}

// Senders returns the built-in senders for the named channels on transport
// t, in the order given. No names selects every built-in channel.
func Senders(t Transport, channels ...string) ([]Sender, error) {
	if len(channels) == 0 {
		channels = []string{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelWeb, ChannelPush}
	}
	senders := make([]Sender, 0, len(channels))
	for _, name := range channels {
		switch name {
		case ChannelEmail:
			senders = append(senders, NewEmailSender(t))
		case ChannelSMS:
			senders = append(senders, NewSMSSender(t))
		case ChannelWhatsApp:
			senders = append(senders, NewWhatsAppSender(t))
		case ChannelWeb:
			senders = append(senders, NewWebSender(t))
		case ChannelPush:
			senders = append(senders, NewPushSender(t))
		default:
			return nil, fmt.Errorf("unknown channel %q", name)
		}
	}
	return senders, nil
}

// Channels lists the registered channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.senders))
	for name := range d.senders {
		names = append(names, name)
	}
	return names
}

// Dispatch sends msg to customerID over each requested channel in parallel
// and returns one result per registered channel, in request order.
// Channels without a registered sender are skipped silently. A sender that
// errors, panics or exceeds the timeout yields a failed result; other
// channels are unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, customerID string, contact Contact, msg Message, channels []string) []Result {
	req := Request{CustomerID: customerID, Contact: contact, Message: msg}

	type slot struct {
		sender Sender
		ch     chan Result
	}
	slots := make([]slot, 0, len(channels))
	seen := make(map[string]bool, len(channels))
	for _, name := range channels {
		s, ok := d.senders[name]
		if !ok {
			d.logger.Debug("no sender for channel", "channel", name, "customer_id", customerID)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		sl := slot{sender: s, ch: make(chan Result, 1)}
		slots = append(slots, sl)
		go func() { sl.ch <- d.send(ctx, sl.sender, req) }()
	}

	results := make([]Result, 0, len(slots))
	for _, sl := range slots {
		results = append(results, <-sl.ch)
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, s Sender, req Request) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("sender panicked: %v", r)}
			}
		}()
		res, err := s.Send(ctx, req)
		done <- outcome{res: res, err: err}
	}()

	var res Result
	select {
	case o := <-done:
		if o.err != nil {
			res = d.failed(s.Channel(), req, o.err)
		} else {
			res = o.res
		}
	case <-ctx.Done():
		res = d.failed(s.Channel(), req, ctx.Err())
	}

	elapsed := time.Since(start)
	if d.observer != nil {
		d.observer.ObserveDispatch(res.Channel, string(res.Status), elapsed)
	}
	if res.Status == StatusFailed {
		d.logger.Warn("channel send failed",
			"channel", res.Channel,
			"customer_id", req.CustomerID,
			"error", res.Details["error"],
		)
	} else {
		d.logger.Debug("channel send complete",
			"channel", res.Channel,
			"customer_id", req.CustomerID,
			"status", res.Status,
			"duration", elapsed,
		)
	}
	return res
}

func (d *Dispatcher) failed(channel string, req Request, err error) Result {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "timeout"
	}
	return Result{
		Channel:    channel,
		CustomerID: req.CustomerID,
		Status:     StatusFailed,
		Timestamp:  d.now().UTC(),
		Details:    map[string]any{"error": msg},
	}
}
