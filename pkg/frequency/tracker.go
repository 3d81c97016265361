package frequency

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Default tracking parameters.
const (
	DefaultWindow     = 7 * 24 * time.Hour
	DefaultBucketSize = time.Hour
)

// Tracker counts messages sent per customer and message type over a
// sliding window. It satisfies guardrail.Counter.
type Tracker struct {
	window     time.Duration
	bucketSize time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	windows map[key]*Window
	logger  *slog.Logger
}

type key struct {
	customerID  string
	messageType string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithBucketSize sets the window granularity.
func WithBucketSize(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.bucketSize = d
		}
	}
}

// NewTracker creates a tracker over window. A non-positive window uses
// DefaultWindow.
func NewTracker(window time.Duration, opts ...Option) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	t := &Tracker{
		window:     window,
		bucketSize: DefaultBucketSize,
		now:        time.Now,
		windows:    make(map[key]*Window),
		logger:     slog.Default().With("component", "frequency.tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bucketSize > t.window {
		t.bucketSize = t.window
	}
	return t
}

// Record counts one message of messageType sent to customerID.
func (t *Tracker) Record(customerID, messageType string) {
	k := newKey(customerID, messageType)

	t.mu.RLock()
	w, ok := t.windows[k]
	t.mu.RUnlock()

	if !ok {
		t.mu.Lock()
		if w, ok = t.windows[k]; !ok {
			w = NewWindow(t.window, t.bucketSize)
			t.windows[k] = w
		}
		t.mu.Unlock()
	}
	w.Add(t.now(), 1)
}

// Count returns the messages of messageType sent to customerID within the
// window.
func (t *Tracker) Count(customerID, messageType string) int {
	t.mu.RLock()
	w, ok := t.windows[newKey(customerID, messageType)]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return int(w.Sum(t.now()))
}

// Prune drops customers with no sends in the window and returns how many
// counters were removed.
func (t *Tracker) Prune() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, w := range t.windows {
		if w.Sum(now) == 0 {
			delete(t.windows, k)
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("pruned idle frequency counters", "removed", removed, "remaining", len(t.windows))
	}
	return removed
}

func newKey(customerID, messageType string) key {
	mt := strings.ToLower(strings.TrimSpace(messageType))
	if mt == "" {
		mt = "marketing"
	}
	return key{customerID: customerID, messageType: mt}
}
