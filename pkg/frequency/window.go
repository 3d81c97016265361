package frequency

import (
	"sync"
	"time"
)

// Window is a sliding window counter over fixed-size time buckets.
//
// Each Add lands in the bucket for the current time rounded down to the
// bucket size. Buckets older than the window are cleared before every read
// and write, so Sum always reflects the rolling period ending now.
//
// Window is safe for concurrent use.
type Window struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []bucket
	head       int
	mu         sync.Mutex
}

type bucket struct {
	timestamp time.Time
	value     int64
}

// NewWindow creates a counter covering window with buckets of bucketSize.
// The number of buckets is window/bucketSize, at least one.
func NewWindow(window, bucketSize time.Duration) *Window {
	n := int(window / bucketSize)
	if n == 0 {
		n = 1
	}
	return &Window{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]bucket, n),
	}
}

// Add increments the counter at time now.
func (w *Window) Add(now time.Time, value int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.bucketLocked(now).value += value
}

// Sum returns the total within the window ending at now.
func (w *Window) Sum(now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	var sum int64
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() {
			sum += w.buckets[i].value
		}
	}
	return sum
}

// pruneLocked clears buckets that fell out of the window.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && !w.buckets[i].timestamp.After(cutoff) {
			w.buckets[i] = bucket{}
		}
	}
}

// bucketLocked returns the bucket for now, reusing an empty or the oldest
// slot when none matches.
func (w *Window) bucketLocked(now time.Time) *bucket {
	ts := now.Truncate(w.bucketSize)

	if w.buckets[w.head].timestamp.Equal(ts) {
		return &w.buckets[w.head]
	}

	target, oldest := -1, 0
	for i := range w.buckets {
		switch {
		case w.buckets[i].timestamp.Equal(ts):
			return &w.buckets[i]
		case target < 0 && w.buckets[i].timestamp.IsZero():
			target = i
		case w.buckets[i].timestamp.Before(w.buckets[oldest].timestamp):
			oldest = i
		}
	}
	if target < 0 {
		target = oldest
	}

	w.buckets[target] = bucket{timestamp: ts}
	w.head = target
	return &w.buckets[target]
}
