package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// BatchProgress renders a single updating status line for batch commands
// such as "trigger --all", tallying the outcome of every step.
type BatchProgress struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	done    int
	tally   map[string]int
	started time.Time
}

// NewBatchProgress creates a progress line for total steps written to w,
// or os.Stderr when w is nil.
func NewBatchProgress(w io.Writer, total int) *BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &BatchProgress{
		w:       w,
		total:   total,
		tally:   make(map[string]int),
		started: time.Now(),
	}
	p.mu.Lock()
	p.render()
	p.mu.Unlock()
	return p
}

// Step records one finished step with its outcome, e.g. "dispatched".
func (p *BatchProgress) Step(outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.tally[outcome]++
	p.render()
}

// Tally returns a copy of the outcome counts so far.
func (p *BatchProgress) Tally() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int, len(p.tally))
	for k, v := range p.tally {
		out[k] = v
	}
	return out
}

// Done ends the progress line.
func (p *BatchProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}

// Fail ends the progress line with err.
func (p *BatchProgress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\naborted after %d/%d: %v\n", p.done, p.total, err)
}

// render must be called with p.mu held.
func (p *BatchProgress) render() {
	if p.total == 0 {
		return
	}

	outcomes := make([]string, 0, len(p.tally))
	for k := range p.tally {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	parts := make([]string, len(outcomes))
	for i, k := range outcomes {
		parts[i] = fmt.Sprintf("%s=%d", k, p.tally[k])
	}

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}
	fmt.Fprintf(p.w, "\r[%d/%d] %s %.1f/s", p.done, p.total, strings.Join(parts, " "), rate)
}
