package raid

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults mirror the thresholds the bot has always shipped with.
const (
	DefaultThreshold = 10
	DefaultWindow    = 60 * time.Second
)

// Detector counts joins per community over a trailing window.
// It only signals; it never suppresses repeated flags.
type Detector struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	threshold int
	window    time.Duration
}

// NewDetector returns a detector flagging threshold or more joins within
// window. Non-positive values fall back to the defaults.
func NewDetector(threshold int, window time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Detector{
		windows:   make(map[string][]time.Time),
		threshold: threshold,
		window:    window,
	}
}

// Observe records a join at now and reports whether the community is being raided.
func (d *Detector) Observe(communityID string, now time.Time) bool {
	_, flagged := d.Tally(communityID, now)
	return flagged
}

// Tally records a join at now and returns the number of joins left in the
// window together with the raid flag. Pruning is relative to now, never to
// the wall clock, so late delivery does not skew the count.
func (d *Detector) Tally(communityID string, now time.Time) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	joins := d.windows[communityID]
	if n := len(joins); n > 0 && now.Before(joins[n-1]) {
		now = joins[n-1]
	}
	joins = append(joins, now)

	keep := 0
	for keep < len(joins) && now.Sub(joins[keep]) >= d.window {
		keep++
	}
	joins = append(joins[:0], joins[keep:]...)
	d.windows[communityID] = joins

	return len(joins), len(joins) >= d.threshold
}

// Sweep forgets every community whose newest join is at least one window
// older than now and returns how many were removed. A forgotten community
// behaves exactly like one that never saw a join.
func (d *Detector) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for id, joins := range d.windows {
		if len(joins) == 0 || now.Sub(joins[len(joins)-1]) >= d.window {
			delete(d.windows, id)
			removed++
		}
	}
	return removed
}

// Communities returns how many communities currently hold join history.
func (d *Detector) Communities() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.windows)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (d *Detector) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := d.Sweep(now); n > 0 {
				slog.Debug("evicted idle join windows", "count", n)
			}
		}
	}
}

// Threshold returns the configured flag threshold.
func (d *Detector) Threshold() int { return d.threshold }

// Window returns the configured window length.
func (d *Detector) Window() time.Duration { return d.window }
