package eventproc

import (
	"sync"
	"time"
)

// MinTimeout and MaxTimeout bound the debounce timer's adaptive
// interval (200ms / 2000ms), carried over from the original cache's
// TimerOperation constants.
const (
	MinTimeout = 200 * time.Millisecond
	MaxTimeout = 2000 * time.Millisecond
)

// DebounceTimer is a single-shot, restartable timer whose interval
// grows to absorb the cost of the heavy operation it gates: each
// completed operation's wall time feeds the next interval via
// clamp(2×duration, MinTimeout, MaxTimeout), so a burst of fast writes
// coalesces quickly while a slow one backs off and gives the backend
// room to keep up.
type DebounceTimer struct {
	mu        sync.Mutex
	timer     *time.Timer
	handler   func()
	timeout   time.Duration
	isNeeded  bool
	isAllowed bool
	startedAt time.Time
}

// NewDebounceTimer returns a timer that invokes handler (on its own
// goroutine) each time it fires, starting at MinTimeout.
func NewDebounceTimer(handler func()) *DebounceTimer {
	return &DebounceTimer{handler: handler, timeout: MinTimeout}
}

// Request marks an operation as needed and (re)starts the timer if
// sending is currently allowed. Calling it again before the timer
// fires restarts the debounce window, matching the original's
// single-shot QTimer::start semantics.
func (d *DebounceTimer) Request() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isNeeded = true
	d.tryStart()
}

// Allow toggles whether the timer is permitted to run at all,
// returning false if the value didn't change. Turning it on resets
// the timeout to MinTimeout and restarts a pending request; turning
// it off stops any running timer outright.
func (d *DebounceTimer) Allow(allowed bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isAllowed == allowed {
		return false
	}
	d.isAllowed = allowed
	if allowed {
		d.timeout = MinTimeout
		d.tryStart()
	} else if d.timer != nil {
		d.timer.Stop()
	}
	return true
}

// IsAllowed reports whether the timer is currently permitted to run.
func (d *DebounceTimer) IsAllowed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isAllowed
}

// CheckAndPrepare reports whether an operation should actually start
// now (needed and allowed) and, if so, records the start time for
// ProcessComplete's duration measurement.
func (d *DebounceTimer) CheckAndPrepare() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isNeeded && d.isAllowed {
		d.startedAt = time.Now()
		return true
	}
	d.startedAt = time.Time{}
	return false
}

// ProcessComplete resets the timeout to MinTimeout, then grows it to
// clamp(2×elapsed, MinTimeout, MaxTimeout) if the just-finished
// operation ran long enough to warrant backing off, and clears the
// needed flag.
func (d *DebounceTimer) ProcessComplete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = MinTimeout
	if !d.startedAt.IsZero() {
		diff := time.Since(d.startedAt) * 2
		if diff > d.timeout {
			d.timeout = min(diff, MaxTimeout)
		}
	}
	d.startedAt = time.Time{}
	d.isNeeded = false
}

func (d *DebounceTimer) tryStart() {
	if !d.isAllowed || !d.isNeeded {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.timeout, d.fire)
		return
	}
	d.timer.Reset(d.timeout)
}

func (d *DebounceTimer) fire() {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// Stop stops the underlying timer, releasing its resources.
func (d *DebounceTimer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
