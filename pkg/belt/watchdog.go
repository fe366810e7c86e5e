package belt

import (
	"time"

	"github.com/golang/glog"
)

// Watchdog tracks the time of the last valid inbound command and
// reports when the heartbeat deadline has passed. It is polled every
// loop iteration; it never fires asynchronously.
type Watchdog struct {
	timeout time.Duration

	lastValid time.Time
	tripped   bool
}

// NewWatchdog creates a Watchdog with the given heartbeat timeout.
func NewWatchdog(timeout time.Duration) *Watchdog {
	return &Watchdog{timeout: timeout}
}

// Start seeds the reference time, granting the host a full timeout
// window before the first command is required.
func (w *Watchdog) Start(now time.Time) {
	if w.lastValid.IsZero() {
		w.lastValid = now
	}
}

// Refresh records a valid command at the given time. Only
// syntactically valid frames reach this; garbage bytes never extend
// the deadline. Recovery from a trip is implicit.
func (w *Watchdog) Refresh(now time.Time) {
	w.lastValid = now
	if w.tripped {
		w.tripped = false
		glog.V(1).Info("watchdog: heartbeat recovered")
	}
}

// Expired reports whether the deadline has passed. Repeated calls
// while expired keep returning true; the transition is logged once.
func (w *Watchdog) Expired(now time.Time) bool {
	w.Start(now)
	if now.Sub(w.lastValid) <= w.timeout {
		return false
	}
	if !w.tripped {
		w.tripped = true
		glog.V(1).Infof("watchdog: no valid command in %v, forcing safe state", w.timeout)
	}
	return true
}
