package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RestTimer runs the rest countdown after a completed set. Only one
// countdown is active at a time; starting a new one replaces the old.
type RestTimer struct {
	clock  clockwork.Clock
	onDone func(setID string)

	mu      sync.Mutex
	setID   string
	endsAt  time.Time
	timer   clockwork.Timer
	gen     uint64
	started int
}

// NewRestTimer returns an idle timer. onDone may be nil.
func NewRestTimer(clock clockwork.Clock, onDone func(setID string)) *RestTimer {
	return &RestTimer{clock: clock, onDone: onDone}
}

// Start begins a countdown of d for setID.
func (r *RestTimer) Start(setID string, d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.gen++
	gen := r.gen
	r.setID = setID
	r.endsAt = r.clock.Now().Add(d)
	r.started++
	r.timer = r.clock.AfterFunc(d, func() { r.expire(gen) })
}

func (r *RestTimer) expire(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || r.timer == nil {
		r.mu.Unlock()
		return
	}
	setID := r.setID
	r.timer = nil
	r.setID = ""
	r.mu.Unlock()

	if r.onDone != nil {
		r.onDone(setID)
	}
}

// Cancel stops the countdown if it belongs to setID.
func (r *RestTimer) Cancel(setID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil || r.setID != setID {
		return false
	}
	r.stopLocked()
	return true
}

// Stop cancels any running countdown.
func (r *RestTimer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *RestTimer) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = nil
	r.setID = ""
	r.gen++
}

// Active returns the set whose rest is counting down and the time left.
func (r *RestTimer) Active() (string, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil {
		return "", 0, false
	}
	return r.setID, r.endsAt.Sub(r.clock.Now()), true
}

// Started returns how many countdowns have been started.
func (r *RestTimer) Started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}
