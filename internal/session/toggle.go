package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ToggleState is the per-set click state.
type ToggleState int

const (
	Idle ToggleState = iota
	PendingSingleClick
)

func (s ToggleState) String() string {
	switch s {
	case PendingSingleClick:
		return "pending_single_click"
	default:
		return "idle"
	}
}

// DefaultClickWindow is how long a first click waits for a second one.
const DefaultClickWindow = 250 * time.Millisecond

// ToggleFunc flips a set's completion. skipRest is true for double clicks.
type ToggleFunc func(setID string, skipRest bool)

type pendingClick struct {
	timer clockwork.Timer
	gen   uint64
}

// Toggle tells single clicks from double clicks on a set's completion
// control. A single click toggles after the window elapses; a second click
// inside the window toggles at once with the rest countdown suppressed.
type Toggle struct {
	clock  clockwork.Clock
	window time.Duration
	fire   ToggleFunc

	mu      sync.Mutex
	pending map[string]*pendingClick
	gen     uint64
	closed  bool
}

// NewToggle returns a toggle that calls fire with the resolved intent.
func NewToggle(clock clockwork.Clock, window time.Duration, fire ToggleFunc) *Toggle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultClickWindow
	}
	return &Toggle{clock: clock, window: window, fire: fire, pending: make(map[string]*pendingClick)}
}

// Click feeds one click for setID. It never blocks on the toggle itself.
func (t *Toggle) Click(setID string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if p, ok := t.pending[setID]; ok {
		p.timer.Stop()
		delete(t.pending, setID)
		t.mu.Unlock()
		go t.fire(setID, true)
		return
	}

	t.gen++
	gen := t.gen
	t.pending[setID] = &pendingClick{
		gen:   gen,
		timer: t.clock.AfterFunc(t.window, func() { t.elapse(setID, gen) }),
	}
	t.mu.Unlock()
}

func (t *Toggle) elapse(setID string, gen uint64) {
	t.mu.Lock()
	p, ok := t.pending[setID]
	if !ok || p.gen != gen || t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.pending, setID)
	t.mu.Unlock()

	t.fire(setID, false)
}

// State reports the click state for setID.
func (t *Toggle) State(setID string) ToggleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[setID]; ok {
		return PendingSingleClick
	}
	return Idle
}

// Cancel drops a pending click without toggling.
func (t *Toggle) Cancel(setID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.pending[setID]; ok {
		p.timer.Stop()
		delete(t.pending, setID)
	}
}

// Close cancels all pending clicks; later clicks are ignored.
func (t *Toggle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, id)
	}
}
