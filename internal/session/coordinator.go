package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MaciejGL/shaper/internal/cache"
	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
)

// Scope names the subtree restored when a mutation is rolled back while
// other versions have been written on top of it.
type Scope int

const (
	// ScopeSet restores a single set.
	ScopeSet Scope = iota
	// ScopeExercise restores a planned exercise with its substitute and sets.
	ScopeExercise
)

// Mutation describes one optimistic edit.
type Mutation struct {
	Op       string
	Key      string
	EntityID string
	Scope    Scope
	// Apply is the optimistic patch.
	Apply plan.Mutator
	// Revert, when set, builds the undo of Apply from the pre-edit snapshot.
	// It replaces the Scope restore once other versions have been written on
	// top of the patch.
	Revert func(prev *models.Plan) plan.Mutator
	// Applied runs synchronously right after the patch lands in the cache
	// and before the remote call is issued.
	Applied func()
	// Call performs the remote write. The returned mutator, if any, merges
	// server-authoritative fields into the cache.
	Call func(ctx context.Context) (plan.Mutator, error)
}

// Coordinator applies mutations optimistically and resolves them against the
// remote result. Remote calls for the same entity run in the order their
// patches were applied; different entities run concurrently.
type Coordinator struct {
	cache cache.Cache
	log   *slog.Logger
	clock seqClock

	mu        sync.Mutex
	latest    map[string]int64
	tails     map[string]chan struct{}
	pending   map[string]int
	onSettled func(key string, gen uint64)
}

// NewCoordinator returns a coordinator patching c.
func NewCoordinator(c cache.Cache, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		cache:   c,
		log:     log,
		latest:  make(map[string]int64),
		tails:   make(map[string]chan struct{}),
		pending: make(map[string]int),
	}
}

// OnSettled registers fn to run whenever the last in-flight mutation for a
// key has resolved. gen is the cache read generation at that moment; a fetch
// started from fn should not outlive a newer mutation.
func (c *Coordinator) OnSettled(fn func(key string, gen uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSettled = fn
}

// Pending returns the number of unresolved mutations for key.
func (c *Coordinator) Pending(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[key]
}

// Do runs m: cancel reads, patch, call remote, then commit or roll back.
// Remote failures are returned as *MutationError.
func (c *Coordinator) Do(ctx context.Context, m Mutation) error {
	c.mu.Lock()
	c.cache.CancelReads(m.Key)
	seq := c.clock.Next()
	c.latest[m.EntityID] = seq
	wait := c.tails[m.EntityID]
	done := make(chan struct{})
	c.tails[m.EntityID] = done
	c.pending[m.Key]++
	prev, applied, ok := c.cache.Update(m.Key, func(p *models.Plan) *models.Plan {
		return plan.Patch(p, m.Apply)
	})
	c.mu.Unlock()
	defer c.finish(m, done)

	if !ok {
		return ErrNoPlan
	}
	if m.Applied != nil {
		m.Applied()
	}

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return c.resolve(m, seq, prev, applied, nil, ctx.Err())
		}
	}

	merge, err := m.Call(ctx)
	if err == nil && ctx.Err() != nil {
		// An aborted call must not apply its response.
		err = ctx.Err()
	}
	return c.resolve(m, seq, prev, applied, merge, err)
}

func (c *Coordinator) resolve(m Mutation, seq int64, prev, applied cache.Snapshot, merge plan.Mutator, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	superseded := c.latest[m.EntityID] != seq
	if err != nil {
		if !superseded {
			c.rollbackLocked(m, prev, applied)
		}
		c.log.Warn("mutation failed",
			"op", m.Op,
			"entity", m.EntityID,
			"seq", seq,
			"superseded", superseded,
			"error", err,
		)
		return &MutationError{Op: m.Op, EntityID: m.EntityID, Superseded: superseded, Err: err}
	}

	if superseded {
		c.log.Debug("discarding stale confirmation", "op", m.Op, "entity", m.EntityID, "seq", seq)
		return nil
	}
	if merge != nil {
		c.cache.Update(m.Key, func(p *models.Plan) *models.Plan {
			return plan.Patch(p, merge)
		})
	}
	return nil
}

// rollbackLocked restores the pre-edit state. When nothing else was written
// since the patch, the previous snapshot is restored verbatim; otherwise the
// mutation's Revert runs, or only the mutated subtree is copied back.
func (c *Coordinator) rollbackLocked(m Mutation, prev, applied cache.Snapshot) {
	c.cache.Update(m.Key, func(cur *models.Plan) *models.Plan {
		if cur == applied.Plan {
			return prev.Plan
		}
		if m.Revert != nil {
			return plan.Patch(cur, m.Revert(prev.Plan))
		}
		switch m.Scope {
		case ScopeExercise:
			return plan.Patch(cur, plan.RestoreExercise(prev.Plan, m.EntityID))
		default:
			return plan.Patch(cur, plan.RestoreSet(prev.Plan, m.EntityID))
		}
	})
}

func (c *Coordinator) finish(m Mutation, done chan struct{}) {
	c.mu.Lock()
	close(done)
	if c.tails[m.EntityID] == done {
		delete(c.tails, m.EntityID)
	}
	c.pending[m.Key]--
	left := c.pending[m.Key]
	var gen uint64
	if left <= 0 {
		delete(c.pending, m.Key)
		gen = c.cache.Generation(m.Key)
	}
	fn := c.onSettled
	c.mu.Unlock()

	if left <= 0 && fn != nil {
		fn(m.Key, gen)
	}
}
