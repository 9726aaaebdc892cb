// Package cache holds plan snapshots keyed by query. Every write produces a
// new version; readers get the latest snapshot and must treat it as
// read-only.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"golang.org/x/sync/singleflight"
)

// ErrReadCancelled is returned by Fetch when a write cancelled the read.
var ErrReadCancelled = errors.New("cache: read cancelled by a newer write")

// Snapshot is one version of a cached plan.
type Snapshot struct {
	Plan      *models.Plan
	Version   uint64
	Stale     bool
	UpdatedAt time.Time
}

// Loader fetches the authoritative plan for a key.
type Loader func(ctx context.Context) (*models.Plan, error)

// Cache is the store the session engine reads and patches.
type Cache interface {
	Get(key string) (Snapshot, bool)
	Set(key string, plan *models.Plan) Snapshot
	// Update atomically replaces the plan with fn(current). It reports false
	// and does nothing when no plan is loaded for key.
	Update(key string, fn func(*models.Plan) *models.Plan) (prev, next Snapshot, ok bool)
	Invalidate(key string)
	CancelReads(key string)
	// Generation counts CancelReads calls for key.
	Generation(key string) uint64
	Fetch(ctx context.Context, key string, load Loader) (Snapshot, error)
	// FetchSince is Fetch that gives up with ErrReadCancelled once the
	// generation of key has moved past since.
	FetchSince(ctx context.Context, key string, since uint64, load Loader) (Snapshot, error)
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Snapshot
	reads   map[string]map[uint64]context.CancelFunc
	gens    map[string]uint64
	nextID  uint64
	version uint64
	group   singleflight.Group
	now     func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Snapshot),
		reads:   make(map[string]map[uint64]context.CancelFunc),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Get returns the latest snapshot for key.
func (m *Memory) Get(key string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return *e, true
}

// Set stores plan as a new version.
func (m *Memory) Set(key string, plan *models.Plan) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(key, plan)
}

func (m *Memory) setLocked(key string, plan *models.Plan) Snapshot {
	m.version++
	snap := &Snapshot{Plan: plan, Version: m.version, UpdatedAt: m.now()}
	m.entries[key] = snap
	return *snap
}

// Update applies fn to the current plan under the cache lock.
func (m *Memory) Update(key string, fn func(*models.Plan) *models.Plan) (Snapshot, Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[key]
	if !ok || cur.Plan == nil {
		return Snapshot{}, Snapshot{}, false
	}
	prev := *cur
	next := m.setLocked(key, fn(cur.Plan))
	next.Stale = prev.Stale
	m.entries[key].Stale = prev.Stale
	return prev, next, true
}

// Invalidate marks the entry stale. The data stays readable until the next
// Fetch replaces it.
func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.Stale = true
	}
}

// CancelReads aborts in-flight fetches for key. Their results are dropped.
func (m *Memory) CancelReads(key string) {
	m.mu.Lock()
	m.gens[key]++
	reads := m.reads[key]
	delete(m.reads, key)
	m.mu.Unlock()

	m.group.Forget(key)
	for _, cancel := range reads {
		cancel()
	}
}

// Generation returns the read generation of key.
func (m *Memory) Generation(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[key]
}

// Fetch loads key through load, sharing one call among concurrent callers.
// A read cancelled by CancelReads never overwrites the cache.
func (m *Memory) Fetch(ctx context.Context, key string, load Loader) (Snapshot, error) {
	return m.FetchSince(ctx, key, m.Generation(key), load)
}

// FetchSince loads key unless a write cancelled reads after generation since.
func (m *Memory) FetchSince(ctx context.Context, key string, since uint64, load Loader) (Snapshot, error) {
	ch := m.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()

		m.mu.Lock()
		gen := since
		if m.gens[key] != gen {
			m.mu.Unlock()
			return nil, ErrReadCancelled
		}
		m.nextID++
		id := m.nextID
		if m.reads[key] == nil {
			m.reads[key] = make(map[uint64]context.CancelFunc)
		}
		m.reads[key][id] = cancel
		m.mu.Unlock()

		defer func() {
			m.mu.Lock()
			delete(m.reads[key], id)
			m.mu.Unlock()
		}()

		plan, err := load(rctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gens[key] != gen {
			return nil, ErrReadCancelled
		}
		if err != nil {
			return nil, err
		}
		return m.setLocked(key, plan), nil
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// InFlight reports how many reads are running for key.
func (m *Memory) InFlight(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reads[key])
}
