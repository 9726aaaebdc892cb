package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MaciejGL/shaper/internal/cache"
	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
	"github.com/MaciejGL/shaper/internal/selection"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultRest is used when an exercise has no rest period of its own.
const DefaultRest = 90 * time.Second

// Options configures a Session.
type Options struct {
	PlanID       string
	EditDebounce time.Duration
	ClickWindow  time.Duration
	DefaultRest  time.Duration
	// RefetchTimeout bounds the authoritative refresh after mutations settle.
	RefetchTimeout time.Duration

	Clock   clockwork.Clock
	Cache   cache.Cache
	Journal DraftJournal
	Logger  *slog.Logger

	// OnError receives failures of work started in the background: click
	// toggles, draft flushes and refetches.
	OnError func(op string, err error)
	// OnRestDone fires when a rest countdown completes.
	OnRestDone func(setID string)
}

// Session is one live workout session over a single plan.
type Session struct {
	planID string
	key    string
	remote Remote
	cache  cache.Cache
	clock  clockwork.Clock
	log    *slog.Logger
	opts   Options

	coord  *Coordinator
	buffer *EditBuffer
	toggle *Toggle
	rest   *RestTimer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	previous models.PreviousLogs

	bgMu   sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New wires a session for opts.PlanID against remote. Call Load before use.
func New(remote Remote, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.DefaultRest <= 0 {
		opts.DefaultRest = DefaultRest
	}
	if opts.RefetchTimeout <= 0 {
		opts.RefetchTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		planID: opts.PlanID,
		key:    "plan:" + opts.PlanID,
		remote: remote,
		cache:  opts.Cache,
		clock:  opts.Clock,
		log:    opts.Logger.With("plan", opts.PlanID),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
	s.coord = NewCoordinator(s.cache, s.log)
	s.coord.OnSettled(s.settled)
	s.rest = NewRestTimer(s.clock, opts.OnRestDone)
	s.buffer = NewEditBuffer(ctx, s.flushDraft, BufferOptions{
		Clock:   s.clock,
		Delay:   opts.EditDebounce,
		Journal: opts.Journal,
		Logger:  s.log,
		OnError: func(_ string, err error) { s.report("update_set_log", err) },
	})
	s.toggle = NewToggle(s.clock, opts.ClickWindow, s.clicked)
	return s
}

// Key returns the cache key holding this session's plan.
func (s *Session) Key() string { return s.key }

// Load fetches the plan and the previous-session logs, then restores any
// journaled drafts. A previous-logs failure only disables carry-forward.
func (s *Session) Load(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}

	prev, err := s.remote.PreviousLogs(ctx, s.planID)
	if err != nil {
		s.log.Warn("previous logs unavailable", "error", err)
	} else {
		s.mu.Lock()
		s.previous = prev
		s.mu.Unlock()
	}

	n, err := s.buffer.Restore()
	if err != nil {
		s.log.Warn("draft restore failed", "error", err)
	} else if n > 0 {
		s.log.Info("restored drafts", "count", n)
	}
	return nil
}

func (s *Session) refresh(ctx context.Context) error {
	return s.refreshSince(ctx, s.cache.Generation(s.key))
}

func (s *Session) refreshSince(ctx context.Context, gen uint64) error {
	snap, err := s.cache.FetchSince(ctx, s.key, gen, func(ctx context.Context) (*models.Plan, error) {
		return s.remote.GetPlan(ctx, s.planID)
	})
	if err != nil {
		return err
	}
	s.syncDrafts(snap.Plan)
	return nil
}

// syncDrafts pushes server values into the edit buffer without marking them
// as user edits.
func (s *Session) syncDrafts(p *models.Plan) {
	if p == nil {
		return
	}
	for w := range p.Weeks {
		for d := range p.Weeks[w].Days {
			for e := range p.Weeks[w].Days[d].Exercises {
				for _, set := range p.Weeks[w].Days[d].Exercises[e].ActiveSets() {
					if set.Log == nil {
						continue
					}
					s.buffer.Sync(set.ID, FormatInt(set.Log.Reps), FormatFloat(set.Log.Weight))
				}
			}
		}
	}
}

// settled refetches the plan once no mutation is in flight. The refetch is
// dropped if another mutation starts first.
func (s *Session) settled(key string, gen uint64) {
	s.cache.Invalidate(key)
	if !s.begin() {
		return
	}
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.RefetchTimeout)
		defer cancel()
		if err := s.refreshSince(ctx, gen); err != nil {
			if errors.Is(err, cache.ErrReadCancelled) || errors.Is(err, context.Canceled) {
				return
			}
			s.report("refetch", err)
		}
	}()
}

// Plan returns the current snapshot. Callers must not modify it.
func (s *Session) Plan() *models.Plan {
	snap, ok := s.cache.Get(s.key)
	if !ok {
		return nil
	}
	return snap.Plan
}

// DefaultSelection resolves the week and day to open at now.
func (s *Session) DefaultSelection(now time.Time) selection.Selection {
	return selection.Resolve(s.Plan(), now)
}

// Click feeds the completion control of a set. See Toggle.
func (s *Session) Click(setID string) {
	s.toggle.Click(setID)
}

// ClickState reports the click state of a set's completion control.
func (s *Session) ClickState(setID string) ToggleState {
	return s.toggle.State(setID)
}

// Edit records typed input for a set.
func (s *Session) Edit(setID string, field Field, raw string) models.Draft {
	return s.buffer.Edit(setID, field, raw)
}

// Draft returns the text shown for a set's inputs.
func (s *Session) Draft(setID string) (models.Draft, bool) {
	return s.buffer.Draft(setID)
}

// Rest reports the running rest countdown.
func (s *Session) Rest() (string, time.Duration, bool) {
	return s.rest.Active()
}

// begin registers background work; it reports false once the session is
// closed.
func (s *Session) begin() bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Session) clicked(setID string, skipRest bool) {
	if !s.begin() {
		return
	}
	defer s.wg.Done()
	if err := s.ToggleSet(s.ctx, setID, skipRest); err != nil {
		s.report("complete_set", err)
	}
}

// ToggleSet flips the completion of a set as seen in the current snapshot.
func (s *Session) ToggleSet(ctx context.Context, setID string, skipRest bool) error {
	_, set := plan.FindSet(s.Plan(), setID)
	if set == nil {
		return nil
	}
	return s.CompleteSet(ctx, setID, !set.IsCompleted(), skipRest)
}

// CompleteSet marks a set done or not done. Completing logs typed values,
// falling back to values carried forward from earlier sets, and starts the
// rest countdown unless skipRest is set. Un-completing cancels the countdown
// before the remote call is issued.
func (s *Session) CompleteSet(ctx context.Context, setID string, completed, skipRest bool) error {
	p := s.Plan()
	if p == nil {
		return ErrNoPlan
	}
	ex, set := plan.FindSet(p, setID)
	if set == nil {
		return nil
	}

	now := s.clock.Now()
	req := models.CompleteSetRequest{SetID: setID, Completed: completed, SkipRest: skipRest}
	var (
		log     *models.SetLog
		applied func()
		held    bool
		token   uint64
	)
	if completed {
		var vals Values
		vals, token, held = s.valuesFor(ex, set)
		req.Reps, req.Weight = vals.Reps, vals.Weight
		log = &models.SetLog{Reps: vals.Reps, Weight: vals.Weight, LoggedAt: now}
		if set.Log != nil {
			log.RPE = set.Log.RPE
			req.RPE = set.Log.RPE
		}
		if !skipRest {
			rest := s.restFor(ex)
			applied = func() { s.rest.Start(setID, rest) }
		}
	} else {
		applied = func() { s.rest.Cancel(setID) }
	}

	err := s.coord.Do(ctx, Mutation{
		Op:       "complete_set",
		Key:      s.key,
		EntityID: setID,
		Scope:    ScopeSet,
		Apply:    plan.CompleteSet(setID, completed, log, now),
		Applied:  applied,
		Call: func(ctx context.Context) (plan.Mutator, error) {
			return nil, s.remote.CompleteSet(ctx, req)
		},
	})
	if held {
		if err != nil {
			s.buffer.Release(setID, token)
		} else {
			s.buffer.Commit(setID, token)
		}
	}
	if err != nil && completed && !skipRest {
		s.rest.Cancel(setID)
	}
	return err
}

// valuesFor picks the values to log when completing: typed draft first, then
// the set's own log, then values carried forward. A typed draft is held in
// the edit buffer until the caller commits or releases it.
func (s *Session) valuesFor(ex *models.Exercise, set *models.Set) (Values, uint64, bool) {
	var vals Values
	d, token, held := s.buffer.Hold(set.ID)
	if held {
		reps, weight := ParseDraft(d)
		vals.fill(Values{Reps: reps, Weight: weight})
	}
	vals.fill(logValues(set.Log))
	if vals.complete() {
		return vals, token, held
	}
	vals.fill(Derive(ex.Sets, set, s.buffer, s.previousLog(ex, set.Order)))
	return vals, token, held
}

// previousLog looks up the prior session by the exercise actually performed,
// then by the planned slot it substitutes.
func (s *Session) previousLog(ex *models.Exercise, order int) *models.SetLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l := s.previous.At(ex.ID, order); l != nil {
		return l
	}
	if slot := plan.FindSlot(s.Plan(), ex.ID); slot != nil && slot.ID != ex.ID {
		return s.previous.At(slot.ID, order)
	}
	return nil
}

func (s *Session) restFor(ex *models.Exercise) time.Duration {
	if ex.RestSeconds != nil && *ex.RestSeconds > 0 {
		return time.Duration(*ex.RestSeconds) * time.Second
	}
	return s.opts.DefaultRest
}

// UpdateSetLog writes logged values for a set without changing completion.
func (s *Session) UpdateSetLog(ctx context.Context, setID string, reps *int, weight *float64) error {
	p := s.Plan()
	if p == nil {
		return ErrNoPlan
	}
	if _, set := plan.FindSet(p, setID); set == nil {
		return nil
	}
	req := models.UpdateSetLogRequest{SetID: setID, Reps: reps, Weight: weight}
	return s.coord.Do(ctx, Mutation{
		Op:       "update_set_log",
		Key:      s.key,
		EntityID: setID,
		Scope:    ScopeSet,
		Apply:    plan.UpdateSetLog(setID, reps, weight, nil, s.clock.Now()),
		Call: func(ctx context.Context) (plan.Mutator, error) {
			return nil, s.remote.UpdateSetLog(ctx, req)
		},
	})
}

func (s *Session) flushDraft(ctx context.Context, setID string, reps *int, weight *float64) error {
	if s.Plan() == nil {
		return nil
	}
	return s.UpdateSetLog(ctx, setID, reps, weight)
}

// CompleteExercise marks an exercise done or not done.
func (s *Session) CompleteExercise(ctx context.Context, exerciseID string, completed bool) error {
	p := s.Plan()
	if p == nil {
		return ErrNoPlan
	}
	slot := plan.FindSlot(p, exerciseID)
	if slot == nil {
		return nil
	}
	req := models.CompleteExerciseRequest{ExerciseID: exerciseID, Completed: completed}
	return s.coord.Do(ctx, Mutation{
		Op:       "complete_exercise",
		Key:      s.key,
		EntityID: slot.ID,
		Scope:    ScopeExercise,
		Apply:    plan.CompleteExercise(exerciseID, completed, s.clock.Now()),
		Revert: func(prev *models.Plan) plan.Mutator {
			return plan.RestoreExerciseCompletion(prev, exerciseID)
		},
		Call: func(ctx context.Context) (plan.Mutator, error) {
			return nil, s.remote.CompleteExercise(ctx, req)
		},
	})
}

// AddSet appends an extra set and returns it as confirmed by the server.
func (s *Session) AddSet(ctx context.Context, exerciseID string) (*models.Set, error) {
	p := s.Plan()
	if p == nil {
		return nil, ErrNoPlan
	}
	slot := plan.FindSlot(p, exerciseID)
	if slot == nil {
		return nil, nil
	}

	req := models.AddSetRequest{ExerciseID: exerciseID, SetID: uuid.NewString()}
	err := s.coord.Do(ctx, Mutation{
		Op:       "add_set",
		Key:      s.key,
		EntityID: slot.ID,
		Scope:    ScopeExercise,
		Apply:    plan.AddSet(exerciseID, req.SetID),
		Revert: func(*models.Plan) plan.Mutator {
			return plan.RemoveSet(req.SetID)
		},
		Call: func(ctx context.Context) (plan.Mutator, error) {
			set, err := s.remote.AddSet(ctx, req)
			if err != nil || set == nil {
				return nil, err
			}
			return plan.MergeSet(*set), nil
		},
	})
	if err != nil {
		return nil, err
	}
	_, set := plan.FindSet(s.Plan(), req.SetID)
	if set == nil {
		return nil, nil
	}
	out := *set
	return &out, nil
}

// RemoveSet deletes a set. Its rest countdown stops right away and its
// pending draft write is paused; the draft and any pending click are dropped
// once the server confirms. A failed removal puts the set back in place with
// its draft still pending.
func (s *Session) RemoveSet(ctx context.Context, setID string) error {
	p := s.Plan()
	if p == nil {
		return ErrNoPlan
	}
	ex, set := plan.FindSet(p, setID)
	if set == nil {
		return nil
	}
	slot := plan.FindSlot(p, ex.ID)

	var (
		held  bool
		token uint64
	)
	err := s.coord.Do(ctx, Mutation{
		Op:       "remove_set",
		Key:      s.key,
		EntityID: slot.ID,
		Scope:    ScopeExercise,
		Apply:    plan.RemoveSet(setID),
		Revert: func(prev *models.Plan) plan.Mutator {
			return plan.ReinsertSet(prev, setID)
		},
		Applied: func() {
			_, token, held = s.buffer.Hold(setID)
			s.rest.Cancel(setID)
		},
		Call: func(ctx context.Context) (plan.Mutator, error) {
			return nil, s.remote.RemoveSet(ctx, setID)
		},
	})
	if err != nil {
		if held {
			s.buffer.Release(setID, token)
		}
		return err
	}
	s.buffer.Cancel(setID)
	s.toggle.Cancel(setID)
	return nil
}

// Close stops timers and background work. Unflushed drafts stay journaled.
func (s *Session) Close() {
	s.bgMu.Lock()
	s.closed = true
	s.bgMu.Unlock()

	s.toggle.Close()
	s.buffer.Close()
	s.rest.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) report(op string, err error) {
	s.log.Error("session operation failed", "op", op, "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(op, err)
	}
}
