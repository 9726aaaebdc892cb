package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
)

var errBoom = errors.New("boom")

type remoteCall struct {
	Op  string
	Req any
}

// fakeRemote is an in-memory server. Ops can be made to fail or to block
// until their gate is closed.
type fakeRemote struct {
	mu       sync.Mutex
	plan     *models.Plan
	previous models.PreviousLogs
	fail     map[string]error
	gates    map[string]chan struct{}
	calls    []remoteCall
	gets     int
}

func newFakeRemote(p *models.Plan) *fakeRemote {
	return &fakeRemote{
		plan:  p,
		fail:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeRemote) failOp(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// gate blocks op until the returned channel is closed.
func (f *fakeRemote) gate(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[op] = ch
	return ch
}

func (f *fakeRemote) callsOf(op string) []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remoteCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeRemote) serverPlan() *models.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return plan.Clone(f.plan)
}

func (f *fakeRemote) enter(ctx context.Context, op string, req any) error {
	f.mu.Lock()
	f.calls = append(f.calls, remoteCall{Op: op, Req: req})
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *fakeRemote) apply(fn plan.Mutator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plan = plan.Patch(f.plan, fn)
}

func (f *fakeRemote) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	if err := f.enter(ctx, "get_plan", planID); err != nil {
		return nil, err
	}
	return f.serverPlan(), nil
}

func (f *fakeRemote) PreviousLogs(ctx context.Context, planID string) (models.PreviousLogs, error) {
	if err := f.enter(ctx, "previous_logs", planID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previous, nil
}

func (f *fakeRemote) CompleteSet(ctx context.Context, req models.CompleteSetRequest) error {
	if err := f.enter(ctx, "complete_set", req); err != nil {
		return err
	}
	var log *models.SetLog
	if req.Completed {
		log = &models.SetLog{Reps: req.Reps, Weight: req.Weight, RPE: req.RPE, LoggedAt: time.Now()}
	}
	f.apply(plan.CompleteSet(req.SetID, req.Completed, log, time.Now()))
	return nil
}

func (f *fakeRemote) UpdateSetLog(ctx context.Context, req models.UpdateSetLogRequest) error {
	if err := f.enter(ctx, "update_set_log", req); err != nil {
		return err
	}
	f.apply(plan.UpdateSetLog(req.SetID, req.Reps, req.Weight, req.RPE, time.Now()))
	return nil
}

func (f *fakeRemote) CompleteExercise(ctx context.Context, req models.CompleteExerciseRequest) error {
	if err := f.enter(ctx, "complete_exercise", req); err != nil {
		return err
	}
	f.apply(plan.CompleteExercise(req.ExerciseID, req.Completed, time.Now()))
	return nil
}

func (f *fakeRemote) AddSet(ctx context.Context, req models.AddSetRequest) (*models.Set, error) {
	if err := f.enter(ctx, "add_set", req); err != nil {
		return nil, err
	}
	f.apply(plan.AddSet(req.ExerciseID, req.SetID))
	f.mu.Lock()
	defer f.mu.Unlock()
	_, set := plan.FindSet(f.plan, req.SetID)
	if set == nil {
		return nil, nil
	}
	out := *set
	return &out, nil
}

func (f *fakeRemote) RemoveSet(ctx context.Context, setID string) error {
	if err := f.enter(ctx, "remove_set", setID); err != nil {
		return err
	}
	f.apply(plan.RemoveSet(setID))
	return nil
}

var _ Remote = (*fakeRemote)(nil)

// memJournal is an in-memory DraftJournal.
type memJournal struct {
	mu     sync.Mutex
	drafts map[string]models.Draft
}

func newMemJournal() *memJournal {
	return &memJournal{drafts: make(map[string]models.Draft)}
}

func (j *memJournal) Save(setID string, d models.Draft) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.drafts[setID] = d
	return nil
}

func (j *memJournal) Delete(setID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.drafts, setID)
	return nil
}

func (j *memJournal) Load() (map[string]models.Draft, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]models.Draft, len(j.drafts))
	for k, v := range j.drafts {
		out[k] = v
	}
	return out, nil
}

func (j *memJournal) has(setID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.drafts[setID]
	return ok
}
