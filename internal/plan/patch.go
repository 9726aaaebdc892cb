package plan

import (
	"sort"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	clone "github.com/huandu/go-clone"
)

// Mutator edits a working copy of a plan in place. A mutator that cannot find
// its target leaves the plan untouched.
type Mutator func(p *models.Plan)

// Patch returns a new snapshot produced by running fn on a deep clone of p.
// p itself is never modified. A nil plan is returned unchanged.
func Patch(p *models.Plan, fn Mutator) *models.Plan {
	if p == nil {
		return nil
	}
	next := Clone(p)
	if fn != nil {
		fn(next)
	}
	return next
}

// Clone deep-copies a plan.
func Clone(p *models.Plan) *models.Plan {
	if p == nil {
		return nil
	}
	return clone.Clone(p).(*models.Plan)
}

// Chain runs several mutators in order.
func Chain(fns ...Mutator) Mutator {
	return func(p *models.Plan) {
		for _, fn := range fns {
			if fn != nil {
				fn(p)
			}
		}
	}
}

// CompleteSet marks a set done at the given time and attaches log. Marking
// it not done clears CompletedAt and keeps whatever log was typed.
func CompleteSet(setID string, completed bool, log *models.SetLog, at time.Time) Mutator {
	return func(p *models.Plan) {
		_, set := FindSet(p, setID)
		if set == nil {
			return
		}
		if !completed {
			set.CompletedAt = nil
			return
		}
		ts := at
		set.CompletedAt = &ts
		if log != nil {
			l := *log
			set.Log = &l
		}
	}
}

// UpdateSetLog replaces the logged reps and weight. RPE is only replaced
// when provided.
func UpdateSetLog(setID string, reps *int, weight, rpe *float64, at time.Time) Mutator {
	return func(p *models.Plan) {
		_, set := FindSet(p, setID)
		if set == nil {
			return
		}
		if set.Log == nil {
			set.Log = &models.SetLog{}
		}
		set.Log.Reps = copyInt(reps)
		set.Log.Weight = copyFloat(weight)
		if rpe != nil {
			set.Log.RPE = copyFloat(rpe)
		}
		set.Log.LoggedAt = at
	}
}

// CompleteExercise toggles an exercise's completion. The planned slot is
// marked even when the ID names its substitute.
func CompleteExercise(exerciseID string, completed bool, at time.Time) Mutator {
	return func(p *models.Plan) {
		ex := FindSlot(p, exerciseID)
		if ex == nil {
			return
		}
		if completed {
			ts := at
			ex.CompletedAt = &ts
		} else {
			ex.CompletedAt = nil
		}
	}
}

// AddSet appends an extra set to the exercise's authoritative set list. The
// new set copies its targets from the last existing set.
func AddSet(exerciseID, newSetID string) Mutator {
	return func(p *models.Plan) {
		slot := FindSlot(p, exerciseID)
		if slot == nil {
			return
		}
		ex := slot.Effective()
		if _, existing := FindSet(p, newSetID); existing != nil {
			return
		}

		set := models.Set{ID: newSetID, Order: maxOrder(ex.Sets) + 1, IsExtra: true}
		if n := len(ex.Sets); n > 0 {
			last := ex.Sets[n-1]
			set.Reps = copyInt(last.Reps)
			set.MinReps = copyInt(last.MinReps)
			set.MaxReps = copyInt(last.MaxReps)
			set.Weight = copyFloat(last.Weight)
			set.RPE = copyFloat(last.RPE)
		}
		ex.Sets = append(ex.Sets, set)
	}
}

// RemoveSet deletes a set and renumbers the remaining ones to 1..N.
func RemoveSet(setID string) Mutator {
	return func(p *models.Plan) {
		ex, set := FindSet(p, setID)
		if set == nil {
			return
		}
		kept := ex.Sets[:0]
		for _, s := range ex.Sets {
			if s.ID != setID {
				kept = append(kept, s)
			}
		}
		ex.Sets = kept
		Renumber(ex)
	}
}

// MergeSet overwrites a set with server-authoritative values.
func MergeSet(server models.Set) Mutator {
	return func(p *models.Plan) {
		ex, set := FindSet(p, server.ID)
		if set == nil {
			return
		}
		*set = clone.Clone(server).(models.Set)
		Renumber(ex)
	}
}

// RestoreSet copies one set back from a previous snapshot.
func RestoreSet(prev *models.Plan, setID string) Mutator {
	return func(p *models.Plan) {
		_, old := FindSet(prev, setID)
		_, cur := FindSet(p, setID)
		if old == nil || cur == nil {
			return
		}
		*cur = clone.Clone(*old).(models.Set)
	}
}

// RestoreExercise copies one planned exercise, substitute and sets included,
// back from a previous snapshot.
func RestoreExercise(prev *models.Plan, exerciseID string) Mutator {
	return func(p *models.Plan) {
		old := FindSlot(prev, exerciseID)
		cur := FindSlot(p, exerciseID)
		if old == nil || cur == nil {
			return
		}
		*cur = clone.Clone(*old).(models.Exercise)
	}
}

// ReinsertSet puts a removed set back at the position it held in prev. The
// exercise's other sets keep their current values.
func ReinsertSet(prev *models.Plan, setID string) Mutator {
	return func(p *models.Plan) {
		owner, old := FindSet(prev, setID)
		if old == nil {
			return
		}
		if _, cur := FindSet(p, setID); cur != nil {
			return
		}
		ex := FindExercise(p, owner.ID)
		if ex == nil {
			return
		}
		at := min(max(old.Order-1, 0), len(ex.Sets))
		sets := make([]models.Set, 0, len(ex.Sets)+1)
		sets = append(sets, ex.Sets[:at]...)
		sets = append(sets, clone.Clone(*old).(models.Set))
		sets = append(sets, ex.Sets[at:]...)
		for i := range sets {
			sets[i].Order = i + 1
		}
		ex.Sets = sets
	}
}

// RestoreExerciseCompletion copies only the completion time of a planned
// exercise back from a previous snapshot.
func RestoreExerciseCompletion(prev *models.Plan, exerciseID string) Mutator {
	return func(p *models.Plan) {
		old := FindSlot(prev, exerciseID)
		cur := FindSlot(p, exerciseID)
		if old == nil || cur == nil {
			return
		}
		if old.CompletedAt == nil {
			cur.CompletedAt = nil
			return
		}
		ts := *old.CompletedAt
		cur.CompletedAt = &ts
	}
}

// Renumber sorts an exercise's sets by order and rewrites orders to 1..N.
func Renumber(ex *models.Exercise) {
	sort.SliceStable(ex.Sets, func(i, j int) bool { return ex.Sets[i].Order < ex.Sets[j].Order })
	for i := range ex.Sets {
		ex.Sets[i].Order = i + 1
	}
}

func maxOrder(sets []models.Set) int {
	m := 0
	for _, s := range sets {
		if s.Order > m {
			m = s.Order
		}
	}
	return m
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
