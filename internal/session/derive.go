package session

import (
	"sort"

	"github.com/MaciejGL/shaper/internal/models"
)

// DraftSource exposes unflushed drafts to value derivation.
type DraftSource interface {
	Pending(setID string) (models.Draft, bool)
}

// Values are the reps and weight to log for a set. Nil means unknown.
type Values struct {
	Reps   *int
	Weight *float64
}

func (v Values) complete() bool {
	return v.Reps != nil && v.Weight != nil
}

// fill copies each missing field from o.
func (v *Values) fill(o Values) {
	if v.Reps == nil && o.Reps != nil {
		r := *o.Reps
		v.Reps = &r
	}
	if v.Weight == nil && o.Weight != nil {
		w := *o.Weight
		v.Weight = &w
	}
}

func logValues(l *models.SetLog) Values {
	if l == nil {
		return Values{}
	}
	return Values{Reps: l.Reps, Weight: l.Weight}
}

// Derive carries values forward for a set completed without typed input.
// Earlier sets of the same exercise are walked from nearest to farthest,
// preferring an unflushed draft over the persisted log; the same-ordinal
// log from the previous session is the last resort. Each field resolves
// independently and stays nil when nothing matches.
func Derive(sets []models.Set, target *models.Set, drafts DraftSource, previous *models.SetLog) Values {
	var out Values
	if target == nil {
		return out
	}

	earlier := make([]models.Set, 0, len(sets))
	for _, s := range sets {
		if s.Order < target.Order && s.ID != target.ID {
			earlier = append(earlier, s)
		}
	}
	sort.SliceStable(earlier, func(i, j int) bool { return earlier[i].Order > earlier[j].Order })

	for _, s := range earlier {
		if drafts != nil {
			if d, ok := drafts.Pending(s.ID); ok {
				reps, weight := ParseDraft(d)
				out.fill(Values{Reps: reps, Weight: weight})
			}
		}
		out.fill(logValues(s.Log))
		if out.complete() {
			return out
		}
	}
	out.fill(logValues(previous))
	return out
}
