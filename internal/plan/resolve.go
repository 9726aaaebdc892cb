// Package plan locates and patches nodes inside a Plan tree. Patches run on a
// deep clone so that callers can keep the previous snapshot for rollback.
package plan

import "github.com/MaciejGL/shaper/internal/models"

// FindExercise returns the exercise with the given ID, or nil. The ID may name
// either a planned exercise or a substitute; the matching node is returned.
func FindExercise(p *models.Plan, id string) *models.Exercise {
	if p == nil || id == "" {
		return nil
	}
	for w := range p.Weeks {
		days := p.Weeks[w].Days
		for d := range days {
			exercises := days[d].Exercises
			for e := range exercises {
				ex := &exercises[e]
				if ex.ID == id {
					return ex
				}
				if ex.SubstitutedBy != nil && ex.SubstitutedBy.ID == id {
					return ex.SubstitutedBy
				}
			}
		}
	}
	return nil
}

// FindSlot returns the planned exercise that owns the given ID, either
// directly or through its substitute.
func FindSlot(p *models.Plan, id string) *models.Exercise {
	if p == nil || id == "" {
		return nil
	}
	for w := range p.Weeks {
		days := p.Weeks[w].Days
		for d := range days {
			exercises := days[d].Exercises
			for e := range exercises {
				ex := &exercises[e]
				if ex.ID == id || (ex.SubstitutedBy != nil && ex.SubstitutedBy.ID == id) {
					return ex
				}
			}
		}
	}
	return nil
}

// FindSet returns the set with the given ID together with the exercise whose
// set list holds it. Sets of a substituted original are never searched: the
// substitute's sets are authoritative.
func FindSet(p *models.Plan, setID string) (*models.Exercise, *models.Set) {
	if p == nil || setID == "" {
		return nil, nil
	}
	for w := range p.Weeks {
		days := p.Weeks[w].Days
		for d := range days {
			exercises := days[d].Exercises
			for e := range exercises {
				ex := exercises[e].Effective()
				for s := range ex.Sets {
					if ex.Sets[s].ID == setID {
						return ex, &ex.Sets[s]
					}
				}
			}
		}
	}
	return nil, nil
}

// ExerciseSets returns the authoritative sets for an exercise ID, following
// the substitution when present.
func ExerciseSets(p *models.Plan, exerciseID string) []models.Set {
	ex := FindExercise(p, exerciseID)
	if ex == nil {
		return nil
	}
	return ex.ActiveSets()
}
