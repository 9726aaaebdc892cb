package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
)

const weekSpan = 7 * 24 * time.Hour

// Validate checks the structural invariants of a plan: unique exercise and
// set IDs, contiguous set orders, and a single scheduling variant. All
// violations are returned joined.
func Validate(p *models.Plan) error {
	if p == nil {
		return nil
	}
	var errs []error
	seen := make(map[string]bool)
	claim := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
			return
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate %s id %s", kind, id))
			return
		}
		seen[id] = true
	}

	calendar := p.IsCalendarScheduled()
	for w := range p.Weeks {
		week := &p.Weeks[w]
		if calendar && week.ScheduledAt == nil {
			errs = append(errs, fmt.Errorf("week %s: calendar-scheduled plan has a week without scheduledAt", week.ID))
		}
		for d := range week.Days {
			day := &week.Days[d]
			if !calendar && day.DayOfWeek != d {
				errs = append(errs, fmt.Errorf("week %s: day %d has dayOfWeek %d", week.ID, d, day.DayOfWeek))
			}
			if calendar && week.ScheduledAt != nil && day.ScheduledAt != nil {
				start := *week.ScheduledAt
				if day.ScheduledAt.Before(start) || !day.ScheduledAt.Before(start.Add(weekSpan)) {
					errs = append(errs, fmt.Errorf("day %s: scheduledAt outside its week window", day.ID))
				}
			}
			for e := range day.Exercises {
				ex := &day.Exercises[e]
				claim("exercise", ex.ID)
				if ex.SubstitutedBy != nil {
					claim("exercise", ex.SubstitutedBy.ID)
				}
				active := ex.Effective()
				for i, s := range active.Sets {
					claim("set", s.ID)
					if s.Order != i+1 {
						errs = append(errs, fmt.Errorf("exercise %s: set %s has order %d, want %d", active.ID, s.ID, s.Order, i+1))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}
