// Package selection picks the week and day to show when a session opens
// without an explicit choice. Resolve is pure over its inputs.
package selection

import (
	"time"

	"github.com/MaciejGL/shaper/internal/models"
)

const weekSpan = 7 * 24 * time.Hour

// Selection is the default (week, day) pair. Empty IDs mean nothing to select.
type Selection struct {
	WeekID        string `json:"weekId,omitempty"`
	DayID         string `json:"dayId,omitempty"`
	IsPastPlanEnd bool   `json:"isPastPlanEnd"`
}

// Resolve returns the default selection for plan at now.
func Resolve(plan *models.Plan, now time.Time) Selection {
	if plan == nil || len(plan.Weeks) == 0 {
		return Selection{}
	}

	var (
		week    *models.Week
		pastEnd bool
		byDate  *models.Day
	)
	if plan.IsCalendarScheduled() {
		week = calendarWeek(plan.Weeks, now)
		byDate = dayOnDate(week, now)
	} else {
		week, pastEnd = cadenceWeek(plan, now)
	}

	sel := Selection{WeekID: week.ID, IsPastPlanEnd: pastEnd}
	switch {
	case pastEnd:
		sel.DayID = idOf(lastMeaningfulDay(week))
	case byDate != nil:
		sel.DayID = byDate.ID
	default:
		sel.DayID = idOf(dayForWeekday(week, now))
	}
	return sel
}

// calendarWeek returns the week whose [scheduledAt, +7d) window contains now,
// otherwise the week nearest to now. Ties go to the earlier week.
func calendarWeek(weeks []models.Week, now time.Time) *models.Week {
	var (
		nearest *models.Week
		best    time.Duration
	)
	for i := range weeks {
		w := &weeks[i]
		if w.ScheduledAt == nil {
			continue
		}
		start := *w.ScheduledAt
		if !now.Before(start) && now.Before(start.Add(weekSpan)) {
			return w
		}
		dist := absDuration(now.Sub(start))
		if nearest == nil || dist < best || (dist == best && start.Before(*nearest.ScheduledAt)) {
			nearest, best = w, dist
		}
	}
	if nearest == nil {
		return &weeks[0]
	}
	return nearest
}

// cadenceWeek indexes weeks by whole weeks elapsed since the plan start.
func cadenceWeek(plan *models.Plan, now time.Time) (*models.Week, bool) {
	start := now
	if plan.StartDate != nil {
		start = *plan.StartDate
	}
	idx := floorDiv(daysBetween(start, now), 7)
	pastEnd := idx >= len(plan.Weeks)
	idx = max(0, min(idx, len(plan.Weeks)-1))
	return &plan.Weeks[idx], pastEnd
}

// dayOnDate returns the day scheduled on now's calendar date, if any.
func dayOnDate(week *models.Week, now time.Time) *models.Day {
	y, m, d := now.Date()
	for i := range week.Days {
		day := &week.Days[i]
		if day.ScheduledAt == nil {
			continue
		}
		dy, dm, dd := day.ScheduledAt.In(now.Location()).Date()
		if dy == y && dm == m && dd == d {
			return day
		}
	}
	return nil
}

// lastMeaningfulDay returns the latest non-rest day that has exercises,
// falling back to the first day.
func lastMeaningfulDay(week *models.Week) *models.Day {
	var last *models.Day
	for i := range week.Days {
		day := &week.Days[i]
		if day.IsRestDay || len(day.Exercises) == 0 {
			continue
		}
		if last == nil || day.DayOfWeek > last.DayOfWeek {
			last = day
		}
	}
	if last == nil && len(week.Days) > 0 {
		return &week.Days[0]
	}
	return last
}

// dayForWeekday matches now's weekday (Monday = 0), then the first
// uncompleted day, then the first day.
func dayForWeekday(week *models.Week, now time.Time) *models.Day {
	want := MondayIndex(now.Weekday())
	for i := range week.Days {
		if week.Days[i].DayOfWeek == want {
			return &week.Days[i]
		}
	}
	for i := range week.Days {
		if week.Days[i].CompletedAt == nil {
			return &week.Days[i]
		}
	}
	if len(week.Days) > 0 {
		return &week.Days[0]
	}
	return nil
}

// MondayIndex converts a time.Weekday (Sunday = 0) to the plan convention
// where Monday = 0 and Sunday = 6.
func MondayIndex(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// daysBetween counts calendar days from a to b in b's location.
func daysBetween(a, b time.Time) int {
	loc := b.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func idOf(d *models.Day) string {
	if d == nil {
		return ""
	}
	return d.ID
}
