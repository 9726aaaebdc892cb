package models

import "time"

// DaysPerWeek is the fixed number of Days in every Week.
const DaysPerWeek = 7

// Plan is a multi-week training program. A plan is either cadence-scheduled
// (weeks numbered from StartDate) or calendar-scheduled (every week carries
// ScheduledAt), never both.
type Plan struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartDate *time.Time `json:"startDate,omitempty"`
	Weeks     []Week     `json:"weeks"`
}

// IsCalendarScheduled reports whether any week carries a concrete date.
func (p *Plan) IsCalendarScheduled() bool {
	for i := range p.Weeks {
		if p.Weeks[i].ScheduledAt != nil {
			return true
		}
	}
	return false
}

// Week holds the seven days of one training week.
type Week struct {
	ID          string     `json:"id"`
	WeekNumber  int        `json:"weekNumber"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Days        []Day      `json:"days"`
}

// Day is one training (or rest) day. DayOfWeek is Monday-based: 0 = Monday.
type Day struct {
	ID          string     `json:"id"`
	DayOfWeek   int        `json:"dayOfWeek"`
	IsRestDay   bool       `json:"isRestDay"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

// Exercise is a planned movement with its sets. When SubstitutedBy is set the
// substitute's sets are authoritative; use ActiveSets to read them.
type Exercise struct {
	ID             string     `json:"id"`
	BaseExerciseID string     `json:"baseExerciseId,omitempty"`
	Name           string     `json:"name"`
	Order          int        `json:"order"`
	RestSeconds    *int       `json:"restSeconds,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	SubstitutedBy  *Exercise  `json:"substitutedBy,omitempty"`
	Sets           []Set      `json:"sets"`
}

// Effective returns the substitute when present, otherwise the exercise itself.
func (e *Exercise) Effective() *Exercise {
	if e.SubstitutedBy != nil {
		return e.SubstitutedBy
	}
	return e
}

// ActiveSets returns the sets that progress and logging operate on.
func (e *Exercise) ActiveSets() []Set {
	return e.Effective().Sets
}

// Set is one planned (or user-added) set. Targets are nil when unset.
type Set struct {
	ID          string     `json:"id"`
	Order       int        `json:"order"`
	Reps        *int       `json:"reps,omitempty"`
	MinReps     *int       `json:"minReps,omitempty"`
	MaxReps     *int       `json:"maxReps,omitempty"`
	Weight      *float64   `json:"weight,omitempty"`
	RPE         *float64   `json:"rpe,omitempty"`
	IsExtra     bool       `json:"isExtra"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Log         *SetLog    `json:"log,omitempty"`
}

// SetLog records what was actually performed.
type SetLog struct {
	Reps     *int      `json:"reps,omitempty"`
	Weight   *float64  `json:"weight,omitempty"`
	RPE      *float64  `json:"rpe,omitempty"`
	LoggedAt time.Time `json:"loggedAt"`
}

// IsCompleted reports whether the set has been marked done.
func (s *Set) IsCompleted() bool {
	return s.CompletedAt != nil
}

// IntPtr and FloatPtr are small helpers for optional values.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
