package storage

import (
	"testing"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
)

func TestAssemble(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row := "row"
	loggedAt := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

	p := assemble(
		models.Plan{ID: "plan-1", Title: "Strength", StartDate: &start},
		[]weekRow{{Week: models.Week{ID: "w1", WeekNumber: 1}}},
		[]dayRow{
			{WeekID: "w1", Day: models.Day{ID: "w1-d0", DayOfWeek: 0}},
			{WeekID: "w1", Day: models.Day{ID: "w1-d1", DayOfWeek: 1, IsRestDay: true}},
			{WeekID: "orphan", Day: models.Day{ID: "x-d0"}},
		},
		[]exerciseRow{
			{DayID: "w1-d0", Exercise: models.Exercise{ID: "bench", Order: 1}},
			{DayID: "w1-d0", Exercise: models.Exercise{ID: "row", Order: 2}},
			{DayID: "w1-d0", SubstitutesID: &row, Exercise: models.Exercise{ID: "cable-row", Order: 2}},
		},
		[]setRow{
			{ExerciseID: "bench", Set: models.Set{ID: "bench-1", Order: 1, Log: &models.SetLog{Reps: models.IntPtr(8), LoggedAt: loggedAt}}},
			{ExerciseID: "bench", Set: models.Set{ID: "bench-2", Order: 2}},
			{ExerciseID: "row", Set: models.Set{ID: "row-1", Order: 1}},
			{ExerciseID: "cable-row", Set: models.Set{ID: "cable-row-1", Order: 1}},
		},
	)

	if p.ID != "plan-1" || len(p.Weeks) != 1 {
		t.Fatalf("got plan %s with %d weeks", p.ID, len(p.Weeks))
	}
	days := p.Weeks[0].Days
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2 (orphan dropped)", len(days))
	}
	if days[1].Exercises == nil || len(days[1].Exercises) != 0 {
		t.Errorf("rest day exercises = %v, want empty non-nil", days[1].Exercises)
	}

	exs := days[0].Exercises
	if len(exs) != 2 {
		t.Fatalf("got %d planned exercises, want 2", len(exs))
	}
	if got := len(exs[0].Sets); got != 2 {
		t.Errorf("bench sets = %d, want 2", got)
	}
	if exs[0].Sets[0].Log == nil || *exs[0].Sets[0].Log.Reps != 8 {
		t.Errorf("bench-1 log = %+v", exs[0].Sets[0].Log)
	}
	sub := exs[1].SubstitutedBy
	if sub == nil || sub.ID != "cable-row" {
		t.Fatalf("row substitute = %+v", sub)
	}
	if len(sub.Sets) != 1 || sub.Sets[0].ID != "cable-row-1" {
		t.Errorf("substitute sets = %+v", sub.Sets)
	}
	if len(exs[1].Sets) != 1 {
		t.Errorf("original row sets = %d, want 1", len(exs[1].Sets))
	}
}

func TestAssembleEmpty(t *testing.T) {
	p := assemble(models.Plan{ID: "empty"}, nil, nil, nil, nil)
	if p.Weeks == nil || len(p.Weeks) != 0 {
		t.Errorf("weeks = %v, want empty non-nil", p.Weeks)
	}
}
