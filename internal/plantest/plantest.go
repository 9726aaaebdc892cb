// Package plantest builds small plan trees for tests.
package plantest

import (
	"fmt"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Sets builds n planned sets with IDs prefix-1..prefix-n.
func Sets(prefix string, n int, reps int, weight float64) []models.Set {
	sets := make([]models.Set, n)
	for i := range sets {
		sets[i] = models.Set{
			ID:     fmt.Sprintf("%s-%d", prefix, i+1),
			Order:  i + 1,
			Reps:   models.IntPtr(reps),
			Weight: models.FloatPtr(weight),
		}
	}
	return sets
}

// Week builds a cadence-style week with seven days. Day i gets the given
// exercises when present in byDay; days without exercises are rest days.
func Week(id string, byDay map[int][]models.Exercise) models.Week {
	w := models.Week{ID: id, Days: make([]models.Day, models.DaysPerWeek)}
	for i := range w.Days {
		exs := byDay[i]
		w.Days[i] = models.Day{
			ID:        fmt.Sprintf("%s-d%d", id, i),
			DayOfWeek: i,
			IsRestDay: len(exs) == 0,
			Exercises: exs,
		}
	}
	return w
}

// Sample returns a one-week cadence plan:
//
//	Monday:    bench (3 sets: bench-1..3), row substituted by cable-row (2 sets)
//	Wednesday: squat (3 sets)
//
// Every other day is a rest day.
func Sample() *models.Plan {
	start := Date(2024, time.January, 1)
	row := models.Exercise{
		ID:    "row",
		Name:  "Barbell Row",
		Order: 2,
		Sets:  Sets("row", 3, 10, 50),
		SubstitutedBy: &models.Exercise{
			ID:    "cable-row",
			Name:  "Cable Row",
			Order: 2,
			Sets:  Sets("cable-row", 2, 12, 35),
		},
	}
	return &models.Plan{
		ID:        "plan-1",
		Title:     "Strength",
		StartDate: &start,
		Weeks: []models.Week{
			Week("w1", map[int][]models.Exercise{
				0: {
					{ID: "bench", Name: "Bench Press", Order: 1, RestSeconds: models.IntPtr(120), Sets: Sets("bench", 3, 8, 60)},
					row,
				},
				2: {
					{ID: "squat", Name: "Back Squat", Order: 1, Sets: Sets("squat", 3, 5, 100)},
				},
			}),
		},
	}
}
