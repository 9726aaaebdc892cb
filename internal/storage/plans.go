package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/jackc/pgx/v5"
)

type weekRow struct {
	models.Week
}

type dayRow struct {
	WeekID string
	models.Day
}

type exerciseRow struct {
	DayID         string
	SubstitutesID *string
	models.Exercise
}

type setRow struct {
	ExerciseID string
	models.Set
}

// GetPlan loads the full plan tree.
func (db *DB) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	var p models.Plan
	err := db.Pool.QueryRow(ctx,
		`SELECT id, title, start_date FROM plans WHERE id = $1`, planID,
	).Scan(&p.ID, &p.Title, &p.StartDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying plan: %w", err)
	}

	weeks, err := db.queryWeeks(ctx, planID)
	if err != nil {
		return nil, err
	}
	days, err := db.queryDays(ctx, planID)
	if err != nil {
		return nil, err
	}
	exercises, err := db.queryExercises(ctx, planID)
	if err != nil {
		return nil, err
	}
	sets, err := db.querySets(ctx, planID)
	if err != nil {
		return nil, err
	}
	return assemble(p, weeks, days, exercises, sets), nil
}

func (db *DB) queryWeeks(ctx context.Context, planID string) ([]weekRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, week_number, scheduled_at, completed_at
		 FROM weeks WHERE plan_id = $1
		 ORDER BY week_number, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying weeks: %w", err)
	}
	defer rows.Close()

	var result []weekRow
	for rows.Next() {
		var r weekRow
		if err := rows.Scan(&r.ID, &r.WeekNumber, &r.ScheduledAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning week: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (db *DB) queryDays(ctx context.Context, planID string) ([]dayRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT d.id, d.week_id, d.day_of_week, d.is_rest_day, d.scheduled_at, d.completed_at
		 FROM days d JOIN weeks w ON w.id = d.week_id
		 WHERE w.plan_id = $1
		 ORDER BY d.day_of_week, d.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying days: %w", err)
	}
	defer rows.Close()

	var result []dayRow
	for rows.Next() {
		var r dayRow
		if err := rows.Scan(&r.ID, &r.WeekID, &r.DayOfWeek, &r.IsRestDay, &r.ScheduledAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning day: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (db *DB) queryExercises(ctx context.Context, planID string) ([]exerciseRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.day_id, e.substitutes_id, COALESCE(e.base_exercise_id, ''), e.name,
		 e.ord, e.rest_seconds, e.completed_at
		 FROM exercises e
		 JOIN days d ON d.id = e.day_id
		 JOIN weeks w ON w.id = d.week_id
		 WHERE w.plan_id = $1
		 ORDER BY e.ord, e.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []exerciseRow
	for rows.Next() {
		var r exerciseRow
		if err := rows.Scan(&r.ID, &r.DayID, &r.SubstitutesID, &r.BaseExerciseID, &r.Name,
			&r.Order, &r.RestSeconds, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (db *DB) querySets(ctx context.Context, planID string) ([]setRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.exercise_id, s.ord, s.reps, s.min_reps, s.max_reps, s.weight, s.rpe,
		 s.is_extra, s.completed_at, s.log_reps, s.log_weight, s.log_rpe, s.logged_at
		 FROM sets s
		 JOIN exercises e ON e.id = s.exercise_id
		 JOIN days d ON d.id = e.day_id
		 JOIN weeks w ON w.id = d.week_id
		 WHERE w.plan_id = $1
		 ORDER BY s.ord, s.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	var result []setRow
	for rows.Next() {
		var (
			r        setRow
			log      models.SetLog
			loggedAt *time.Time
		)
		if err := rows.Scan(&r.ID, &r.ExerciseID, &r.Order, &r.Reps, &r.MinReps, &r.MaxReps,
			&r.Weight, &r.RPE, &r.IsExtra, &r.CompletedAt,
			&log.Reps, &log.Weight, &log.RPE, &loggedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		if loggedAt != nil {
			log.LoggedAt = *loggedAt
			r.Log = &log
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// assemble builds the plan tree from flat rows. Rows must already be in
// display order; children whose parent is missing are dropped.
func assemble(p models.Plan, weeks []weekRow, days []dayRow, exercises []exerciseRow, sets []setRow) *models.Plan {
	setsByExercise := make(map[string][]models.Set)
	for _, s := range sets {
		setsByExercise[s.ExerciseID] = append(setsByExercise[s.ExerciseID], s.Set)
	}

	substitutes := make(map[string]*models.Exercise)
	for _, e := range exercises {
		if e.SubstitutesID == nil {
			continue
		}
		sub := e.Exercise
		sub.Sets = nonNil(setsByExercise[sub.ID])
		substitutes[*e.SubstitutesID] = &sub
	}

	exercisesByDay := make(map[string][]models.Exercise)
	for _, e := range exercises {
		if e.SubstitutesID != nil {
			continue
		}
		ex := e.Exercise
		ex.Sets = nonNil(setsByExercise[ex.ID])
		ex.SubstitutedBy = substitutes[ex.ID]
		exercisesByDay[e.DayID] = append(exercisesByDay[e.DayID], ex)
	}

	daysByWeek := make(map[string][]models.Day)
	for _, d := range days {
		day := d.Day
		day.Exercises = exercisesByDay[day.ID]
		if day.Exercises == nil {
			day.Exercises = []models.Exercise{}
		}
		daysByWeek[d.WeekID] = append(daysByWeek[d.WeekID], day)
	}

	p.Weeks = make([]models.Week, 0, len(weeks))
	for _, w := range weeks {
		week := w.Week
		week.Days = daysByWeek[week.ID]
		if week.Days == nil {
			week.Days = []models.Day{}
		}
		p.Weeks = append(p.Weeks, week)
	}
	return &p
}

func nonNil(sets []models.Set) []models.Set {
	if sets == nil {
		return []models.Set{}
	}
	return sets
}

// SavePlan replaces a plan and its whole tree. Logged progress of the
// replaced plan is lost.
func (db *DB) SavePlan(ctx context.Context, p *models.Plan) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM plans WHERE id = $1`, p.ID); err != nil {
			return fmt.Errorf("deleting plan %s: %w", p.ID, err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO plans (id, title, start_date) VALUES ($1, $2, $3)`,
			p.ID, p.Title, p.StartDate)
		for _, w := range p.Weeks {
			batch.Queue(`INSERT INTO weeks (id, plan_id, week_number, scheduled_at, completed_at)
				VALUES ($1, $2, $3, $4, $5)`,
				w.ID, p.ID, w.WeekNumber, w.ScheduledAt, w.CompletedAt)
			for _, d := range w.Days {
				batch.Queue(`INSERT INTO days (id, week_id, day_of_week, is_rest_day, scheduled_at, completed_at)
					VALUES ($1, $2, $3, $4, $5, $6)`,
					d.ID, w.ID, d.DayOfWeek, d.IsRestDay, d.ScheduledAt, d.CompletedAt)
				for _, e := range d.Exercises {
					queueExercise(batch, d.ID, nil, e)
					if e.SubstitutedBy != nil {
						queueExercise(batch, d.ID, &e.ID, *e.SubstitutedBy)
					}
				}
			}
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("inserting plan %s: %w", p.ID, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("inserting plan %s: %w", p.ID, err)
		}
		return nil
	})
}

func queueExercise(batch *pgx.Batch, dayID string, substitutes *string, e models.Exercise) {
	batch.Queue(`INSERT INTO exercises (id, day_id, substitutes_id, base_exercise_id, name, ord, rest_seconds, completed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		e.ID, dayID, substitutes, e.BaseExerciseID, e.Name, e.Order, e.RestSeconds, e.CompletedAt)
	for _, s := range e.Sets {
		var (
			reps, loggedAt any
			weight, rpe    any
		)
		if s.Log != nil {
			reps, weight, rpe, loggedAt = s.Log.Reps, s.Log.Weight, s.Log.RPE, s.Log.LoggedAt
		}
		batch.Queue(`INSERT INTO sets (id, exercise_id, ord, reps, min_reps, max_reps, weight, rpe,
			is_extra, completed_at, log_reps, log_weight, log_rpe, logged_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			s.ID, e.ID, s.Order, s.Reps, s.MinReps, s.MaxReps, s.Weight, s.RPE,
			s.IsExtra, s.CompletedAt, reps, weight, rpe, loggedAt)
	}
}

// PreviousLogs returns, for every exercise in the plan, the set logs of the
// most recent other exercise sharing its base exercise. Entries are indexed
// by set order minus one; unlogged sets are nil.
func (db *DB) PreviousLogs(ctx context.Context, planID string) (models.PreviousLogs, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT e.id, s.ord, s.log_reps, s.log_weight, s.log_rpe, s.logged_at
		 FROM exercises e
		 JOIN days d ON d.id = e.day_id
		 JOIN weeks w ON w.id = d.week_id
		 CROSS JOIN LATERAL (
			SELECT x.id
			FROM exercises x
			JOIN sets xs ON xs.exercise_id = x.id
			WHERE x.base_exercise_id = e.base_exercise_id
			  AND x.id <> e.id
			  AND xs.logged_at IS NOT NULL
			GROUP BY x.id
			ORDER BY MAX(xs.logged_at) DESC
			LIMIT 1
		 ) prev
		 JOIN sets s ON s.exercise_id = prev.id
		 WHERE w.plan_id = $1 AND e.base_exercise_id IS NOT NULL
		 ORDER BY e.id, s.ord`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying previous logs: %w", err)
	}
	defer rows.Close()

	result := make(models.PreviousLogs)
	for rows.Next() {
		var (
			exerciseID string
			order      int
			log        models.SetLog
			loggedAt   *time.Time
		)
		if err := rows.Scan(&exerciseID, &order, &log.Reps, &log.Weight, &log.RPE, &loggedAt); err != nil {
			return nil, fmt.Errorf("scanning previous log: %w", err)
		}
		if order < 1 {
			continue
		}
		logs := result[exerciseID]
		for len(logs) < order {
			logs = append(logs, nil)
		}
		if loggedAt != nil {
			log.LoggedAt = *loggedAt
			logs[order-1] = &log
		}
		result[exerciseID] = logs
	}
	return result, rows.Err()
}
