package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/session"
	"github.com/jackc/pgx/v5"
)

var _ session.Remote = (*DB)(nil)

// CompleteSet marks a set completed with its logged values, or clears the
// completion. Un-completing keeps the log.
func (db *DB) CompleteSet(ctx context.Context, req models.CompleteSetRequest) error {
	var (
		sql  string
		args []any
	)
	if req.Completed {
		sql = `UPDATE sets SET completed_at = NOW(), log_reps = $2, log_weight = $3,
			log_rpe = COALESCE($4, log_rpe), logged_at = NOW()
			WHERE id = $1`
		args = []any{req.SetID, req.Reps, req.Weight, req.RPE}
	} else {
		sql = `UPDATE sets SET completed_at = NULL WHERE id = $1`
		args = []any{req.SetID}
	}

	tag, err := db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("completing set %s: %w", req.SetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %s: %w", req.SetID, ErrNotFound)
	}
	return nil
}

// UpdateSetLog writes logged values without touching completion. A nil RPE
// keeps the stored one.
func (db *DB) UpdateSetLog(ctx context.Context, req models.UpdateSetLogRequest) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE sets SET log_reps = $2, log_weight = $3, log_rpe = COALESCE($4, log_rpe), logged_at = NOW()
		 WHERE id = $1`,
		req.SetID, req.Reps, req.Weight, req.RPE)
	if err != nil {
		return fmt.Errorf("updating set log %s: %w", req.SetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %s: %w", req.SetID, ErrNotFound)
	}
	return nil
}

// CompleteExercise marks the planned exercise owning the given ID. A
// substitute's ID marks the exercise it replaces.
func (db *DB) CompleteExercise(ctx context.Context, req models.CompleteExerciseRequest) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE exercises SET completed_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		 WHERE id = (SELECT COALESCE(substitutes_id, id) FROM exercises WHERE id = $1)`,
		req.ExerciseID, req.Completed)
	if err != nil {
		return fmt.Errorf("completing exercise %s: %w", req.ExerciseID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exercise %s: %w", req.ExerciseID, ErrNotFound)
	}
	return nil
}

// effectiveExercise returns the exercise whose sets are authoritative for
// the given ID: the substitute when the planned exercise has one.
func effectiveExercise(ctx context.Context, tx pgx.Tx, exerciseID string) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`WITH slot AS (
			SELECT COALESCE(substitutes_id, id) AS id FROM exercises WHERE id = $1
		 )
		 SELECT COALESCE(
			(SELECT s.id FROM exercises s, slot WHERE s.substitutes_id = slot.id),
			(SELECT id FROM slot))`,
		exerciseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && id == "") {
		return "", fmt.Errorf("exercise %s: %w", exerciseID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolving exercise %s: %w", exerciseID, err)
	}
	return id, nil
}

// AddSet appends an extra set that copies the targets of the current last
// set. The set ID comes from the caller; repeating a request returns the
// already created set.
func (db *DB) AddSet(ctx context.Context, req models.AddSetRequest) (*models.Set, error) {
	var set *models.Set
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		exerciseID, err := effectiveExercise(ctx, tx, req.ExerciseID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO sets (id, exercise_id, ord, reps, min_reps, max_reps, weight, rpe, is_extra)
			 SELECT $1, $2, COALESCE(MAX(s.ord), 0) + 1,
				(SELECT reps FROM sets WHERE exercise_id = $2 ORDER BY ord DESC LIMIT 1),
				(SELECT min_reps FROM sets WHERE exercise_id = $2 ORDER BY ord DESC LIMIT 1),
				(SELECT max_reps FROM sets WHERE exercise_id = $2 ORDER BY ord DESC LIMIT 1),
				(SELECT weight FROM sets WHERE exercise_id = $2 ORDER BY ord DESC LIMIT 1),
				(SELECT rpe FROM sets WHERE exercise_id = $2 ORDER BY ord DESC LIMIT 1),
				TRUE
			 FROM sets s WHERE s.exercise_id = $2
			 ON CONFLICT (id) DO NOTHING`,
			req.SetID, exerciseID)
		if err != nil {
			return fmt.Errorf("inserting set: %w", err)
		}

		set, err = getSet(ctx, tx, req.SetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func getSet(ctx context.Context, tx pgx.Tx, setID string) (*models.Set, error) {
	var s models.Set
	err := tx.QueryRow(ctx,
		`SELECT id, ord, reps, min_reps, max_reps, weight, rpe, is_extra, completed_at
		 FROM sets WHERE id = $1`, setID,
	).Scan(&s.ID, &s.Order, &s.Reps, &s.MinReps, &s.MaxReps, &s.Weight, &s.RPE, &s.IsExtra, &s.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("set %s: %w", setID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying set %s: %w", setID, err)
	}
	return &s, nil
}

// RemoveSet deletes a set and renumbers the remaining sets of its exercise
// to 1..N.
func (db *DB) RemoveSet(ctx context.Context, setID string) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		var exerciseID string
		err := tx.QueryRow(ctx,
			`DELETE FROM sets WHERE id = $1 RETURNING exercise_id`, setID,
		).Scan(&exerciseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("set %s: %w", setID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("deleting set %s: %w", setID, err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE sets SET ord = r.rn
			 FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY ord, id) AS rn
				   FROM sets WHERE exercise_id = $1) r
			 WHERE sets.id = r.id AND sets.ord <> r.rn`,
			exerciseID)
		if err != nil {
			return fmt.Errorf("renumbering sets of %s: %w", exerciseID, err)
		}
		return nil
	})
}
