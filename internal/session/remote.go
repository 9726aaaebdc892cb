// Package session runs a live workout session over a cached plan: it applies
// edits optimistically, persists them through a Remote, and rolls back or
// re-syncs when the remote answers.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaciejGL/shaper/internal/models"
)

// Remote is the persistence boundary. Every call either fully succeeds or
// has no effect on the server.
type Remote interface {
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	PreviousLogs(ctx context.Context, planID string) (models.PreviousLogs, error)
	CompleteSet(ctx context.Context, req models.CompleteSetRequest) error
	UpdateSetLog(ctx context.Context, req models.UpdateSetLogRequest) error
	CompleteExercise(ctx context.Context, req models.CompleteExerciseRequest) error
	AddSet(ctx context.Context, req models.AddSetRequest) (*models.Set, error)
	RemoveSet(ctx context.Context, setID string) error
}

// ErrNoPlan is returned when a mutation runs before the plan is loaded.
var ErrNoPlan = errors.New("session: no plan loaded")

// MutationError reports a failed remote mutation. The optimistic patch has
// been rolled back unless Superseded is set, in which case a newer local edit
// of the same entity was kept.
type MutationError struct {
	Op         string
	EntityID   string
	Superseded bool
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
