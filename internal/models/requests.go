package models

// CompleteSetRequest marks a set completed or not. Reps/Weight/RPE carry the
// logged values when completing.
type CompleteSetRequest struct {
	SetID     string   `json:"-"`
	Completed bool     `json:"completed"`
	Reps      *int     `json:"reps,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	RPE       *float64 `json:"rpe,omitempty"`
	// SkipRest is a client-side flag recording that the rest countdown was
	// suppressed. It is never sent over the wire.
	SkipRest bool `json:"-"`
}

// UpdateSetLogRequest writes logged values without changing completion.
type UpdateSetLogRequest struct {
	SetID  string   `json:"-"`
	Reps   *int     `json:"reps,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
	RPE    *float64 `json:"rpe,omitempty"`
}

// CompleteExerciseRequest marks an exercise completed or not.
type CompleteExerciseRequest struct {
	ExerciseID string `json:"-"`
	Completed  bool   `json:"completed"`
}

// AddSetRequest appends an extra set. SetID is chosen by the client so a
// retried request creates the set at most once.
type AddSetRequest struct {
	ExerciseID string `json:"-"`
	SetID      string `json:"id"`
}

// PreviousLogs maps an exercise ID to the set logs of the most recent prior
// session of that exercise, indexed by set order minus one.
type PreviousLogs map[string][]*SetLog

// At returns the log for the given 1-based set order, or nil.
func (p PreviousLogs) At(exerciseID string, order int) *SetLog {
	logs := p[exerciseID]
	if order < 1 || order > len(logs) {
		return nil
	}
	return logs[order-1]
}

// Draft is the text a user has typed for a set but not yet persisted.
type Draft struct {
	Reps   string `json:"reps"`
	Weight string `json:"weight"`
}
