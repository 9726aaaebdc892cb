package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
	"github.com/MaciejGL/shaper/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// optionalNumber reads a numeric argument, reporting nil when it is absent.
func optionalNumber(req mcp.CallToolRequest, name string) (*float64, error) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	default:
		return nil, fmt.Errorf("%s must be a number", name)
	}
}

func optionalInt(req mcp.CallToolRequest, name string) (*int, error) {
	f, err := optionalNumber(req, name)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%s must be a whole number", name)
	}
	n := int(*f)
	return &n, nil
}

// failure turns an engine error into a tool error result.
func (h *handlers) failure(op string, err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrNoPlan) {
		return mcp.NewToolResultError("no plan loaded")
	}
	h.log.Error("mcp "+op, "error", err)
	return mcp.NewToolResultError(op + " failed: " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// restStatus describes the running rest countdown.
type restStatus struct {
	SetID            string `json:"set_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

func (h *handlers) rest() *restStatus {
	setID, left, ok := h.eng.Rest()
	if !ok {
		return nil
	}
	return &restStatus{SetID: setID, RemainingSeconds: int(left.Round(time.Second) / time.Second)}
}

// setView returns the set as the session shows it, with its draft text.
func (h *handlers) setView(setID string) map[string]any {
	out := map[string]any{"set_id": setID}
	if _, set := plan.FindSet(h.eng.Plan(), setID); set != nil {
		out["set"] = set
	}
	if d, ok := h.eng.Draft(setID); ok {
		out["draft"] = d
	}
	if r := h.rest(); r != nil {
		out["rest"] = r
	}
	return out
}

// --- Tool definitions ---

var toolGetPlan = mcp.NewTool("get_plan",
	mcp.WithDescription("Return the whole training plan as the session shows it: weeks, days, exercises (with substitutes) and sets with their logs."),
)

var toolGetDefaultSelection = mcp.NewTool("get_default_selection",
	mcp.WithDescription("Return the week and day that should be open at a given time, and whether the plan has already ended."),
	mcp.WithString("now", mcp.Description("Reference time (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolCompleteSet = mcp.NewTool("complete_set",
	mcp.WithDescription("Mark a set completed or not completed. Completing logs the typed values, or the values carried forward from earlier sets and the previous session, and starts the rest timer."),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set ID")),
	mcp.WithBoolean("completed", mcp.Description("Completion state. Defaults to true.")),
	mcp.WithBoolean("skip_rest", mcp.Description("Do not start the rest timer. Defaults to false.")),
)

var toolClickSet = mcp.NewTool("click_set",
	mcp.WithDescription("Press the completion control of a set. A single press toggles completion after a short window; a second press within the window toggles it without starting rest."),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set ID")),
)

var toolEditSet = mcp.NewTool("edit_set",
	mcp.WithDescription("Type reps and/or weight into a set's inputs. The text is sanitized and saved after a short pause unless the set is completed first."),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set ID")),
	mcp.WithString("reps", mcp.Description("Typed reps text")),
	mcp.WithString("weight", mcp.Description("Typed weight text")),
)

var toolUpdateSetLog = mcp.NewTool("update_set_log",
	mcp.WithDescription("Save logged reps and/or weight for a set immediately."),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set ID")),
	mcp.WithNumber("reps", mcp.Description("Logged reps")),
	mcp.WithNumber("weight", mcp.Description("Logged weight")),
)

var toolCompleteExercise = mcp.NewTool("complete_exercise",
	mcp.WithDescription("Mark an exercise completed or not completed. A substitute's ID marks the exercise it replaces."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise ID")),
	mcp.WithBoolean("completed", mcp.Description("Completion state. Defaults to true.")),
)

var toolAddSet = mcp.NewTool("add_set",
	mcp.WithDescription("Append an extra set to an exercise, copying the targets of its last set. Sets go to the substitute when the exercise is substituted."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise ID")),
)

var toolRemoveSet = mcp.NewTool("remove_set",
	mcp.WithDescription("Remove a set and renumber the remaining sets of its exercise."),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set ID")),
)

// --- Tool handlers ---

func (h *handlers) getPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := h.eng.Plan()
	if p == nil {
		return mcp.NewToolResultError("no plan loaded"), nil
	}
	return jsonResult(p)
}

func (h *handlers) getDefaultSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := h.now()
	if s := req.GetString("now", ""); s != "" {
		t, err := parseFlexTime(s)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		now = t
	}
	if h.eng.Plan() == nil {
		return mcp.NewToolResultError("no plan loaded"), nil
	}
	return jsonResult(h.eng.DefaultSelection(now))
}

func (h *handlers) completeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}
	completed := req.GetBool("completed", true)
	skipRest := req.GetBool("skip_rest", false)

	if err := h.eng.CompleteSet(ctx, setID, completed, skipRest); err != nil {
		return h.failure("complete_set", err), nil
	}
	return jsonResult(h.setView(setID))
}

func (h *handlers) clickSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}
	h.eng.Click(setID)
	return jsonResult(map[string]any{
		"set_id": setID,
		"state":  h.eng.ClickState(setID).String(),
	})
}

func (h *handlers) editSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}
	args := req.GetArguments()
	_, hasReps := args["reps"]
	_, hasWeight := args["weight"]
	if !hasReps && !hasWeight {
		return mcp.NewToolResultError("reps or weight is required"), nil
	}

	var d models.Draft
	if hasReps {
		d = h.eng.Edit(setID, session.FieldReps, req.GetString("reps", ""))
	}
	if hasWeight {
		d = h.eng.Edit(setID, session.FieldWeight, req.GetString("weight", ""))
	}
	return jsonResult(map[string]any{"set_id": setID, "draft": d})
}

func (h *handlers) updateSetLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}
	reps, err := optionalInt(req, "reps")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weight, err := optionalNumber(req, "weight")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if reps == nil && weight == nil {
		return mcp.NewToolResultError("reps or weight is required"), nil
	}

	if err := h.eng.UpdateSetLog(ctx, setID, reps, weight); err != nil {
		return h.failure("update_set_log", err), nil
	}
	return jsonResult(h.setView(setID))
}

func (h *handlers) completeExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}
	completed := req.GetBool("completed", true)

	if err := h.eng.CompleteExercise(ctx, exerciseID, completed); err != nil {
		return h.failure("complete_exercise", err), nil
	}
	return jsonResult(plan.FindExercise(h.eng.Plan(), exerciseID))
}

func (h *handlers) addSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	set, err := h.eng.AddSet(ctx, exerciseID)
	if err != nil {
		return h.failure("add_set", err), nil
	}
	if set == nil {
		return mcp.NewToolResultError("exercise " + exerciseID + " not found"), nil
	}
	return jsonResult(set)
}

func (h *handlers) removeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}

	ex, _ := plan.FindSet(h.eng.Plan(), setID)
	if err := h.eng.RemoveSet(ctx, setID); err != nil {
		return h.failure("remove_set", err), nil
	}
	out := map[string]any{"removed": setID}
	if ex != nil {
		out["sets"] = plan.ExerciseSets(h.eng.Plan(), ex.ID)
	}
	return jsonResult(out)
}
