package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plantest"
	"github.com/MaciejGL/shaper/internal/storage"
)

// newTestServer creates an httptest server that routes requests to handler
// functions keyed by method and path.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestGetPlan verifies the plan tree round-trips through the client.
func TestGetPlan(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/plans/plan-1": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-API-Key"); got != "secret" {
				t.Errorf("X-API-Key = %q, want secret", got)
			}
			writeTestJSON(t, w, http.StatusOK, plantest.Sample())
		},
	})

	p, err := NewHTTPClient(ts.URL+"/", "secret").GetPlan(context.Background(), "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "plan-1" {
		t.Errorf("id = %q, want plan-1", p.ID)
	}
	if sub := p.Weeks[0].Days[0].Exercises[1].SubstitutedBy; sub == nil || len(sub.Sets) != 2 {
		t.Errorf("substitute = %+v", sub)
	}
}

// TestGetPlanNotFound verifies a 404 matches storage.ErrNotFound.
func TestGetPlanNotFound(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/plans/nope": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusNotFound, map[string]string{"error": "not found"})
		},
	})

	_, err := NewHTTPClient(ts.URL, "").GetPlan(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("err = %v, want StatusError 404", err)
	}
}

// TestCompleteSet verifies the body carries values but not client-only fields.
func TestCompleteSet(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/sets/bench-1/complete": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["completed"] != true || body["reps"] != 8.0 || body["weight"] != 62.5 {
				t.Errorf("body = %v", body)
			}
			if _, ok := body["SkipRest"]; ok {
				t.Error("SkipRest must not be sent")
			}
			w.WriteHeader(http.StatusNoContent)
		},
	})

	err := NewHTTPClient(ts.URL, "").CompleteSet(context.Background(), models.CompleteSetRequest{
		SetID:     "bench-1",
		Completed: true,
		Reps:      models.IntPtr(8),
		Weight:    models.FloatPtr(62.5),
		SkipRest:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestMutationsUseRightRoutes verifies method and path of every write.
func TestMutationsUseRightRoutes(t *testing.T) {
	var hits []string
	record := func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}
	previous := func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Method+" "+r.URL.Path)
		writeTestJSON(t, w, http.StatusOK, models.PreviousLogs{"bench": {{Reps: models.IntPtr(8)}}})
	}
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"PUT /api/v1/sets/bench-1/log":           record,
		"POST /api/v1/exercises/row/complete":    record,
		"DELETE /api/v1/sets/bench-2":            record,
		"GET /api/v1/plans/plan-1/previous-logs": previous,
	})
	c := NewHTTPClient(ts.URL, "")
	ctx := context.Background()

	if err := c.UpdateSetLog(ctx, models.UpdateSetLogRequest{SetID: "bench-1", Reps: models.IntPtr(9)}); err != nil {
		t.Fatal(err)
	}
	if err := c.CompleteExercise(ctx, models.CompleteExerciseRequest{ExerciseID: "row", Completed: true}); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveSet(ctx, "bench-2"); err != nil {
		t.Fatal(err)
	}
	logs, err := c.PreviousLogs(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if l := logs.At("bench", 1); l == nil || *l.Reps != 8 {
		t.Errorf("previous log = %+v", l)
	}
	if len(hits) != 4 {
		t.Errorf("hits = %v, want 4 requests", hits)
	}
}

// TestAddSet verifies the client-chosen id is sent and the server set returned.
func TestAddSet(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/exercises/bench/sets": func(w http.ResponseWriter, r *http.Request) {
			var req models.AddSetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if req.SetID != "extra-1" {
				t.Errorf("id = %q, want extra-1", req.SetID)
			}
			writeTestJSON(t, w, http.StatusCreated, models.Set{ID: req.SetID, Order: 4, IsExtra: true})
		},
	})

	set, err := NewHTTPClient(ts.URL, "").AddSet(context.Background(), models.AddSetRequest{ExerciseID: "bench", SetID: "extra-1"})
	if err != nil {
		t.Fatal(err)
	}
	if set.ID != "extra-1" || set.Order != 4 || !set.IsExtra {
		t.Errorf("set = %+v", set)
	}
}

// TestServerError verifies non-2xx responses surface as errors.
func TestServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"DELETE /api/v1/sets/bench-1": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})

	err := NewHTTPClient(ts.URL, "").RemoveSet(context.Background(), "bench-1")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError || se.Body != "boom" {
		t.Errorf("err = %v", err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("500 must not match ErrNotFound")
	}
}
