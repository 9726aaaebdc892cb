package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
	"github.com/MaciejGL/shaper/internal/plantest"
	"github.com/MaciejGL/shaper/internal/selection"
	"github.com/MaciejGL/shaper/internal/storage"
)

// memStore is an in-memory store over a single plan.
type memStore struct {
	mu       sync.Mutex
	plan     *models.Plan
	previous models.PreviousLogs
	pingErr  error
	last     any
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) GetPlan(_ context.Context, planID string) (*models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan == nil || m.plan.ID != planID {
		return nil, fmt.Errorf("plan %s: %w", planID, storage.ErrNotFound)
	}
	return plan.Clone(m.plan), nil
}

func (m *memStore) PreviousLogs(context.Context, string) (models.PreviousLogs, error) {
	return m.previous, nil
}

func (m *memStore) setExists(setID string) bool {
	_, set := plan.FindSet(m.plan, setID)
	return set != nil
}

func (m *memStore) CompleteSet(_ context.Context, req models.CompleteSetRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if !m.setExists(req.SetID) {
		return storage.ErrNotFound
	}
	var log *models.SetLog
	if req.Completed {
		log = &models.SetLog{Reps: req.Reps, Weight: req.Weight, RPE: req.RPE, LoggedAt: time.Now()}
	}
	m.plan = plan.Patch(m.plan, plan.CompleteSet(req.SetID, req.Completed, log, time.Now()))
	return nil
}

func (m *memStore) UpdateSetLog(_ context.Context, req models.UpdateSetLogRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if !m.setExists(req.SetID) {
		return storage.ErrNotFound
	}
	m.plan = plan.Patch(m.plan, plan.UpdateSetLog(req.SetID, req.Reps, req.Weight, req.RPE, time.Now()))
	return nil
}

func (m *memStore) CompleteExercise(_ context.Context, req models.CompleteExerciseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if plan.FindSlot(m.plan, req.ExerciseID) == nil {
		return storage.ErrNotFound
	}
	m.plan = plan.Patch(m.plan, plan.CompleteExercise(req.ExerciseID, req.Completed, time.Now()))
	return nil
}

func (m *memStore) AddSet(_ context.Context, req models.AddSetRequest) (*models.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if plan.FindSlot(m.plan, req.ExerciseID) == nil {
		return nil, storage.ErrNotFound
	}
	m.plan = plan.Patch(m.plan, plan.AddSet(req.ExerciseID, req.SetID))
	_, set := plan.FindSet(m.plan, req.SetID)
	out := *set
	return &out, nil
}

func (m *memStore) RemoveSet(_ context.Context, setID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = setID
	if !m.setExists(setID) {
		return storage.ErrNotFound
	}
	m.plan = plan.Patch(m.plan, plan.RemoveSet(setID))
	return nil
}

func newTestServer(apiKey string) (*Server, *memStore) {
	store := &memStore{plan: plantest.Sample()}
	log := slog.New(slog.DiscardHandler)
	return New(store, apiKey, log), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestGetPlan(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodGet, "/api/v1/plans/plan-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var p models.Plan
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if p.ID != "plan-1" || len(p.Weeks) != 1 {
		t.Errorf("got plan %q with %d weeks", p.ID, len(p.Weeks))
	}
	if sub := p.Weeks[0].Days[0].Exercises[1].SubstitutedBy; sub == nil || sub.ID != "cable-row" {
		t.Errorf("substitute lost in transit: %+v", sub)
	}
}

func TestGetPlanNotFound(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodGet, "/api/v1/plans/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSelection(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodGet, "/api/v1/plans/plan-1/selection?now=2024-01-03T09:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var sel selection.Selection
	if err := json.NewDecoder(rec.Body).Decode(&sel); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if sel.WeekID != "w1" || sel.DayID != "w1-d2" {
		t.Errorf("selection = %+v, want w1/w1-d2", sel)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/plans/plan-1/selection?now=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad now: status = %d, want 400", rec.Code)
	}
}

func TestCompleteSet(t *testing.T) {
	s, store := newTestServer("")
	rec := do(t, s, http.MethodPost, "/api/v1/sets/bench-1/complete", `{"completed":true,"reps":8,"weight":62.5}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body)
	}

	req := store.last.(models.CompleteSetRequest)
	if req.SetID != "bench-1" || !req.Completed || *req.Reps != 8 || *req.Weight != 62.5 {
		t.Errorf("request = %+v", req)
	}
	_, set := plan.FindSet(store.plan, "bench-1")
	if !set.IsCompleted() {
		t.Error("set not completed in store")
	}
}

func TestCompleteSetBadJSON(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodPost, "/api/v1/sets/bench-1/complete", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateSetLogMissingSet(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodPut, "/api/v1/sets/nope/log", `{"reps":5}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCompleteExercise(t *testing.T) {
	s, store := newTestServer("")
	rec := do(t, s, http.MethodPost, "/api/v1/exercises/cable-row/complete", `{"completed":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if slot := plan.FindSlot(store.plan, "row"); slot.CompletedAt == nil {
		t.Error("slot not completed")
	}
}

func TestAddSet(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodPost, "/api/v1/exercises/bench/sets", `{"id":"extra-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var set models.Set
	if err := json.NewDecoder(rec.Body).Decode(&set); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if set.ID != "extra-1" || set.Order != 4 || !set.IsExtra {
		t.Errorf("set = %+v", set)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/exercises/bench/sets", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("no body: status = %d, want 201", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&set); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if set.ID == "" || set.Order != 5 {
		t.Errorf("generated set = %+v", set)
	}
}

func TestRemoveSet(t *testing.T) {
	s, store := newTestServer("")
	rec := do(t, s, http.MethodDelete, "/api/v1/sets/bench-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	sets := plan.ExerciseSets(store.plan, "bench")
	if len(sets) != 2 || sets[0].ID != "bench-2" || sets[0].Order != 1 {
		t.Errorf("sets after remove = %+v", sets)
	}
}

func TestPreviousLogs(t *testing.T) {
	s, store := newTestServer("")
	store.previous = models.PreviousLogs{"bench": {{Reps: models.IntPtr(8), Weight: models.FloatPtr(40)}, nil}}

	rec := do(t, s, http.MethodGet, "/api/v1/plans/plan-1/previous-logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.PreviousLogs
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if l := got.At("bench", 1); l == nil || *l.Reps != 8 {
		t.Errorf("bench #1 = %+v", l)
	}
	if l := got.At("bench", 2); l != nil {
		t.Errorf("bench #2 = %+v, want nil", l)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s, _ := newTestServer("secret")

	rec := do(t, s, http.MethodGet, "/api/v1/plans/plan-1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/plan-1", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
}

func TestHealthUnavailable(t *testing.T) {
	s, store := newTestServer("")
	store.pingErr = errors.New("connection refused")
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s, _ := newTestServer("")
	rec := do(t, s, http.MethodGet, "/api/v1/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}
