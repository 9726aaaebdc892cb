package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/selection"
	"github.com/MaciejGL/shaper/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if v := r.URL.Query().Get("now"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid now: " + err.Error()})
			return
		}
		now = t
	}

	p, err := s.store.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selection.Resolve(p, now))
}

func (s *Server) handlePreviousLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.PreviousLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteSetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SetID = chi.URLParam(r, "id")

	if err := s.store.CompleteSet(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSetLog(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSetLogRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SetID = chi.URLParam(r, "id")

	if err := s.store.UpdateSetLog(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveSet(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteExerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ExerciseID = chi.URLParam(r, "id")

	if err := s.store.CompleteExercise(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var req models.AddSetRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	req.ExerciseID = chi.URLParam(r, "id")
	if req.SetID == "" {
		req.SetID = uuid.NewString()
	}

	set, err := s.store.AddSet(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// writeError maps store errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.log.Error("store error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
