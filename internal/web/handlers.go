package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/cademycode/internal/pipeline"
)

// maxRunLimit caps the limit query parameter of GET /api/runs.
const maxRunLimit = 500

type healthResponse struct {
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}

type runsResponse struct {
	Runs []*pipeline.Summary `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Busy: s.runner.Busy()})
}

// handleStartRun triggers a background run and answers 202 with the
// in-flight summary, or 409 while another run is active.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Start(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			s.respondError(w, r, err, http.StatusConflict)
			return
		}
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/api/runs/last")
	writeJSON(w, http.StatusAccepted, summary)
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.runner.Last()
	if !ok {
		s.respondError(w, r, errNoRuns, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListRuns serves persisted history, or the last in-memory run when no
// history store is configured.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if s.history == nil {
		runs := []*pipeline.Summary{}
		if last, ok := s.runner.Last(); ok {
			runs = append(runs, last)
		}
		writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
		return
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*pipeline.Summary{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

// parseLimit reads the limit parameter. Empty means the store default (-1).
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxRunLimit {
		n = maxRunLimit
	}
	return n, nil
}
