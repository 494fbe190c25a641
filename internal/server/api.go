package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chyiyaqing/trendscope/internal/ai"
	"github.com/chyiyaqing/trendscope/internal/pipeline"
	"github.com/chyiyaqing/trendscope/internal/store"
	"github.com/chyiyaqing/trendscope/internal/trend"
)

// JSON response types for the REST API.

type apiRun struct {
	ID         string          `json:"id"`
	Platform   trend.Platform  `json:"platform"`
	Window     trend.TimeRange `json:"window"`
	Status     string          `json:"status"`
	Topic      string          `json:"topic"`
	Stats      trend.Stats     `json:"stats"`
	Records    []trend.Record  `json:"records"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

type apiSnapshot struct {
	Platform  trend.Platform  `json:"platform"`
	Window    trend.TimeRange `json:"window"`
	Pending   bool            `json:"pending"`
	Run       *apiRun         `json:"run,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type apiRunsResponse struct {
	Count int               `json:"count"`
	Runs  []store.RunRecord `json:"runs"`
}

type apiError struct {
	Error string `json:"error"`
}

// GET /api/trends?platform=&window=
func (s *Server) handleAPITrends(w http.ResponseWriter, r *http.Request) {
	q, err := selectionFrom(r, s.board.Selection())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	run, err := s.board.Refresh(r.Context(), q)
	s.writeRun(w, run, err)
}

// POST /api/refresh
func (s *Server) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	run, err := s.board.RefreshCurrent(r.Context())
	s.writeRun(w, run, err)
}

// GET /api/trends/current
func (s *Server) handleAPICurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAPISnapshot(s.board.Current()))
}

// GET /api/runs?limit=20
func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, apiRunsResponse{Runs: []store.RunRecord{}})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := s.runs.RecentRuns(limit)
	if err != nil {
		s.logger.Error("api list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load runs"})
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, apiRunsResponse{Count: len(runs), Runs: runs})
}

// GET /api/prompt?platform=&window=
func (s *Server) handleAPIPrompt(w http.ResponseWriter, r *http.Request) {
	q, err := selectionFrom(r, s.board.Selection())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.prompter.Prompt(q)))
}

func (s *Server) writeRun(w http.ResponseWriter, run *pipeline.Run, err error) {
	if err != nil {
		writeJSON(w, errorStatus(err), apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toAPIRun(run))
}

// errorStatus maps pipeline failures to HTTP status codes. Anything else,
// including *ai.ServiceError, is an upstream failure.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, trend.ErrUnknownPlatform), errors.Is(err, trend.ErrUnknownTimeRange):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrSuperseded):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func toAPIRun(run *pipeline.Run) *apiRun {
	if run == nil {
		return nil
	}
	return &apiRun{
		ID:         run.ID,
		Platform:   run.Query.Platform,
		Window:     run.Query.Range,
		Status:     run.Status(),
		Topic:      run.Result.Topic,
		Stats:      run.Stats,
		Records:    run.Result.Records,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func toAPISnapshot(snap pipeline.Snapshot) apiSnapshot {
	out := apiSnapshot{
		Platform: snap.Selection.Platform,
		Window:   snap.Selection.Range,
		Pending:  snap.Pending,
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	} else {
		out.Run = toAPIRun(snap.Run)
	}
	if !snap.UpdatedAt.IsZero() {
		out.UpdatedAt = &snap.UpdatedAt
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
