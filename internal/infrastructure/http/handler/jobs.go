// Package handler adapts HTTP requests to queue engine calls: request
// validation on the way in, the {ok, ...} envelope on the way out.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/jobq/internal/application/queue"
	"github.com/rezkam/jobq/internal/domain"
	"github.com/rezkam/jobq/internal/infrastructure/http/response"
)

// DBHealth is the slice of the store the health endpoint needs.
type DBHealth interface {
	Now(ctx context.Context) (time.Time, error)
}

// JobsHandler serves the admission and ops endpoints.
type JobsHandler struct {
	engine  queue.Engine
	db      DBHealth
	service string
}

// New creates the admission handler. service names the binary in the health
// payload.
func New(engine queue.Engine, db DBHealth, service string) *JobsHandler {
	return &JobsHandler{
		engine:  engine,
		db:      db,
		service: service,
	}
}

// Register mounts all routes on the given router.
func (h *JobsHandler) Register(r chi.Router) {
	r.Post("/jobs", h.createJob)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)
	r.Get("/jobs/{id}/runs", h.listRuns)
	r.Get("/health", h.health)
	r.Get("/db/health", h.dbHealth)
}

type enqueueRequest struct {
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	RunAfterMS  *int64          `json:"run_after_ms"`
	MaxAttempts *int            `json:"max_attempts"`
}

func (h *JobsHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidJSON)
		return
	}
	if req.Type == "" || req.Key == "" {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidInput)
		return
	}
	if req.MaxAttempts != nil && (*req.MaxAttempts < 1 || *req.MaxAttempts > queue.MaxAttemptsCeiling) {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidInput)
		return
	}
	if req.RunAfterMS != nil && *req.RunAfterMS < 0 {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidInput)
		return
	}

	params := queue.EnqueueParams{
		Type:    req.Type,
		Key:     req.Key,
		Payload: req.Payload,
	}
	if req.RunAfterMS != nil {
		params.RunAfter = time.Now().UTC().Add(time.Duration(*req.RunAfterMS) * time.Millisecond)
	}
	if req.MaxAttempts != nil {
		params.MaxAttempts = *req.MaxAttempts
	}

	job, err := h.engine.Enqueue(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Success(w, http.StatusCreated, map[string]any{"job": jobToWire(job)})
}

func (h *JobsHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	var status *domain.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.JobStatus(raw)
		if !s.Valid() {
			response.Failure(w, http.StatusBadRequest, response.CodeInvalidStatus)
			return
		}
		status = &s
	}

	jobs, err := h.engine.ListJobs(r.Context(), status, limitParam(r))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]any{"jobs": jobsToWire(jobs)})
}

func (h *JobsHandler) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidID)
		return
	}

	job, err := h.engine.GetJob(r.Context(), id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]any{"job": jobToWire(job)})
}

func (h *JobsHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		response.Failure(w, http.StatusBadRequest, response.CodeInvalidID)
		return
	}

	runs, err := h.engine.ListRuns(r.Context(), id, limitParam(r))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]any{"runs": runsToWire(runs)})
}

func (h *JobsHandler) health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, map[string]any{
		"service": h.service,
		"time":    time.Now().UTC().UnixMilli(),
	})
}

func (h *JobsHandler) dbHealth(w http.ResponseWriter, r *http.Request) {
	dbTime, err := h.db.Now(r.Context())
	if err != nil {
		response.Failure(w, http.StatusServiceUnavailable, response.CodeDBUnreachable)
		return
	}
	response.Success(w, http.StatusOK, map[string]any{
		"dbTime": dbTime.UnixMilli(),
		"time":   time.Now().UTC().UnixMilli(),
	})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// limitParam parses ?limit=; malformed or missing values fall back to the
// engine default, range clamping happens engine-side.
func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
