package handler

import (
	"encoding/json"
	"time"

	"github.com/rezkam/jobq/internal/domain"
)

// Wire representations. Timestamps cross the wire as epoch-millisecond UTC
// integers; the storage column type (timestamptz) never leaks out.

type jobJSON struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	RunAfter    int64           `json:"runAfter"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	LockedBy    *string         `json:"lockedBy"`
	LockedAt    *int64          `json:"lockedAt"`
	LastError   *string         `json:"lastError"`
	LastErrorAt *int64          `json:"lastErrorAt"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

type runJSON struct {
	ID            int64   `json:"id"`
	JobID         int64   `json:"jobId"`
	Type          string  `json:"type"`
	Key           string  `json:"key"`
	Attempt       int     `json:"attempt"`
	Status        string  `json:"status"`
	StartedAt     int64   `json:"startedAt"`
	FinishedAt    int64   `json:"finishedAt"`
	DurationMS    int64   `json:"durationMs"`
	ErrorMessage  *string `json:"errorMessage"`
	ErrorStack    *string `json:"errorStack"`
	ResultSummary *string `json:"resultSummary"`
}

func jobToWire(j *domain.Job) jobJSON {
	return jobJSON{
		ID:          j.ID,
		Type:        j.Type,
		Key:         j.Key,
		Payload:     j.Payload,
		Status:      string(j.Status),
		RunAfter:    epochMS(j.RunAfter),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LockedBy:    j.LockedBy,
		LockedAt:    epochMSPtr(j.LockedAt),
		LastError:   j.LastError,
		LastErrorAt: epochMSPtr(j.LastErrorAt),
		CreatedAt:   epochMS(j.CreatedAt),
		UpdatedAt:   epochMS(j.UpdatedAt),
	}
}

func jobsToWire(jobs []*domain.Job) []jobJSON {
	out := make([]jobJSON, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToWire(j))
	}
	return out
}

func runToWire(r *domain.JobRun) runJSON {
	return runJSON{
		ID:            r.ID,
		JobID:         r.JobID,
		Type:          r.Type,
		Key:           r.Key,
		Attempt:       r.Attempt,
		Status:        string(r.Status),
		StartedAt:     epochMS(r.StartedAt),
		FinishedAt:    epochMS(r.FinishedAt),
		DurationMS:    r.DurationMS,
		ErrorMessage:  r.ErrorMessage,
		ErrorStack:    r.ErrorStack,
		ResultSummary: r.ResultSummary,
	}
}

func runsToWire(runs []*domain.JobRun) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runToWire(r))
	}
	return out
}

func epochMS(t time.Time) int64 {
	return t.UnixMilli()
}

func epochMSPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
