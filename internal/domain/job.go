package domain

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a job in the queue.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusRetrying  JobStatus = "retrying"
	StatusSucceeded JobStatus = "succeeded"
	StatusDead      JobStatus = "dead"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusRetrying, StatusSucceeded, StatusDead:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state. Terminal jobs are never
// claimed again (dead jobs can only leave the state via re-enqueue).
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusDead
}

// Job is the current state of one logical unit of work.
// A job is unique per (Type, Key); repeated enqueues coalesce onto one row.
//
// Invariants maintained by the queue engine:
//   - Status == running ⇔ LockedBy and LockedAt are both set.
//   - Attempts is bumped at claim time, never at completion.
//   - Status == dead implies Attempts >= MaxAttempts and LastError is set.
type Job struct {
	ID          int64
	Type        string
	Key         string
	Payload     json.RawMessage
	Status      JobStatus
	RunAfter    time.Time
	Attempts    int
	MaxAttempts int
	LockedBy    *string
	LockedAt    *time.Time
	LastError   *string
	LastErrorAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus is the observed outcome of a single attempt.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFail    RunStatus = "fail"
)

// JobRun is an append-only record of one completed attempt. Runs are written
// only when a handler outcome was observed; a stale-lease reclaim leaves no run.
type JobRun struct {
	ID            int64
	JobID         int64
	Type          string
	Key           string
	Attempt       int
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	DurationMS    int64
	ErrorMessage  *string
	ErrorStack    *string
	ResultSummary *string
}

// Location is a deduplicated geographic point keyed by its rounded
// "<lat>,<lon>" representation.
type Location struct {
	ID        int64
	Key       string
	Lat       float64
	Lon       float64
	CreatedAt time.Time
}
