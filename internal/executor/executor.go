// Package executor runs named background tasks on a worker pool and
// tracks their lifecycle in a pluggable job store. Jobs are addressed
// by caller-chosen IDs so a submission can be queried and revoked
// later.
package executor

import (
	"context"
	"errors"
)

type State string

const (
	StatePending  State = "PENDING"
	StateStarted  State = "STARTED"
	StateRetry    State = "RETRY"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateRevoked  State = "REVOKED"
)

// Terminal reports whether a job in this state will never change state
// again.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	}
	return false
}

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
	ErrUnknownTask = errors.New("unknown task")
	ErrQueueFull   = errors.New("job queue is full")
)

type JobStatus struct {
	State State                  `json:"state"`
	Task  string                 `json:"task"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Job is a single unit of work handed to a task function. Progress is
// wired by the pool so long-running tasks can publish intermediate
// state.
type Job struct {
	ID       string
	Task     string
	Args     map[string]interface{}
	Progress func(meta map[string]interface{})
}

// TaskFunc executes a job and returns result metadata that is stored
// with the terminal state.
type TaskFunc func(ctx context.Context, job Job) (map[string]interface{}, error)

type Executor interface {
	Submit(ctx context.Context, jobID, task string, args map[string]interface{}) error
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Revoke(ctx context.Context, jobID string) error
}
