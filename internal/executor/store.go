package executor

import (
	"context"
	"sync"
)

// Store persists job lifecycle state. Claim must be atomic so a job ID
// can only ever be submitted once.
type Store interface {
	Claim(ctx context.Context, jobID, task string) error
	SetState(ctx context.Context, jobID string, state State, meta map[string]interface{}) error
	Get(ctx context.Context, jobID string) (JobStatus, error)
}

type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewMemoryStore returns an in-process Store. It is intended for tests
// and single-instance deployments without Redis.
func NewMemoryStore() Store {
	return &memoryStore{jobs: make(map[string]JobStatus)}
}

func (s *memoryStore) Claim(ctx context.Context, jobID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return ErrJobExists
	}
	s.jobs[jobID] = JobStatus{State: StatePending, Task: task}
	return nil
}

func (s *memoryStore) SetState(ctx context.Context, jobID string, state State, meta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	status.State = state
	status.Meta = meta
	s.jobs[jobID] = status
	return nil
}

func (s *memoryStore) Get(ctx context.Context, jobID string) (JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, exists := s.jobs[jobID]
	if !exists {
		return JobStatus{}, ErrJobNotFound
	}
	return status, nil
}
