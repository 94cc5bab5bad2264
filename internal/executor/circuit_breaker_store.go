package executor

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"hookd/internal/config"
	"hookd/pkg/circuitbreaker"
)

// CircuitBreakerStore guards a Store against a failing backend. When
// the breaker is disabled in config it passes calls straight through.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{
			store: store,
			cb:    nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("job-store")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) Claim(ctx context.Context, jobID, task string) error {
	if s.cb == nil {
		return s.store.Claim(ctx, jobID, task)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.Claim(ctx, jobID, task)
	})

	s.cb.RecordRequest(err == nil || err == ErrJobExists)

	if err != nil && err != ErrJobExists && s.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for job-store: %w", err)
	}
	return err
}

func (s *CircuitBreakerStore) SetState(ctx context.Context, jobID string, state State, meta map[string]interface{}) error {
	if s.cb == nil {
		return s.store.SetState(ctx, jobID, state, meta)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.SetState(ctx, jobID, state, meta)
	})

	s.cb.RecordRequest(err == nil || err == ErrJobNotFound)

	if err != nil && err != ErrJobNotFound && s.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for job-store: %w", err)
	}
	return err
}

func (s *CircuitBreakerStore) Get(ctx context.Context, jobID string) (JobStatus, error) {
	if s.cb == nil {
		return s.store.Get(ctx, jobID)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.Get(ctx, jobID)
	})

	s.cb.RecordRequest(err == nil || err == ErrJobNotFound)

	if err != nil {
		if err != ErrJobNotFound && s.cb.IsOpen() {
			return JobStatus{}, fmt.Errorf("circuit breaker is open for job-store: %w", err)
		}
		return JobStatus{}, err
	}

	status, ok := result.(JobStatus)
	if !ok {
		return JobStatus{}, fmt.Errorf("store returned invalid result type")
	}
	return status, nil
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}
