package webhooks

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookd/internal/config"
	"hookd/internal/executor"
	"hookd/internal/logger"
)

// fakeExecutor returns canned job statuses and records submissions.
type fakeExecutor struct {
	status    executor.JobStatus
	statusErr error
	submitErr error
	submitted []string
	revoked   []string
}

func (f *fakeExecutor) Submit(ctx context.Context, jobID, task string, args map[string]interface{}) error {
	f.submitted = append(f.submitted, jobID)
	return f.submitErr
}

func (f *fakeExecutor) Status(ctx context.Context, jobID string) (executor.JobStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeExecutor) Revoke(ctx context.Context, jobID string) error {
	f.revoked = append(f.revoked, jobID)
	return nil
}

func TestAsyncReceiver_Status(t *testing.T) {
	tests := []struct {
		name        string
		status      executor.JobStatus
		statusErr   error
		wantNil     bool
		wantCode    int
		wantMessage string
		wantMeta    map[string]interface{}
	}{
		{
			name:        "pending maps to accepted",
			status:      executor.JobStatus{State: executor.StatePending},
			wantCode:    http.StatusAccepted,
			wantMessage: "Accepted.",
		},
		{
			name:        "started maps to accepted",
			status:      executor.JobStatus{State: executor.StateStarted},
			wantCode:    http.StatusAccepted,
			wantMessage: "Accepted.",
		},
		{
			name:        "retry maps to accepted",
			status:      executor.JobStatus{State: executor.StateRetry},
			wantCode:    http.StatusAccepted,
			wantMessage: "Accepted.",
		},
		{
			name: "progress keeps meta",
			status: executor.JobStatus{
				State: executor.StateProgress,
				Meta:  map[string]interface{}{"percent": 40},
			},
			wantCode:    http.StatusAccepted,
			wantMessage: "Accepted.",
			wantMeta:    map[string]interface{}{"percent": 40},
		},
		{
			name: "failure surfaces the stored error",
			status: executor.JobStatus{
				State: executor.StateFailure,
				Meta:  map[string]interface{}{"error": "task exploded"},
			},
			wantCode:    http.StatusInternalServerError,
			wantMessage: "task exploded",
		},
		{
			name:        "failure without meta falls back",
			status:      executor.JobStatus{State: executor.StateFailure},
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name: "success maps to created",
			status: executor.JobStatus{
				State: executor.StateSuccess,
				Meta:  map[string]interface{}{"response_code": 200},
			},
			wantCode:    http.StatusCreated,
			wantMessage: "Event processed.",
			wantMeta:    map[string]interface{}{"response_code": 200},
		},
		{
			name:        "revoked maps to gone",
			status:      executor.JobStatus{State: executor.StateRevoked},
			wantCode:    http.StatusGone,
			wantMessage: "Gone.",
		},
		{
			name:      "unknown job defers to the stored response",
			statusErr: executor.ErrJobNotFound,
			wantNil:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{status: tt.status, statusErr: tt.statusErr}
			recv := NewAsyncReceiver(newRecordingReceiver("async-test"), exec)
			event := NewEvent("async-test", "user-1")

			status, err := recv.Status(context.Background(), event)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, status)
				return
			}
			require.NotNil(t, status)
			assert.Equal(t, tt.wantCode, status.Code)
			assert.Equal(t, tt.wantMessage, status.Message)
			if tt.wantMeta != nil {
				assert.Equal(t, tt.wantMeta, status.Meta)
			}
		})
	}
}

// completingExecutor persists a finished outcome during Submit,
// standing in for a worker that completes before the request thread
// returns from Process.
type completingExecutor struct {
	fakeExecutor
	repo Repository
}

func (f *completingExecutor) Submit(ctx context.Context, jobID, task string, args map[string]interface{}) error {
	event, err := f.repo.Get(ctx, uuid.MustParse(jobID))
	if err != nil {
		return err
	}
	event.ResponseCode = http.StatusCreated
	event.Response = map[string]interface{}{
		"status":  http.StatusCreated,
		"message": "Event processed.",
	}
	return f.repo.UpdateResponse(ctx, event)
}

// Process must not write the pending placeholder back once a worker
// already persisted the real outcome.
func TestAsyncReceiver_ProcessKeepsWorkerResult(t *testing.T) {
	registry := NewRegistry()
	repo := NewMemoryRepository()
	exec := &completingExecutor{repo: repo}

	require.NoError(t, registry.Register("async-test", func(id string) Receiver {
		return NewAsyncReceiver(newRecordingReceiver(id), exec)
	}))

	svc := NewService(registry, repo, logger.NopLogger())

	ctx := context.Background()
	event, err := svc.Create(ctx, "async-test", "user-1", jsonRequest(`{"somekey": "somevalue"}`))
	require.NoError(t, err)
	svc.Process(ctx, event)

	stored, err := repo.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, stored.ResponseCode)
	assert.Equal(t, "Event processed.", stored.Response["message"])
}

// A deleted event keeps its stored 410 even when the background job
// already finished; the job state must not win over the tombstone.
func TestAsyncReceiver_Status_DeletedEvent(t *testing.T) {
	exec := &fakeExecutor{status: executor.JobStatus{State: executor.StateSuccess}}
	recv := NewAsyncReceiver(newRecordingReceiver("async-test"), exec)

	event := NewEvent("async-test", "user-1")
	event.MarkDeleted()

	status, err := recv.Status(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestAsyncReceiver_Run_IdempotentPerEvent(t *testing.T) {
	exec := &fakeExecutor{}
	recv := NewAsyncReceiver(newRecordingReceiver("async-test"), exec)
	event := NewEvent("async-test", "user-1")

	require.NoError(t, recv.Run(context.Background(), event))

	exec.submitErr = executor.ErrJobExists
	require.NoError(t, recv.Run(context.Background(), event))

	assert.Equal(t, []string{event.ID.String(), event.ID.String()}, exec.submitted)
}

func TestAsyncReceiver_Delete_RevokesJob(t *testing.T) {
	exec := &fakeExecutor{}
	recv := NewAsyncReceiver(newRecordingReceiver("async-test"), exec)
	event := NewEvent("async-test", "user-1")

	require.NoError(t, recv.Delete(context.Background(), event))

	assert.Equal(t, []string{event.ID.String()}, exec.revoked)
	assert.True(t, event.Deleted())
}

func TestAsyncReceiver_EndToEnd(t *testing.T) {
	log := logger.NopLogger()
	registry := NewRegistry()
	repo := NewMemoryRepository()

	pool := executor.NewPool(config.ExecutorConfig{Workers: 2, QueueSize: 16}, executor.NewMemoryStore(), log)
	RegisterProcessEventTask(pool, registry, repo)
	pool.Start()
	defer pool.Stop()

	inner := newRecordingReceiver("async-test")
	require.NoError(t, registry.Register("async-test", func(id string) Receiver {
		return NewAsyncReceiver(inner, pool)
	}))

	svc := NewService(registry, repo, log)

	ctx := context.Background()
	event, err := svc.Create(ctx, "async-test", "user-1", jsonRequest(`{"somekey": "somevalue"}`))
	require.NoError(t, err)

	// The request-time response stays the accepted placeholder.
	event = svc.Process(ctx, event)
	assert.Equal(t, http.StatusAccepted, event.ResponseCode)

	require.Eventually(t, func() bool {
		status, err := pool.Status(ctx, event.ID.String())
		return err == nil && status.State == executor.StateSuccess
	}, 5*time.Second, 10*time.Millisecond)

	calls := inner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "user-1", calls[0].UserID)
	assert.Equal(t, map[string]interface{}{"somekey": "somevalue"}, calls[0].Payload)

	code, message := svc.Status(ctx, event)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Event processed.", message)
}

func TestAsyncReceiver_DeleteAfterCompletion(t *testing.T) {
	log := logger.NopLogger()
	registry := NewRegistry()
	repo := NewMemoryRepository()

	pool := executor.NewPool(config.ExecutorConfig{Workers: 2, QueueSize: 16}, executor.NewMemoryStore(), log)
	RegisterProcessEventTask(pool, registry, repo)
	pool.Start()
	defer pool.Stop()

	inner := newRecordingReceiver("async-test")
	require.NoError(t, registry.Register("async-test", func(id string) Receiver {
		return NewAsyncReceiver(inner, pool)
	}))

	svc := NewService(registry, repo, log)

	ctx := context.Background()
	event, err := svc.Create(ctx, "async-test", "user-1", jsonRequest(`{"somekey": "somevalue"}`))
	require.NoError(t, err)
	svc.Process(ctx, event)

	require.Eventually(t, func() bool {
		status, err := pool.Status(ctx, event.ID.String())
		return err == nil && status.State == executor.StateSuccess
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Delete(ctx, event, "user-1"))

	// The terminal job state must not resurrect a 201 for a deleted
	// event, neither live nor after a reload.
	code, message := svc.Status(ctx, event)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "Gone.", message)

	stored, err := svc.Get(ctx, "async-test", event.ID.String(), "user-1")
	require.NoError(t, err)
	code, message = svc.Status(ctx, stored)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "Gone.", message)
}
