package webhooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"hookd/internal/executor"
)

const processEventTask = "process_event"

// AsyncReceiver defers an inner receiver's Run to the executor instead
// of running it during the request. The stored response stays the
// accepted placeholder until the job finishes; Status maps the live
// job state back onto HTTP codes.
type AsyncReceiver struct {
	Base
	inner Receiver
	exec  executor.Executor
}

// RegisterProcessEventTask installs the background task that async
// receivers submit: it reloads the event, runs the wrapped receiver
// directly in the worker and persists the outcome. Task errors
// propagate to the executor so its retry and failure tracking apply;
// the event response is only updated on success. Call once at
// bootstrap.
func RegisterProcessEventTask(pool *executor.Pool, registry *Registry, repo Repository) {
	pool.RegisterTask(processEventTask, func(ctx context.Context, job executor.Job) (map[string]interface{}, error) {
		rawID, _ := job.Args["event_id"].(string)
		eventID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid event id %q: %w", rawID, err)
		}

		event, err := repo.Get(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if event.Deleted() {
			return nil, nil
		}

		receiver, err := registry.Get(event.ReceiverID)
		if err != nil {
			return nil, err
		}
		// Unwrap so the worker runs the real receiver instead of
		// re-submitting the job.
		if async, ok := receiver.(*AsyncReceiver); ok {
			receiver = async.Inner()
		}

		if err := receiver.Run(ctx, event); err != nil {
			return nil, err
		}

		if err := repo.UpdateResponse(ctx, event); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"response_code": event.ResponseCode,
			"message":       event.Message(),
		}, nil
	})
}

// NewAsyncReceiver wraps inner so its Run happens on the executor. The
// job ID equals the event ID, which makes dispatch idempotent per
// event.
func NewAsyncReceiver(inner Receiver, exec executor.Executor) *AsyncReceiver {
	return &AsyncReceiver{
		Base:  NewBase(inner.ID()),
		inner: inner,
		exec:  exec,
	}
}

func (r *AsyncReceiver) ID() string {
	return r.inner.ID()
}

func (r *AsyncReceiver) ExtractPayload(req *http.Request) (map[string]interface{}, map[string]interface{}, error) {
	return r.inner.ExtractPayload(req)
}

// Run enqueues the event for background processing. A job that already
// exists for this event is left alone so the first outcome is never
// overwritten.
func (r *AsyncReceiver) Run(ctx context.Context, event *Event) error {
	err := r.exec.Submit(ctx, event.ID.String(), processEventTask, map[string]interface{}{
		"event_id": event.ID.String(),
	})
	if stderrors.Is(err, executor.ErrJobExists) {
		return nil
	}
	return err
}

// Inner returns the wrapped receiver. The executor task uses it to run
// the actual processing in the worker context.
func (r *AsyncReceiver) Inner() Receiver {
	return r.inner
}

// Status maps the live job state onto HTTP codes. A deleted event
// keeps its stored tombstone even when the job finished before the
// delete, so revoking a terminal job never resurrects a 201.
func (r *AsyncReceiver) Status(ctx context.Context, event *Event) (*Status, error) {
	if event.Deleted() {
		return nil, nil
	}

	job, err := r.exec.Status(ctx, event.ID.String())
	if stderrors.Is(err, executor.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch job.State {
	case executor.StatePending, executor.StateStarted, executor.StateRetry:
		return &Status{Code: http.StatusAccepted, Message: "Accepted."}, nil
	case executor.StateProgress:
		return &Status{Code: http.StatusAccepted, Message: "Accepted.", Meta: job.Meta}, nil
	case executor.StateFailure:
		message := "Internal server error"
		if errMsg, ok := job.Meta["error"].(string); ok && errMsg != "" {
			message = errMsg
		}
		return &Status{Code: http.StatusInternalServerError, Message: message}, nil
	case executor.StateSuccess:
		return &Status{Code: http.StatusCreated, Message: "Event processed.", Meta: job.Meta}, nil
	case executor.StateRevoked:
		return &Status{Code: http.StatusGone, Message: "Gone."}, nil
	}
	return nil, nil
}

// Delete revokes any pending job before marking the event deleted.
func (r *AsyncReceiver) Delete(ctx context.Context, event *Event) error {
	if err := r.exec.Revoke(ctx, event.ID.String()); err != nil && !stderrors.Is(err, executor.ErrJobNotFound) {
		return err
	}
	return r.inner.Delete(ctx, event)
}

func (r *AsyncReceiver) HookURL(baseURL, accessToken string) string {
	return r.inner.HookURL(baseURL, accessToken)
}

func (r *AsyncReceiver) CanCreate(ctx context.Context, userID string, event *Event) bool {
	return r.inner.CanCreate(ctx, userID, event)
}

func (r *AsyncReceiver) CanRead(ctx context.Context, userID string, event *Event) bool {
	return r.inner.CanRead(ctx, userID, event)
}

func (r *AsyncReceiver) CanUpdate(ctx context.Context, userID string, event *Event) bool {
	return r.inner.CanUpdate(ctx, userID, event)
}

func (r *AsyncReceiver) CanDelete(ctx context.Context, userID string, event *Event) bool {
	return r.inner.CanDelete(ctx, userID, event)
}
