package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// testFactory builds a plain receiver for tests that only care about
// registration and payload extraction.
func testFactory(id string) Receiver {
	return newRecordingReceiver(id)
}

func maxTime() time.Time {
	return time.Now().Add(24 * time.Hour)
}

type receiverCall struct {
	UserID  string
	Payload map[string]interface{}
}

// recordingReceiver runs synchronously and records every call, so
// tests can assert what the processor dispatched.
type recordingReceiver struct {
	Base

	mu       sync.Mutex
	calls    []receiverCall
	runErr   error
	panicMsg string
}

func newRecordingReceiver(id string, opts ...BaseOption) *recordingReceiver {
	return &recordingReceiver{Base: NewBase(id, opts...)}
}

func (r *recordingReceiver) Run(ctx context.Context, event *Event) error {
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}

	r.mu.Lock()
	r.calls = append(r.calls, receiverCall{UserID: event.UserID, Payload: event.Payload})
	r.mu.Unlock()

	return r.runErr
}

func (r *recordingReceiver) Calls() []receiverCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]receiverCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hooks/receivers/test-receiver/events/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
