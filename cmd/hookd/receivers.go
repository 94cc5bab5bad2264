package main

import (
	"context"
	"net/http"

	"hookd/internal/webhooks"
)

// debugReceiver echoes the received payload back in the response. It
// is registered as "debug" (sync) and "debug-async" and is mainly
// useful for smoke-testing deployments.
type debugReceiver struct {
	webhooks.Base
}

func newDebugReceiver(id string, opts ...webhooks.BaseOption) *debugReceiver {
	return &debugReceiver{Base: webhooks.NewBase(id, opts...)}
}

func (r *debugReceiver) Run(ctx context.Context, event *webhooks.Event) error {
	event.ResponseCode = http.StatusOK
	event.Response = map[string]interface{}{
		"status":  http.StatusOK,
		"message": "Processed.",
		"payload": event.Payload,
	}
	return nil
}
