package webhooks

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event is a single received webhook delivery: the extracted payload
// plus the response that processing produced. Until a receiver runs,
// the response is the accepted placeholder.
type Event struct {
	ID              uuid.UUID              `json:"id"`
	ReceiverID      string                 `json:"receiver_id"`
	UserID          string                 `json:"user_id,omitempty"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
	PayloadHeaders  map[string]interface{} `json:"payload_headers,omitempty"`
	Response        map[string]interface{} `json:"response,omitempty"`
	ResponseHeaders map[string]interface{} `json:"response_headers,omitempty"`
	ResponseCode    int                    `json:"response_code"`
	Created         time.Time              `json:"created"`
	Updated         time.Time              `json:"updated"`
}

func NewEvent(receiverID, userID string) *Event {
	return &Event{
		ID:           uuid.New(),
		ReceiverID:   receiverID,
		UserID:       userID,
		ResponseCode: http.StatusAccepted,
		Response:     DefaultResponse(),
	}
}

// DefaultResponse is the stored response for an event that has been
// accepted but not yet processed.
func DefaultResponse() map[string]interface{} {
	return map[string]interface{}{
		"status":  http.StatusAccepted,
		"message": "Accepted.",
	}
}

// Action returns payload["action"] for task-protocol payloads, or the
// empty string.
func (e *Event) Action() string {
	if e.Payload == nil {
		return ""
	}
	action, _ := e.Payload["action"].(string)
	return action
}

// Deleted reports whether the event was logically deleted. Deleted
// events are never reprocessed.
func (e *Event) Deleted() bool {
	return e.ResponseCode == http.StatusGone
}

// MarkDeleted records the tombstone response. The payload is kept for
// auditing.
func (e *Event) MarkDeleted() {
	e.ResponseCode = http.StatusGone
	e.Response = map[string]interface{}{
		"status":  http.StatusGone,
		"message": "Gone.",
	}
}

// MarkFailed records a processing failure as a persisted 500 response.
func (e *Event) MarkFailed(message string) {
	e.ResponseCode = http.StatusInternalServerError
	e.Response = map[string]interface{}{
		"status":  http.StatusInternalServerError,
		"message": message,
	}
}

// Message returns the human-readable message of the stored response.
func (e *Event) Message() string {
	if e.Response == nil {
		return ""
	}
	msg, _ := e.Response["message"].(string)
	return msg
}
