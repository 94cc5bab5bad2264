package webhooks

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent("test-receiver", "user-1")

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", event.ID.String())
	assert.Equal(t, http.StatusAccepted, event.ResponseCode)
	assert.Equal(t, "Accepted.", event.Message())
	assert.False(t, event.Deleted())
}

func TestEvent_Action(t *testing.T) {
	event := NewEvent("test-receiver", "user-1")
	assert.Empty(t, event.Action())

	event.Payload = map[string]interface{}{"action": "new_task"}
	assert.Equal(t, "new_task", event.Action())

	event.Payload = map[string]interface{}{"action": 42}
	assert.Empty(t, event.Action())
}

func TestEvent_MarkDeleted(t *testing.T) {
	event := NewEvent("test-receiver", "user-1")
	event.MarkDeleted()

	assert.True(t, event.Deleted())
	assert.Equal(t, http.StatusGone, event.ResponseCode)
	assert.Equal(t, "Gone.", event.Message())
}

func TestEvent_MarkFailed(t *testing.T) {
	event := NewEvent("test-receiver", "user-1")
	event.MarkFailed("receiver exploded")

	assert.Equal(t, http.StatusInternalServerError, event.ResponseCode)
	assert.Equal(t, "receiver exploded", event.Message())
	assert.False(t, event.Deleted())
}
