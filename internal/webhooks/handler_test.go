package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookd/internal/constants"
	"hookd/internal/logger"
	"hookd/pkg/policy"
)

type apiFixture struct {
	router   *gin.Engine
	receiver *recordingReceiver
}

func newAPIFixture(t *testing.T, opts ...BaseOption) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NopLogger()
	registry := NewRegistry()
	repo := NewMemoryRepository()
	svc := NewService(registry, repo, log)

	recv := newRecordingReceiver("test-receiver", opts...)
	require.NoError(t, registry.Register("test-receiver", func(id string) Receiver { return recv }))

	resolver := StaticTokenResolver{
		"owner-token":    "owner",
		"intruder-token": "intruder",
	}
	handler := NewHandler(svc, resolver, log)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(MethodNotAllowed)
	handler.RegisterRoutes(router)

	return &apiFixture{router: router, receiver: recv}
}

func (f *apiFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createEvent(t *testing.T, token string) string {
	t.Helper()
	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", token, `{"somekey": "somevalue"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	return w.Header().Get(constants.HeaderHubDelivery)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAPI_CreateEvent(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", "owner-token", `{"somekey": "somevalue"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(http.StatusAccepted), body["status"])
	assert.Equal(t, "Accepted.", body["message"])

	eventID := w.Header().Get(constants.HeaderHubDelivery)
	assert.NotEmpty(t, eventID)
	assert.Equal(t, "test-receiver", w.Header().Get(constants.HeaderHubEvent))
	assert.Equal(t, "Accepted.", w.Header().Get(constants.HeaderHubInfo))
	assert.Contains(t, w.Header().Get("Link"),
		fmt.Sprintf("/api/v1/hooks/receivers/test-receiver/events/%s>; rel=\"self\"", eventID))

	calls := f.receiver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "owner", calls[0].UserID)
	assert.Equal(t, map[string]interface{}{"somekey": "somevalue"}, calls[0].Payload)
}

func TestAPI_CreateEvent_QueryToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/?access_token=owner-token", "", `{"somekey": "somevalue"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAPI_CreateEvent_UnknownReceiver(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/missing/events/", "owner-token", `{}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
	assert.Equal(t, "Receiver does not exists.", body["description"])
}

func TestAPI_CreateEvent_UnsupportedContentType(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", bytes.NewBufferString("data"))
	req.Header.Set("Content-Type", "application/python-pickle")
	req.Header.Set("Authorization", "Bearer owner-token")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Receiver does not support the content-type 'application/python-pickle'.", body["description"])
}

func TestAPI_CreateEvent_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", "owner-token", `{"broken":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Authentication(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", "wrong-token", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_GetEvent(t *testing.T) {
	f := newAPIFixture(t)
	eventID := f.createEvent(t, "owner-token")

	w := f.do(http.MethodGet, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Accepted.", body["message"])
}

func TestAPI_GetEvent_OwnershipEnforced(t *testing.T) {
	f := newAPIFixture(t)
	eventID := f.createEvent(t, "owner-token")

	w := f.do(http.MethodGet, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "intruder-token", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_GetEvent_Unknown(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/hooks/receivers/test-receiver/events/00000000-0000-0000-0000-000000000000", "owner-token", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ReprocessEvent(t *testing.T) {
	f := newAPIFixture(t)
	eventID := f.createEvent(t, "owner-token")

	w := f.do(http.MethodPut, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, f.receiver.Calls(), 2)
}

func TestAPI_DeleteEvent(t *testing.T) {
	f := newAPIFixture(t)
	eventID := f.createEvent(t, "owner-token")

	w := f.do(http.MethodDelete, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Event deleted.", body["message"])

	// Reads after delete answer 410 and reprocessing is refused.
	w = f.do(http.MethodGet, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")
	assert.Equal(t, http.StatusGone, w.Code)

	w = f.do(http.MethodPut, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	eventID := f.createEvent(t, "owner-token")

	for _, method := range []string{http.MethodPatch, http.MethodOptions} {
		w := f.do(method, "/api/v1/hooks/receivers/test-receiver/events/"+eventID, "owner-token", "")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		body := decodeBody(t, w)
		assert.Equal(t, "Method not allowed", body["description"])
	}

	w := f.do(http.MethodGet, "/api/v1/hooks/receivers/test-receiver/events/", "owner-token", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAPI_PolicyDenied(t *testing.T) {
	evaluator, err := policy.NewEvaluator()
	require.NoError(t, err)

	f := newAPIFixture(t, WithPolicies(evaluator, map[string]string{
		"create": `user_id == "someone-else"`,
	}))

	w := f.do(http.MethodPost, "/api/v1/hooks/receivers/test-receiver/events/", "owner-token", `{}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
