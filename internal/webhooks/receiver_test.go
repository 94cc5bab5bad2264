package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookd/internal/signature"
	"hookd/pkg/errors"
)

func TestBase_ExtractPayload_JSON(t *testing.T) {
	base := NewBase("test-receiver")

	payload, headers, err := base.ExtractPayload(jsonRequest(`{"somekey": "somevalue"}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"somekey": "somevalue"}, payload)
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestBase_ExtractPayload_JSONWithCharset(t *testing.T) {
	base := NewBase("test-receiver")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"a": 1}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	payload, _, err := base.ExtractPayload(req)
	require.NoError(t, err)
	assert.Equal(t, float64(1), payload["a"])
}

func TestBase_ExtractPayload_Form(t *testing.T) {
	base := NewBase("test-receiver")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("somekey=somevalue&other=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload, _, err := base.ExtractPayload(req)
	require.NoError(t, err)
	assert.Equal(t, "somevalue", payload["somekey"])
	assert.Equal(t, "1", payload["other"])
}

func TestBase_ExtractPayload_UnsupportedContentType(t *testing.T) {
	base := NewBase("test-receiver")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("some-binary-blob"))
	req.Header.Set("Content-Type", "application/python-pickle")

	_, _, err := base.ExtractPayload(req)
	assert.ErrorIs(t, err, errors.ErrUnsupportedMedia)
	assert.Contains(t, err.Error(), "application/python-pickle")
}

func TestBase_ExtractPayload_InvalidJSON(t *testing.T) {
	base := NewBase("test-receiver")

	_, _, err := base.ExtractPayload(jsonRequest("not json at all"))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestBase_ExtractPayload_Signature(t *testing.T) {
	verifier := signature.New("mysecret")
	base := NewBase("test-receiver", WithSignature("X-Hub-Signature", verifier))

	body := `{"somekey": "somevalue"}`

	req := jsonRequest(body)
	req.Header.Set("X-Hub-Signature", "sha1="+verifier.HMAC([]byte(body)))
	payload, _, err := base.ExtractPayload(req)
	require.NoError(t, err)
	assert.Equal(t, "somevalue", payload["somekey"])

	req = jsonRequest(body)
	req.Header.Set("X-Hub-Signature", "sha1=deadbeef")
	_, _, err = base.ExtractPayload(req)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	req = jsonRequest(body)
	_, _, err = base.ExtractPayload(req)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestBase_HookURL(t *testing.T) {
	base := NewBase("github")

	url := base.HookURL("https://example.org", "my-token")
	assert.Equal(t, "https://example.org/hooks/receivers/github/events/?access_token=my-token", url)
}

func TestBase_HookURL_DebugOverride(t *testing.T) {
	urls := map[string]string{"github": "http://github.userid.ultrahook.com?token=%(token)s"}

	debugBase := NewBase("github", WithDebugURLs(true, urls))
	assert.Equal(t,
		"http://github.userid.ultrahook.com?token=my-token",
		debugBase.HookURL("https://example.org", "my-token"))

	// Overrides are ignored outside debug mode.
	prodBase := NewBase("github", WithDebugURLs(false, urls))
	assert.Equal(t,
		"https://example.org/hooks/receivers/github/events/?access_token=my-token",
		prodBase.HookURL("https://example.org", "my-token"))
}

func TestBase_Permissions_DefaultAllow(t *testing.T) {
	base := NewBase("test-receiver")
	ctx := context.Background()

	assert.True(t, base.CanCreate(ctx, "anyone", nil))
	assert.True(t, base.CanRead(ctx, "anyone", nil))
	assert.True(t, base.CanUpdate(ctx, "anyone", nil))
	assert.True(t, base.CanDelete(ctx, "anyone", nil))
}
