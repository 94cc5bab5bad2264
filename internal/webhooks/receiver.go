package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"hookd/internal/constants"
	"hookd/internal/signature"
	"hookd/pkg/errors"
	"hookd/pkg/policy"
)

// Status is the live status of an event as reported by its receiver.
// A nil Status means the receiver keeps no state beyond the stored
// response.
type Status struct {
	Code    int
	Message string
	Meta    map[string]interface{}
}

// Receiver accepts deliveries for one webhook endpoint: it extracts
// and validates the payload, processes events, and gates access per
// action.
type Receiver interface {
	ID() string
	ExtractPayload(r *http.Request) (payload, headers map[string]interface{}, err error)
	Run(ctx context.Context, event *Event) error
	Status(ctx context.Context, event *Event) (*Status, error)
	Delete(ctx context.Context, event *Event) error
	HookURL(baseURL, accessToken string) string

	CanCreate(ctx context.Context, userID string, event *Event) bool
	CanRead(ctx context.Context, userID string, event *Event) bool
	CanUpdate(ctx context.Context, userID string, event *Event) bool
	CanDelete(ctx context.Context, userID string, event *Event) bool
}

// Base carries the behavior shared by all receivers: payload
// extraction with optional signature checking, hook URL construction
// and policy-based permissions. Concrete receivers embed it and add a
// Run method.
type Base struct {
	id              string
	signatureHeader string
	verifier        *signature.Verifier
	debug           bool
	debugURLs       map[string]string
	policies        map[string]string
	evaluator       *policy.Evaluator
}

type BaseOption func(*Base)

// WithSignature enables signature checking on the named request
// header. An empty header name leaves checking disabled.
func WithSignature(header string, verifier *signature.Verifier) BaseOption {
	return func(b *Base) {
		b.signatureHeader = header
		b.verifier = verifier
	}
}

// WithDebugURLs installs the hook URL override table. Overrides are
// only consulted when debug is set, so production deployments keep
// canonical URLs even if the table is populated.
func WithDebugURLs(debug bool, urls map[string]string) BaseOption {
	return func(b *Base) {
		b.debug = debug
		b.debugURLs = urls
	}
}

// WithPolicies installs CEL access policies keyed by action name
// ("create", "read", "update", "delete"). Actions without a policy are
// allowed.
func WithPolicies(evaluator *policy.Evaluator, policies map[string]string) BaseOption {
	return func(b *Base) {
		b.evaluator = evaluator
		b.policies = policies
	}
}

func NewBase(id string, opts ...BaseOption) Base {
	b := Base{id: id}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *Base) ID() string {
	return b.id
}

// ExtractPayload reads the request body, checks the signature when one
// is configured, and decodes JSON or form payloads. Anything else is
// rejected naming the content type.
func (b *Base) ExtractPayload(r *http.Request) (map[string]interface{}, map[string]interface{}, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, errors.ErrValidation.WithCause(err).WithMessage("could not read request body")
	}

	if b.signatureHeader != "" {
		header := r.Header.Get(b.signatureHeader)
		if b.verifier == nil || !b.verifier.Verify(body, header) {
			return nil, nil, errors.ErrInvalidSignature.WithDetail("receiver_id", b.id)
		}
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	var payload map[string]interface{}
	switch mediaType {
	case constants.ContentTypeJSON:
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil, errors.ErrValidation.WithCause(err).WithMessage("request body is not valid JSON")
		}
	case constants.ContentTypeForm:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, nil, errors.ErrValidation.WithCause(err).WithMessage("request body is not a valid form")
		}
		payload = make(map[string]interface{}, len(values))
		for key := range values {
			payload[key] = values.Get(key)
		}
	default:
		return nil, nil, errors.ErrUnsupportedMedia.WithMessage(
			fmt.Sprintf("Receiver does not support the content-type '%s'.", contentType))
	}

	headers := make(map[string]interface{}, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	return payload, headers, nil
}

// Status has no live state by default; the stored response wins.
func (b *Base) Status(ctx context.Context, event *Event) (*Status, error) {
	return nil, nil
}

func (b *Base) Delete(ctx context.Context, event *Event) error {
	event.MarkDeleted()
	return nil
}

// HookURL builds the public URL external services deliver to. In debug
// mode an override from the debug URL table wins, with %(token)s
// substituted, so hooks can be pointed at tunneling services.
func (b *Base) HookURL(baseURL, accessToken string) string {
	if b.debug {
		if pattern, ok := b.debugURLs[b.id]; ok && pattern != "" {
			return strings.ReplaceAll(pattern, "%(token)s", accessToken)
		}
	}
	return fmt.Sprintf("%s/hooks/receivers/%s/events/?access_token=%s",
		strings.TrimRight(baseURL, "/"), b.id, url.QueryEscape(accessToken))
}

func (b *Base) CanCreate(ctx context.Context, userID string, event *Event) bool {
	return b.allowed(ctx, "create", userID, event)
}

func (b *Base) CanRead(ctx context.Context, userID string, event *Event) bool {
	return b.allowed(ctx, "read", userID, event)
}

func (b *Base) CanUpdate(ctx context.Context, userID string, event *Event) bool {
	return b.allowed(ctx, "update", userID, event)
}

func (b *Base) CanDelete(ctx context.Context, userID string, event *Event) bool {
	return b.allowed(ctx, "delete", userID, event)
}

func (b *Base) allowed(ctx context.Context, action, userID string, event *Event) bool {
	expr, ok := b.policies[action]
	if !ok || expr == "" || b.evaluator == nil {
		return true
	}

	in := policy.Input{
		UserID:     userID,
		ReceiverID: b.id,
	}
	if event != nil {
		in.EventOwner = event.UserID
		in.Payload = event.Payload
	}

	allowed, err := b.evaluator.Evaluate(ctx, expr, in)
	if err != nil {
		return false
	}
	return allowed
}
