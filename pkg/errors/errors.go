package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrReceiverNotFound  = NewError("RECEIVER_NOT_FOUND", "Receiver does not exists.", http.StatusNotFound)
	ErrDuplicateReceiver = NewError("DUPLICATE_RECEIVER", "receiver already registered", http.StatusConflict)
	ErrUnknownReceiver   = NewError("UNKNOWN_RECEIVER", "receiver is not registered", http.StatusNotFound)
	ErrEventNotFound     = NewError("EVENT_NOT_FOUND", "event not found", http.StatusNotFound)
	ErrEventGone         = NewError("EVENT_GONE", "Gone.", http.StatusGone)
	ErrUnsupportedMedia  = NewError("UNSUPPORTED_MEDIA", "unsupported content type", http.StatusUnsupportedMediaType)
	ErrInvalidSignature  = NewError("INVALID_SIGNATURE", "invalid signature", http.StatusInternalServerError)
	ErrWebhook           = NewError("WEBHOOK_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrValidation        = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal          = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict          = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrUnauthorized      = NewError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrForbidden         = NewError("FORBIDDEN", "forbidden", http.StatusForbidden)
	ErrTimeout           = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
)

// ErrNotImplemented marks abstract task-receiver hooks that were never
// overridden. It is a programming error and is deliberately not part of the
// HTTP taxonomy above; the event processor lets it escape.
var ErrNotImplemented = errors.New("not implemented")

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets wrapped copies produced by WithCause/WithDetail match their
// sentinel through errors.Is.
func (e *Error) Is(target error) bool {
	var appErr *Error
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return e.Code != ErrValidation.Code && e.Code != ErrReceiverNotFound.Code
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.Code == ErrValidation.Code || e.Code == ErrReceiverNotFound.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

// WithDetail returns a copy with its own Details map. The shared
// sentinels are handed out concurrently, so writing through the
// original map is never safe.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ToErrorResponse renders the wire shape every error path shares:
// {"status": <code>, "description": <text>}. Causes and stack traces never
// leave the process.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	description := appErr.Message
	if detailMsg, ok := appErr.Details["message"].(string); ok && detailMsg != "" {
		description = detailMsg
	}

	return map[string]interface{}{
		"status":      appErr.Status,
		"description": description,
	}
}
