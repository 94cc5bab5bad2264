package webhooks

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"hookd/internal/archive"
	"hookd/internal/broker"
	"hookd/internal/logger"
	"hookd/pkg/errors"
	"hookd/pkg/logging"
	"hookd/pkg/metrics"
)

// Service is the event processor: it creates events from incoming
// requests, dispatches them to their receivers, and tracks their
// lifecycle.
type Service interface {
	Create(ctx context.Context, receiverID, userID string, r *http.Request) (*Event, error)
	Process(ctx context.Context, event *Event) *Event
	Get(ctx context.Context, receiverID, eventID, userID string) (*Event, error)
	Reprocess(ctx context.Context, event *Event, userID string) (*Event, error)
	Delete(ctx context.Context, event *Event, userID string) error
	Status(ctx context.Context, event *Event) (int, string)
	HookURL(receiverID, accessToken string) (string, error)
}

type service struct {
	registry *Registry
	repo     Repository
	logger   logger.Logger
	baseURL  string
	notifier broker.Producer
	topic    string
	archiver archive.Archiver
}

type ServiceOption func(*service)

// WithNotifier publishes a notification whenever an event reaches a
// terminal state.
func WithNotifier(producer broker.Producer, topic string) ServiceOption {
	return func(s *service) {
		s.notifier = producer
		s.topic = topic
	}
}

// WithArchiver copies terminal events into the archive store.
func WithArchiver(archiver archive.Archiver) ServiceOption {
	return func(s *service) {
		s.archiver = archiver
	}
}

func WithBaseURL(baseURL string) ServiceOption {
	return func(s *service) {
		s.baseURL = baseURL
	}
}

func NewService(registry *Registry, repo Repository, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		registry: registry,
		repo:     repo,
		logger:   log,
		archiver: archive.NoopArchiver{},
		notifier: broker.NoopProducer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the receiver, extracts the payload and persists a
// fresh event. Nothing is stored when any step fails.
func (s *service) Create(ctx context.Context, receiverID, userID string, r *http.Request) (*Event, error) {
	receiver, err := s.registry.Get(receiverID)
	if err != nil {
		return nil, err
	}

	event := NewEvent(receiverID, userID)
	if !receiver.CanCreate(ctx, userID, event) {
		return nil, errors.ErrForbidden.WithDetail("receiver_id", receiverID)
	}

	payload, headers, err := receiver.ExtractPayload(r)
	if err != nil {
		return nil, err
	}
	event.Payload = payload
	event.PayloadHeaders = headers

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.logger.InfowCtx(logging.WithEventID(ctx, event.ID.String()), "Event created",
		"receiver_id", receiverID,
		"event_id", event.ID.String(),
	)
	return event, nil
}

// Process dispatches the event to its receiver. Errors and panics from
// the receiver never escape; they are persisted as a 500 response on
// the event itself. Deleted events are left untouched.
func (s *service) Process(ctx context.Context, event *Event) *Event {
	if event.Deleted() {
		return event
	}

	ctx = logging.WithEventID(ctx, event.ID.String())

	receiver, err := s.registry.Get(event.ReceiverID)
	if err == nil {
		start := time.Now()
		err = s.runReceiver(ctx, receiver, event)
		metrics.EventProcessingDuration.
			WithLabelValues(event.ReceiverID, strconv.Itoa(event.ResponseCode)).
			Observe(time.Since(start).Seconds())
	}

	if err != nil {
		s.logger.ErrorwCtx(ctx, "Could not process event",
			"receiver_id", event.ReceiverID,
			"error", err,
		)
		event.MarkFailed(err.Error())
	}

	metrics.EventsReceivedTotal.
		WithLabelValues(event.ReceiverID, strconv.Itoa(event.ResponseCode)).
		Inc()

	// An async receiver only enqueues; the worker owns the outcome.
	// Writing the still-pending 202 here could overwrite a result the
	// worker persisted in the meantime, so only a changed response is
	// written back.
	_, async := receiver.(*AsyncReceiver)
	if !(async && err == nil && event.ResponseCode == http.StatusAccepted) {
		if uerr := s.repo.UpdateResponse(ctx, event); uerr != nil {
			s.logger.ErrorwCtx(ctx, "Failed to persist event response", "error", uerr)
		}
	}

	if event.ResponseCode != http.StatusAccepted {
		s.afterTerminal(ctx, event)
	}

	return event
}

func (s *service) runReceiver(ctx context.Context, receiver Receiver, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return receiver.Run(ctx, event)
}

// Get fetches an event scoped to a receiver and enforces ownership and
// the read policy.
func (s *service) Get(ctx context.Context, receiverID, eventID, userID string) (*Event, error) {
	receiver, err := s.registry.Get(receiverID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(eventID)
	if err != nil {
		return nil, errors.ErrEventNotFound.WithCause(err)
	}

	event, err := s.repo.GetForReceiver(ctx, receiverID, id)
	if stderrors.Is(err, errors.ErrEventNotFound) {
		event, err = s.fromArchive(ctx, receiverID, id)
	}
	if err != nil {
		return nil, err
	}

	if event.UserID != "" && event.UserID != userID {
		return nil, errors.ErrUnauthorized.WithDetail("event_id", eventID)
	}
	if !receiver.CanRead(ctx, userID, event) {
		return nil, errors.ErrForbidden.WithDetail("event_id", eventID)
	}

	return event, nil
}

// fromArchive rebuilds a purged event from its archive record so old
// deliveries stay readable after the events table is pruned. Archive
// misses and lookup failures both read as not found.
func (s *service) fromArchive(ctx context.Context, receiverID string, id uuid.UUID) (*Event, error) {
	rec, err := s.archiver.Find(ctx, id.String())
	if err != nil {
		s.logger.WarnwCtx(ctx, "Archive lookup failed",
			"event_id", id.String(),
			"error", err,
		)
		return nil, errors.ErrEventNotFound
	}
	if rec == nil || rec.ReceiverID != receiverID {
		return nil, errors.ErrEventNotFound
	}

	return &Event{
		ID:           id,
		ReceiverID:   rec.ReceiverID,
		UserID:       rec.UserID,
		Payload:      rec.Payload,
		Response:     rec.Response,
		ResponseCode: rec.ResponseCode,
		Created:      rec.Created,
		Updated:      rec.ArchivedAt,
	}, nil
}

// Reprocess runs the receiver again for an existing event. Deleted
// events are refused.
func (s *service) Reprocess(ctx context.Context, event *Event, userID string) (*Event, error) {
	receiver, err := s.registry.Get(event.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !receiver.CanUpdate(ctx, userID, event) {
		return nil, errors.ErrForbidden.WithDetail("event_id", event.ID.String())
	}
	if event.Deleted() {
		return nil, errors.ErrEventGone.WithDetail("event_id", event.ID.String())
	}

	return s.Process(ctx, event), nil
}

// Delete logically deletes an event. The receiver gets a chance to
// revoke any background work first.
func (s *service) Delete(ctx context.Context, event *Event, userID string) error {
	receiver, err := s.registry.Get(event.ReceiverID)
	if err != nil {
		return err
	}
	if !receiver.CanDelete(ctx, userID, event) {
		return errors.ErrForbidden.WithDetail("event_id", event.ID.String())
	}

	if err := receiver.Delete(ctx, event); err != nil {
		return err
	}

	if err := s.repo.UpdateResponse(ctx, event); err != nil {
		return err
	}

	metrics.EventsDeletedTotal.WithLabelValues(event.ReceiverID).Inc()
	s.logger.InfowCtx(ctx, "Event deleted",
		"receiver_id", event.ReceiverID,
		"event_id", event.ID.String(),
	)
	return nil
}

// Status prefers the receiver's live view of the event and falls back
// to the stored response.
func (s *service) Status(ctx context.Context, event *Event) (int, string) {
	receiver, err := s.registry.Get(event.ReceiverID)
	if err == nil {
		live, err := receiver.Status(ctx, event)
		if err == nil && live != nil {
			return live.Code, live.Message
		}
		if err != nil {
			s.logger.WarnwCtx(ctx, "Failed to read live event status",
				"event_id", event.ID.String(),
				"error", err,
			)
		}
	}
	return event.ResponseCode, event.Message()
}

func (s *service) HookURL(receiverID, accessToken string) (string, error) {
	receiver, err := s.registry.Get(receiverID)
	if err != nil {
		return "", err
	}
	return receiver.HookURL(s.baseURL, accessToken), nil
}

// afterTerminal runs best-effort side effects for events that reached
// a terminal state. Failures are logged and never affect the event.
func (s *service) afterTerminal(ctx context.Context, event *Event) {
	notification := broker.Notification{
		EventID:      event.ID.String(),
		ReceiverID:   event.ReceiverID,
		UserID:       event.UserID,
		ResponseCode: event.ResponseCode,
		ProcessedAt:  time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, s.topic, notification); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish event notification", "error", err)
	}

	record := archive.Record{
		EventID:      event.ID.String(),
		ReceiverID:   event.ReceiverID,
		UserID:       event.UserID,
		Payload:      event.Payload,
		Response:     event.Response,
		ResponseCode: event.ResponseCode,
		Created:      event.Created,
	}
	if err := s.archiver.Archive(ctx, record); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to archive event", "error", err)
	}
}
