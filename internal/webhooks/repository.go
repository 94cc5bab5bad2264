package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hookd/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	Get(ctx context.Context, id uuid.UUID) (*Event, error)
	GetForReceiver(ctx context.Context, receiverID string, id uuid.UUID) (*Event, error)
	UpdateResponse(ctx context.Context, event *Event) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, event *Event) error {
	now := time.Now().UTC()
	event.Created = now
	event.Updated = now

	payload, err := marshalJSONB(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	payloadHeaders, err := marshalJSONB(event.PayloadHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal payload headers: %w", err)
	}
	response, err := marshalJSONB(event.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	responseHeaders, err := marshalJSONB(event.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	query := `
		INSERT INTO webhooks_events
			(id, receiver_id, user_id, payload, payload_headers, response, response_headers, response_code, created, updated)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.ReceiverID, event.UserID,
		payload, payloadHeaders, response, responseHeaders,
		event.ResponseCode, event.Created, event.Updated,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrConflict.WithDetail("event_id", event.ID.String())
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `
		SELECT id, receiver_id, COALESCE(user_id, ''), payload, payload_headers,
		       response, response_headers, response_code, created, updated
		FROM webhooks_events
		WHERE id = $1`

	return r.scanEvent(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForReceiver(ctx context.Context, receiverID string, id uuid.UUID) (*Event, error) {
	query := `
		SELECT id, receiver_id, COALESCE(user_id, ''), payload, payload_headers,
		       response, response_headers, response_code, created, updated
		FROM webhooks_events
		WHERE receiver_id = $1 AND id = $2`

	return r.scanEvent(r.db.QueryRowContext(ctx, query, receiverID, id))
}

func (r *PostgresRepository) UpdateResponse(ctx context.Context, event *Event) error {
	event.Updated = time.Now().UTC()

	response, err := marshalJSONB(event.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	responseHeaders, err := marshalJSONB(event.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	query := `
		UPDATE webhooks_events
		SET response = $1, response_headers = $2, response_code = $3, updated = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		response, responseHeaders, event.ResponseCode, event.Updated, event.ID)
	if err != nil {
		return fmt.Errorf("failed to update event response: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.ErrEventNotFound.WithDetail("event_id", event.ID.String())
	}

	return nil
}

func (r *PostgresRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM webhooks_events WHERE updated < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}

	return result.RowsAffected()
}

func (r *PostgresRepository) scanEvent(row *sql.Row) (*Event, error) {
	var event Event
	var payload, payloadHeaders, response, responseHeaders []byte

	err := row.Scan(
		&event.ID, &event.ReceiverID, &event.UserID,
		&payload, &payloadHeaders, &response, &responseHeaders,
		&event.ResponseCode, &event.Created, &event.Updated,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	if err := unmarshalJSONB(payload, &event.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if err := unmarshalJSONB(payloadHeaders, &event.PayloadHeaders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload headers: %w", err)
	}
	if err := unmarshalJSONB(response, &event.Response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := unmarshalJSONB(responseHeaders, &event.ResponseHeaders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response headers: %w", err)
	}

	return &event, nil
}

func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(data []byte, dst *map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// MemoryRepository is an in-process Repository used by tests and by
// deployments that run without Postgres.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[uuid.UUID]*Event)}
}

func (r *MemoryRepository) Create(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; exists {
		return errors.ErrConflict.WithDetail("event_id", event.ID.String())
	}
	now := time.Now().UTC()
	event.Created = now
	event.Updated = now

	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, errors.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *MemoryRepository) GetForReceiver(ctx context.Context, receiverID string, id uuid.UUID) (*Event, error) {
	event, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.ReceiverID != receiverID {
		return nil, errors.ErrEventNotFound
	}
	return event, nil
}

func (r *MemoryRepository) UpdateResponse(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.events[event.ID]
	if !exists {
		return errors.ErrEventNotFound.WithDetail("event_id", event.ID.String())
	}
	event.Updated = time.Now().UTC()
	stored.Response = event.Response
	stored.ResponseHeaders = event.ResponseHeaders
	stored.ResponseCode = event.ResponseCode
	stored.Updated = event.Updated
	return nil
}

func (r *MemoryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, event := range r.events {
		if event.Updated.Before(cutoff) {
			delete(r.events, id)
			purged++
		}
	}
	return purged, nil
}
