package broker

import (
	"context"
	"time"
)

// Notification describes a webhook event that reached a terminal
// processing state. It is published so downstream systems can react
// without polling the events store.
type Notification struct {
	EventID      string    `json:"event_id"`
	ReceiverID   string    `json:"receiver_id"`
	UserID       string    `json:"user_id,omitempty"`
	ResponseCode int       `json:"response_code"`
	ProcessedAt  time.Time `json:"processed_at"`
}

type Producer interface {
	Publish(ctx context.Context, topic string, n Notification) error
	Close() error
}
