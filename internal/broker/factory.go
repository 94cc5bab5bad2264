package broker

import (
	"context"
	"fmt"

	"hookd/internal/config"
	"hookd/internal/logger"
)

// NoopProducer discards notifications. It is used when no broker is
// configured.
type NoopProducer struct{}

func (NoopProducer) Publish(ctx context.Context, topic string, n Notification) error { return nil }
func (NoopProducer) Close() error                                                    { return nil }

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "":
		return NoopProducer{}, nil
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
