package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"hookd/internal/config"
	"hookd/internal/constants"
	"hookd/internal/logger"
	"hookd/pkg/metrics"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(n.EventID),
			Value: body,
			Time:  time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
