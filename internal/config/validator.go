package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateWebhooks(cfg.Webhooks); err != nil {
		errs = append(errs, err)
	}

	if err := validateExecutor(cfg.Executor); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateWebhooks(cfg WebhooksConfig) error {
	// The override table is a development convenience; refusing it outside
	// debug mode is enforced at receiver level, but a misconfigured production
	// deployment should fail fast.
	if len(cfg.DebugReceiverURLs) > 0 && !cfg.Debug {
		return &ValidationError{
			Field:   "webhooks.debug_receiver_urls",
			Message: "debug receiver URLs require webhooks.debug to be enabled",
		}
	}
	return nil
}

func validateExecutor(cfg ExecutorConfig) error {
	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "executor.workers",
			Message: fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
		}
	}

	if cfg.QueueSize < 1 {
		return &ValidationError{
			Field:   "executor.queue_size",
			Message: fmt.Sprintf("queue size must be at least 1, got %d", cfg.QueueSize),
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return nil // broker is optional
	}

	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type %q", cfg.Type),
		}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}

	return nil
}
