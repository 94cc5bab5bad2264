package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, 256, cfg.Executor.QueueSize)
	assert.Equal(t, 86400, cfg.Executor.JobTTLSeconds)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  base_url: https://hooks.example.org
database:
  postgres:
    host: db.internal
    port: 5432
    user: hookd
    dbname: hookd
broker:
  type: kafka
  kafka:
    brokers:
      - kafka-1:9092
      - kafka-2:9092
    event_topic: webhook_events
webhooks:
  secret: mysecret
  signature_header: X-Hub-Signature
  tokens:
    owner-token: owner
executor:
  workers: 8
  queue_size: 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://hooks.example.org", cfg.Server.BaseURL)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "kafka", cfg.Broker.Type)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "mysecret", cfg.Webhooks.Secret)
	assert.Equal(t, "X-Hub-Signature", cfg.Webhooks.SignatureHeader)
	assert.Equal(t, map[string]string{"owner-token": "owner"}, cfg.Webhooks.Tokens)
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, 512, cfg.Executor.QueueSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("WEBHOOKS_SECRET", "env-secret")

	path := writeConfigFile(t, `
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Webhooks.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 70000
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "server.port")
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:                8080,
				ReadTimeoutSeconds:  30,
				WriteTimeoutSeconds: 30,
			},
			Executor: ExecutorConfig{Workers: 4, QueueSize: 256},
		}
	}

	require.NoError(t, ValidateStatic(valid()))

	t.Run("zero workers", func(t *testing.T) {
		cfg := valid()
		cfg.Executor.Workers = 0
		assert.ErrorContains(t, ValidateStatic(cfg), "executor.workers")
	})

	t.Run("zero queue size", func(t *testing.T) {
		cfg := valid()
		cfg.Executor.QueueSize = 0
		assert.ErrorContains(t, ValidateStatic(cfg), "executor.queue_size")
	})

	t.Run("debug URLs without debug mode", func(t *testing.T) {
		cfg := valid()
		cfg.Webhooks.DebugReceiverURLs = map[string]string{
			"test-receiver": "http://localhost:5000/hooks/%(token)s",
		}
		assert.ErrorContains(t, ValidateStatic(cfg), "webhooks.debug_receiver_urls")
	})

	t.Run("unsupported broker type", func(t *testing.T) {
		cfg := valid()
		cfg.Broker.Type = "rabbitmq"
		assert.ErrorContains(t, ValidateStatic(cfg), "broker.type")
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		cfg := valid()
		cfg.Broker.Type = "kafka"
		assert.ErrorContains(t, ValidateStatic(cfg), "broker.kafka.brokers")
	})
}
