package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "hookd:job:"

// RedisStore keeps one hash per job ID with a configurable TTL, so
// finished jobs expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func (s *RedisStore) Claim(ctx context.Context, jobID, task string) error {
	claimed, err := s.client.HSetNX(ctx, jobKey(jobID), "state", string(StatePending)).Result()
	if err != nil {
		return fmt.Errorf("redis HSetNX failed: %w", err)
	}
	if !claimed {
		return ErrJobExists
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, jobKey(jobID), "task", task)
	pipe.Expire(ctx, jobKey(jobID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (s *RedisStore) SetState(ctx context.Context, jobID string, state State, meta map[string]interface{}) error {
	exists, err := s.client.Exists(ctx, jobKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("redis Exists failed: %w", err)
	}
	if exists == 0 {
		return ErrJobNotFound
	}

	fields := map[string]interface{}{
		"state":   string(state),
		"updated": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if meta != nil {
		body, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal job meta: %w", err)
		}
		fields["meta"] = string(body)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, jobKey(jobID), fields)
	if meta == nil {
		// Nil meta means replace, not keep. A retry leaves an error
		// meta behind that must not survive into a later state.
		pipe.HDel(ctx, jobKey(jobID), "meta")
	}
	pipe.Expire(ctx, jobKey(jobID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (JobStatus, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, fmt.Errorf("redis HGetAll failed: %w", err)
	}
	if len(fields) == 0 {
		return JobStatus{}, ErrJobNotFound
	}

	status := JobStatus{
		State: State(fields["state"]),
		Task:  fields["task"],
	}
	if raw, ok := fields["meta"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &status.Meta); err != nil {
			return JobStatus{}, fmt.Errorf("failed to unmarshal job meta: %w", err)
		}
	}
	return status, nil
}
