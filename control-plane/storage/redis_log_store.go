package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLogStore keeps recorded requests in a Redis list, newest at the head.
type RedisLogStore struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisLogStore creates a log store on the given client. A maxLen of zero
// keeps every entry.
func NewRedisLogStore(client *redis.Client, key string, maxLen int64) *RedisLogStore {
	if key == "" {
		key = "hcapi:logs"
	}
	return &RedisLogStore{client: client, key: key, maxLen: maxLen}
}

func (s *RedisLogStore) seqKey() string { return s.key + ":seq" }

// Append records a log entry.
func (s *RedisLogStore) Append(ctx context.Context, entry *LogEntry) error {
	if entry == nil {
		return ErrInvalidInput
	}

	if entry.ID == 0 {
		id, err := s.client.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate log id: %w", err)
		}
		entry.ID = id
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// List returns one page of entries, newest first.
func (s *RedisLogStore) List(ctx context.Context, page, limit int) ([]*LogEntry, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, ErrInvalidInput
	}

	total, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count log entries: %w", err)
	}

	offset, ok := pageOffset(page, limit)
	if !ok || int64(offset) >= total {
		return []*LogEntry{}, int(total), nil
	}

	start := int64(offset)
	stop := start + int64(limit) - 1
	if stop < start {
		stop = -1
	}
	raw, err := s.client.LRange(ctx, s.key, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read log entries: %w", err)
	}

	entries := make([]*LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// Skip malformed entries
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, int(total), nil
}

// Clear removes every entry. The ID sequence keeps counting.
func (s *RedisLogStore) Clear(ctx context.Context) (int, error) {
	pipe := s.client.TxPipeline()
	llen := pipe.LLen(ctx, s.key)
	pipe.Del(ctx, s.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear log entries: %w", err)
	}
	return int(llen.Val()), nil
}

// HealthCheck pings Redis.
func (s *RedisLogStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
