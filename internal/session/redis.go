// ABOUTME: Redis-backed session store so state survives gateway restarts
// ABOUTME: Each session is a JSON value under handoff:session:<chat id> with a sliding TTL

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "handoff:session:"

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps sessions in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With("component", "session-redis"),
	}, nil
}

// Get returns the chat's session.
func (r *RedisStore) Get(ctx context.Context, chatID string) (Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+chatID).Bytes()
	if errors.Is(err, redis.Nil) {
		return fresh(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Warn("discarding corrupt session", "chat_id", chatID, "error", err)
		return fresh(), nil
	}
	if s.Mode == "" {
		s.Mode = ModeMenu
	}
	return s, nil
}

// Put replaces the chat's session and refreshes its TTL.
func (r *RedisStore) Put(ctx context.Context, chatID string, s Session) error {
	if s.Mode == "" {
		s.Mode = ModeMenu
	}
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+chatID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete forgets the chat's session.
func (r *RedisStore) Delete(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, keyPrefix+chatID).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
