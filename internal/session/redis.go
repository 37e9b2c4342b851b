package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so an operator's in-flight workflow
// survives a process restart. TTL rides on the key itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(operatorID int64) string {
	return "boxup:session:" + strconv.FormatInt(operatorID, 10)
}

func (s *RedisStore) Get(ctx context.Context, operatorID int64) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(operatorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		_ = s.client.Del(ctx, sessionKey(operatorID)).Err()
		return nil, ErrNoSession
	}
	return &session, nil
}

func (s *RedisStore) Put(ctx context.Context, operatorID int64, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(operatorID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, operatorID int64) error {
	if err := s.client.Del(ctx, sessionKey(operatorID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
