package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-news-bot/internal/domain"
)

// RedisSessions хранит состояние пошаговых сценариев бота в Redis.
// Ключ собирается из идентификатора пользователя и типа сценария, поэтому
// у одного пользователя живёт не больше одного состояния на сценарий.
type RedisSessions struct {
	client *redis.Client
}

var _ domain.SessionStore = (*RedisSessions)(nil)

// NewRedisSessions создаёт хранилище состояний.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func sessionKey(userID int64, kind domain.WorkflowKind) string {
	return fmt.Sprintf("fsm:%d:%s", userID, kind)
}

// SaveSession сохраняет состояние сценария.
func (s *RedisSessions) SaveSession(userID int64, kind domain.WorkflowKind, state []byte, ttl time.Duration) error {
	return s.client.Set(context.Background(), sessionKey(userID, kind), state, ttl).Err()
}

// LoadSession возвращает состояние сценария.
func (s *RedisSessions) LoadSession(userID int64, kind domain.WorkflowKind) ([]byte, error) {
	data, err := s.client.Get(context.Background(), sessionKey(userID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	return data, err
}

// DeleteSession удаляет состояние сценария.
func (s *RedisSessions) DeleteSession(userID int64, kind domain.WorkflowKind) error {
	return s.client.Del(context.Background(), sessionKey(userID, kind)).Err()
}
