package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/authgate/internal/model"
)

const sessionKeyPrefix = "session:"

// sessionPayload はRedisに保管するセッションペイロード。中身はemailへの参照のみ。
type sessionPayload struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisSessionStore はRedisを使用したセッションストア。
// 期限管理はRedisのTTLに委ね、期限切れセッションは自動的に消滅する。
type RedisSessionStore struct {
	client redis.UniversalClient
}

// NewRedisSessionStore はRedisSessionStoreを生成する。
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Create はセッションをTTL付きで保管する。
// TTLはExpiresAtと現在時刻の差から算出する。
func (s *RedisSessionStore) Create(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(sessionPayload{
		Email:     session.Email,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired: %s", session.ExpiresAt)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Find は指定トークンのセッションを取得する。不存在・期限切れの場合はnilを返す。
func (s *RedisSessionStore) Find(ctx context.Context, token string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &model.Session{
		Token:     token,
		Email:     payload.Email,
		CreatedAt: payload.CreatedAt,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

// Delete は指定トークンのセッションを削除する。
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionStore = (*RedisSessionStore)(nil)
