package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDocumentStore はRedisの文字列キーを使用したDocumentStore。
// キーは "<prefix><collection>:<id>" の形式。
type RedisDocumentStore struct {
	client *redis.Client
	prefix string
}

// NewRedisDocumentStore はRedisDocumentStoreを生成する。
func NewRedisDocumentStore(client *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{
		client: client,
		prefix: "authgate:",
	}
}

func (s *RedisDocumentStore) key(collection, id string) string {
	return s.prefix + collection + ":" + id
}

// Create はSETNXでドキュメントを新規作成する。
func (s *RedisDocumentStore) Create(ctx context.Context, collection, id string, body []byte) error {
	ok, err := s.client.SetNX(ctx, s.key(collection, id), body, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	return nil
}

// Upsert はSETでドキュメント全体を置き換える。
func (s *RedisDocumentStore) Upsert(ctx context.Context, collection, id string, body []byte) error {
	if err := s.client.Set(ctx, s.key(collection, id), body, 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Select はドキュメントを取得する。
func (s *RedisDocumentStore) Select(ctx context.Context, collection, id string) ([]byte, error) {
	body, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}
	return body, nil
}

// Delete はドキュメントを削除する。
func (s *RedisDocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.Del(ctx, s.key(collection, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisDocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// compile-time interface check
var _ DocumentStore = (*RedisDocumentStore)(nil)
