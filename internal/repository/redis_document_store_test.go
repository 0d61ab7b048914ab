package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupRedis はテスト用Redisに接続する。接続できない場合はテストをスキップする。
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid TEST_REDIS_URL: %v", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisDocumentStore_Contract(t *testing.T) {
	client := setupRedis(t)

	collection := fmt.Sprintf("test_%d", time.Now().UnixNano())
	testDocumentStoreContract(t, NewRedisDocumentStore(client), collection)
}

func TestRedisDocumentStore_KeyFormat(t *testing.T) {
	store := NewRedisDocumentStore(nil)

	if got := store.key("sessions", "abc"); got != "authgate:sessions:abc" {
		t.Errorf("key() = %q, want %q", got, "authgate:sessions:abc")
	}
}
