package repository

import (
	"context"
	"time"
)

// timeoutStore は各呼び出しにタイムアウトを設定するDocumentStoreのデコレータ。
type timeoutStore struct {
	next    DocumentStore
	timeout time.Duration
}

// WithTimeout はストアへの各呼び出しをtimeoutで打ち切るDocumentStoreを返す。
// timeoutが0以下の場合はstoreをそのまま返す。
func WithTimeout(store DocumentStore, timeout time.Duration) DocumentStore {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: timeout}
}

func (s *timeoutStore) Create(ctx context.Context, collection, id string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Create(ctx, collection, id, body)
}

func (s *timeoutStore) Upsert(ctx context.Context, collection, id string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Upsert(ctx, collection, id, body)
}

func (s *timeoutStore) Select(ctx context.Context, collection, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Select(ctx, collection, id)
}

func (s *timeoutStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Delete(ctx, collection, id)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Ping(ctx)
}

// compile-time interface check
var _ DocumentStore = (*timeoutStore)(nil)
