package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryDocumentStore はプロセス内のmapを使用したDocumentStore。
// ローカル開発（STORE_BACKEND=memory）とテストで使用する。プロセス終了でデータは失われる。
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemoryDocumentStore はMemoryDocumentStoreを生成する。
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]map[string][]byte)}
}

// Create はドキュメントを新規作成する。
func (s *MemoryDocumentStore) Create(_ context.Context, collection, id string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	c[id] = clone(body)
	return nil
}

// Upsert はドキュメントを作成、または全体を置き換える。
func (s *MemoryDocumentStore) Upsert(_ context.Context, collection, id string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection)[id] = clone(body)
	return nil
}

// Select はドキュメントを取得する。
func (s *MemoryDocumentStore) Select(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(body), nil
}

// Delete はドキュメントを削除する。
func (s *MemoryDocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs[collection], id)
	return nil
}

// Ping は常に成功する。
func (s *MemoryDocumentStore) Ping(_ context.Context) error {
	return nil
}

// Count はコレクション内のドキュメント数を返す。テスト用。
func (s *MemoryDocumentStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

// collection はコレクションのmapを返す。呼び出し側で書き込みロックを保持すること。
func (s *MemoryDocumentStore) collection(name string) map[string][]byte {
	c, ok := s.docs[name]
	if !ok {
		c = make(map[string][]byte)
		s.docs[name] = c
	}
	return c
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// compile-time interface check
var _ DocumentStore = (*MemoryDocumentStore)(nil)
