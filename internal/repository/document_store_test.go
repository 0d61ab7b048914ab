package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// testDocumentStoreContract はDocumentStore実装が満たすべき振る舞いを検証する。
// 各実装のテストから呼び出す。
func testDocumentStoreContract(t *testing.T, store DocumentStore, collection string) {
	t.Helper()
	ctx := context.Background()

	t.Run("select missing returns ErrNotFound", func(t *testing.T) {
		_, err := store.Select(ctx, collection, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Select() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("create then select", func(t *testing.T) {
		if err := store.Create(ctx, collection, "doc-1", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		body, err := store.Select(ctx, collection, "doc-1")
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		assertJSONEqual(t, body, `{"a":1}`)
	})

	t.Run("create duplicate returns ErrAlreadyExists and keeps original", func(t *testing.T) {
		err := store.Create(ctx, collection, "doc-1", []byte(`{"a":2}`))
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("Create() error = %v, want ErrAlreadyExists", err)
		}
		body, err := store.Select(ctx, collection, "doc-1")
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		assertJSONEqual(t, body, `{"a":1}`)
	})

	t.Run("upsert replaces whole document", func(t *testing.T) {
		if err := store.Upsert(ctx, collection, "doc-2", []byte(`{"a":1,"b":2}`)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := store.Upsert(ctx, collection, "doc-2", []byte(`{"c":3}`)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		body, err := store.Select(ctx, collection, "doc-2")
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		assertJSONEqual(t, body, `{"c":3}`)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := store.Delete(ctx, collection, "doc-1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := store.Delete(ctx, collection, "doc-1"); err != nil {
			t.Fatalf("second Delete() error = %v", err)
		}
		if _, err := store.Select(ctx, collection, "doc-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Select() after Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("collections are isolated", func(t *testing.T) {
		if err := store.Create(ctx, collection, "shared-id", []byte(`{"owner":"a"}`)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		other := collection + "_other"
		if _, err := store.Select(ctx, other, "shared-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Select() in other collection error = %v, want ErrNotFound", err)
		}
		_ = store.Delete(ctx, collection, "shared-id")
		_ = store.Delete(ctx, collection, "doc-2")
	})

	t.Run("ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestMemoryDocumentStore_Contract(t *testing.T) {
	testDocumentStoreContract(t, NewMemoryDocumentStore(), "contract")
}

func TestMemoryDocumentStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	body := []byte(`{"a":1}`)
	if err := store.Create(ctx, "c", "id", body); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	body[2] = 'X'

	got, err := store.Select(ctx, "c", "id")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("stored body mutated through caller slice: %s", got)
	}
}

func TestMemoryDocumentStore_ConcurrentCreateSameID_OnlyOneWins(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Create(ctx, "sessions", "same", []byte(fmt.Sprintf(`{"n":%d}`, i)))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful creates = %d, want 1", successes)
	}
	if store.Count("sessions") != 1 {
		t.Errorf("Count() = %d, want 1", store.Count("sessions"))
	}
}
