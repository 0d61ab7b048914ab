package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresDocumentStore はPostgreSQLのdocumentsテーブル（jsonb）を使用したDocumentStore。
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore はPostgresDocumentStoreを生成する。
func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// Create はドキュメントを新規作成する。
func (s *PostgresDocumentStore) Create(ctx context.Context, collection, id string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())`,
		collection, id, body,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Upsert はドキュメントを作成、または全体を置き換える。
func (s *PostgresDocumentStore) Upsert(ctx context.Context, collection, id string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (collection, id)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		collection, id, body,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Select はドキュメントを取得する。
func (s *PostgresDocumentStore) Select(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}
	return body, nil
}

// Delete はドキュメントを削除する。
func (s *PostgresDocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Ping はデータベースへの疎通を確認する。
func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// compile-time interface check
var _ DocumentStore = (*PostgresDocumentStore)(nil)
