package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickspace/authgate/internal/model"
)

// DocumentSessionRepo はDocumentStoreのsessionsコレクションを使用したセッションリポジトリ。
type DocumentSessionRepo struct {
	store DocumentStore
}

// NewDocumentSessionRepo はDocumentSessionRepoを生成する。
func NewDocumentSessionRepo(store DocumentStore) *DocumentSessionRepo {
	return &DocumentSessionRepo{store: store}
}

// Create はセッションを作成する。
// 同じIDのセッションが既に存在する場合は上書きせずにエラーを返す。
func (r *DocumentSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" || session.UserID == "" {
		return fmt.Errorf("session ID and user ID are required")
	}

	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.store.Create(ctx, CollectionSessions, session.ID, body); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *DocumentSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	body, err := r.store.Select(ctx, CollectionSessions, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *DocumentSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionSessions, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*DocumentSessionRepo)(nil)
