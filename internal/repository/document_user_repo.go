package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickspace/authgate/internal/model"
)

// DocumentUserRepo はDocumentStoreのusersコレクションを使用したユーザーリポジトリ。
// ドキュメントの本文はIdPが返したプロフィールそのもの。
type DocumentUserRepo struct {
	store DocumentStore
}

// NewDocumentUserRepo はDocumentUserRepoを生成する。
func NewDocumentUserRepo(store DocumentStore) *DocumentUserRepo {
	return &DocumentUserRepo{store: store}
}

// Upsert はユーザーのプロフィール全体を保存する。既存のレコードは置き換えられる。
func (r *DocumentUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	body, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode user profile: %w", err)
	}

	if err := r.store.Upsert(ctx, CollectionUsers, user.ID, body); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *DocumentUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	body, err := r.store.Select(ctx, CollectionUsers, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	profile, err := model.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}

	user, err := model.UserFromProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*DocumentUserRepo)(nil)
