// Package repository はデータ永続化のインターフェースと実装を提供する。
// 永続化層はコレクション名とIDで識別されるJSONドキュメントのキー・バリューストアとして扱う。
package repository

import (
	"context"
	"errors"

	"github.com/rickspace/authgate/internal/model"
)

// コレクション名
const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
)

var (
	// ErrNotFound は指定したドキュメントが存在しないことを示す。
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists はCreate時に同じIDのドキュメントが既に存在することを示す。
	ErrAlreadyExists = errors.New("document already exists")
)

// DocumentStore は外部永続化サービスへのアダプタ。
// 単一ドキュメントの作成・読み取り・削除はそれぞれアトミックであることを前提とする。
type DocumentStore interface {
	// Create はドキュメントを新規作成する。同じIDが存在する場合はErrAlreadyExistsを返す。
	Create(ctx context.Context, collection, id string, body []byte) error
	// Upsert はドキュメントを作成、または全体を置き換える（部分マージはしない）。
	Upsert(ctx context.Context, collection, id string, body []byte) error
	// Select はドキュメントを取得する。存在しない場合はErrNotFoundを返す。
	Select(ctx context.Context, collection, id string) ([]byte, error)
	// Delete はドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error
	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はユーザーのプロフィールをIdPのユーザーIDをキーに保存する。
	Upsert(ctx context.Context, user *model.User) error
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れの判定は呼び出し側で行うため、期限切れのセッションもそのまま返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}
