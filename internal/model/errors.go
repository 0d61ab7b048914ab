package model

import (
	"errors"
	"fmt"
)

// セッション解決・ログイン処理で使うセンチネルエラー。
var (
	// ErrSessionNotFound はセッション、またはセッションが参照するユーザーが存在しないことを示す。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired はセッションの有効期限が切れていることを示す。
	ErrSessionExpired = errors.New("session expired")
	// ErrStorage は永続化層の読み書きに失敗したことを示す。
	ErrStorage = errors.New("storage error")
	// ErrUpstream はIdPとの通信または応答のデコードに失敗したことを示す。
	ErrUpstream = errors.New("upstream error")
	// ErrInvalidCallback はコールバックのクエリパラメータが不正であることを示す。
	ErrInvalidCallback = errors.New("invalid callback parameters")
)

// APIError はクライアントに返すエラーを表す。
// レスポンスエンベロープのmessageとerrorsに変換される。
type APIError struct {
	Code    string // 機械可読なエラーコード
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated   = "unauthenticated"
	ErrCodeStorageFailure    = "storage_failure"
	ErrCodeSessionNotCreated = "session_not_created"
	ErrCodeRateLimited       = "rate_limit_exceeded"
	ErrCodeInternal          = "internal_error"
)

// NewUnauthenticatedError は未認証エラーを生成する。
// Cookieなし・未知のセッション・期限切れのいずれでも同じ内容を返す。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Message: "Authentication required",
	}
}

// NewStorageFailureError はセッション解決時のストレージ障害エラーを生成する。
func NewStorageFailureError() *APIError {
	return &APIError{
		Code:    ErrCodeStorageFailure,
		Message: "Database error",
	}
}

// NewSessionNotCreatedError はセッション永続化失敗エラーを生成する。
func NewSessionNotCreatedError() *APIError {
	return &APIError{
		Code:    ErrCodeSessionNotCreated,
		Message: "Couldn't create the session in the database",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
	}
}
