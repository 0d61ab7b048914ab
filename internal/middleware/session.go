// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/model"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みアイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// Identity はAuth Gateを通過したリクエストの認証済みアイデンティティ。
// リクエストスコープでのみ有効で、永続化しない。
type Identity struct {
	User    *model.User
	Session *model.Session
}

// SessionResolver はセッションIDからユーザーを解決するインターフェース。
// auth.SessionManagerが実装する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.User, *model.Session, error)
}

// NewAuthGate は認証が必要なハンドラーを保護するミドルウェアを返す。
// Cookieなし・未知のセッション・期限切れ・ユーザー不在はすべて同じ401を返す。
// ストレージ障害は500として区別する。セッションはリクエストごとに解決し、キャッシュしない。
func NewAuthGate(resolver SessionResolver, m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if m == nil {
		m = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				rejectUnauthenticated(w, m)
				return
			}

			// 2. セッションを解決
			user, session, err := resolver.ResolveSession(r.Context(), cookie.Value)
			switch {
			case err == nil:
			case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrSessionExpired):
				rejectUnauthenticated(w, m)
				return
			default:
				// 3. ストレージ障害は未認証と区別する
				slog.ErrorContext(r.Context(), "failed to resolve session",
					slog.String("error", err.Error()),
				)
				m.RecordGateRejection(model.ErrCodeStorageFailure)
				WriteErrorResponse(w, http.StatusInternalServerError, model.NewStorageFailureError())
				return
			}

			// 4. 認証済みアイデンティティをコンテキストに注入
			setLoggedUserID(r.Context(), user.ID)
			ctx := ContextWithIdentity(r.Context(), &Identity{User: user, Session: session})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectUnauthenticated(w http.ResponseWriter, m metrics.MetricsCollector) {
	m.RecordGateRejection(model.ErrCodeUnauthenticated)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
}

// ContextWithIdentity はコンテキストに認証済みアイデンティティを注入する。
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext はリクエストコンテキストから認証済みアイデンティティを取得する。
// Auth Gateを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil || identity.User == nil {
		return nil, false
	}
	return identity, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.User.ID, nil
}
