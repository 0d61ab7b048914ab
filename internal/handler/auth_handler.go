// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickspace/authgate/internal/auth"
	"github.com/rickspace/authgate/internal/middleware"
	"github.com/rickspace/authgate/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthorizeURL(state string) string
	HandleCallback(ctx context.Context, params auth.CallbackParams) (*auth.CallbackResult, error)
}

// SessionServiceInterface はセッションの解決と破棄を行うインターフェース。
// auth.SessionManagerが実装する。
type SessionServiceInterface interface {
	middleware.SessionResolver
	DestroySession(ctx context.Context, sessionID string) error
	Now() time.Time
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	LoginPath    string // コールバック中断時のリダイレクト先
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionServiceInterface
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// Login はOAuthフローを開始する。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（ログインCSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.AuthorizeURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /api/oauth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := auth.CallbackParams{
		Code:     query.Get("code"),
		Error:    query.Get("error"),
		State:    query.Get("state"),
		ClientIP: middleware.ClientIP(r),
	}
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		params.ExpectedState = c.Value
	}

	// stateは一度だけ使う
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	result, err := h.service.HandleCallback(r.Context(), params)
	if err != nil {
		var cbErr *auth.CallbackError
		if errors.As(err, &cbErr) && !cbErr.RedirectToLogin() {
			slog.ErrorContext(r.Context(), "oauth callback failed to persist session",
				slog.String("stage", string(cbErr.Stage)),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSessionNotCreatedError())
			return
		}

		attrs := []any{slog.String("error", err.Error())}
		if cbErr != nil {
			attrs = append(attrs, slog.String("stage", string(cbErr.Stage)))
		}
		slog.WarnContext(r.Context(), "oauth callback aborted, redirecting to login", attrs...)
		http.Redirect(w, r, h.config.LoginPath, http.StatusTemporaryRedirect)
		return
	}

	session := result.Session
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   session.SecondsUntilExpiry(h.sessions.Now()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.WriteJSON(w, http.StatusOK, model.NewAPIResponse(session, "Session created successfully"))
}

// Logout はセッションを破棄し、Cookieをクリアする。
// セッションがない場合や削除に失敗した場合も成功を返す。
// GET|POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.DestroySession(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "failed to destroy session", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.WriteJSON(w, http.StatusOK, model.NewAPIResponse[any](nil, "Session deleted successfully"))
}

// Me は認証済みユーザーのプロフィールを返す。Auth Gateの内側に配置する。
// GET /api/users/@me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, model.NewAPIResponse(identity.User.Profile, "User found"))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
